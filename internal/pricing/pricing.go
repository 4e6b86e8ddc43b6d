package pricing

import (
	"fmt"
	"strings"

	"github.com/maxim-sld/meditation-bot/internal/i18n"
	"github.com/maxim-sld/meditation-bot/types"
)

type Quote struct {
	Title       string
	Description string
	Label       string
	Amount      int64
}

// Lifetime prices the invoice that unlocks every item.
func Lifetime(lang i18n.Lang, amount int64) Quote {
	return Quote{
		Title:       i18n.Pick(lang, "Полный доступ к медитациям", "Full access to meditations"),
		Description: i18n.Pick(lang, "Разблокирует все медитации навсегда", "Unlocks every meditation forever"),
		Label:       i18n.Pick(lang, "Доступ ко всем медитациям", "Access to all meditations"),
		Amount:      amount,
	}
}

func Plan(lang i18n.Lang, p types.SubscriptionPlan) Quote {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		title = days(lang, p.DurationDays)
	}
	period := days(lang, p.DurationDays)
	return Quote{
		Title:       i18n.Pick(lang, "Подписка: ", "Subscription: ") + title,
		Description: i18n.Pick(lang, "Доступ ко всем медитациям на ", "Access to all meditations for ") + period,
		Label:       i18n.Pick(lang, "Подписка ", "Subscription ") + title,
		Amount:      p.Price,
	}
}

// Package falls back to a generated description when the catalog has none.
// Catalog titles and descriptions are not translated.
func Package(lang i18n.Lang, p types.Package) Quote {
	title := strings.TrimSpace(p.Title)
	desc := strings.TrimSpace(p.Description)
	if desc == "" {
		desc = i18n.Pick(lang,
			"Пакет медитаций «"+title+"» навсегда",
			"Meditation package \""+title+"\" forever")
	}
	return Quote{
		Title:       i18n.Pick(lang, "Пакет: ", "Package: ") + title,
		Description: desc,
		Label:       title,
		Amount:      p.Price,
	}
}

func days(lang i18n.Lang, n int) string {
	if lang == i18n.EN {
		if n == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", n)
	}
	mod10, mod100 := n%10, n%100
	switch {
	case mod10 == 1 && mod100 != 11:
		return fmt.Sprintf("%d день", n)
	case mod10 >= 2 && mod10 <= 4 && (mod100 < 12 || mod100 > 14):
		return fmt.Sprintf("%d дня", n)
	default:
		return fmt.Sprintf("%d дней", n)
	}
}
