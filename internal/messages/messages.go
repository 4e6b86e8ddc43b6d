package messages

import (
	"fmt"
	"strings"
	"time"

	"github.com/maxim-sld/meditation-bot/internal/i18n"
)

const ParseModeHTML = "HTML"

func Escape(s string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&#39;",
	)
	return replacer.Replace(strings.TrimSpace(s))
}

func formatDate(t time.Time) string {
	return t.UTC().Format("02.01.2006")
}

func ErrorDefault(lang i18n.Lang) string {
	return i18n.Pick(lang, "🚫 <b>Ошибка</b>\nПопробуйте ещё раз.", "🚫 <b>Error</b>\nPlease try again.")
}

func ErrorUnknownCommand(lang i18n.Lang) string {
	return i18n.Pick(lang, "❓ <b>Команда не найдена</b>", "❓ <b>Unknown command</b>")
}

func ErrorUnsupportedMessage(lang i18n.Lang) string {
	return i18n.Pick(lang, "🤖 Нажмите /start, чтобы открыть меню.", "🤖 Press /start to open the menu.")
}

func StartWelcome(lang i18n.Lang) string {
	return i18n.Pick(lang,
		"Добро пожаловать ✨\n\nЧтобы открыть все медитации — нажмите кнопку ниже 👇",
		"Welcome ✨\n\nTo unlock all meditations, press a button below 👇")
}

func BtnBuyLifetime(lang i18n.Lang) string {
	return i18n.Pick(lang, "💳 Купить полный доступ", "💳 Buy full access")
}

func BtnBuyPlan(lang i18n.Lang, title string) string {
	return i18n.Pick(lang, "🗓 Подписка: ", "🗓 Subscription: ") + strings.TrimSpace(title)
}

func BtnBuyPackage(lang i18n.Lang, title string) string {
	return i18n.Pick(lang, "🎧 Пакет: ", "🎧 Package: ") + strings.TrimSpace(title)
}

func BtnCatalog(lang i18n.Lang) string {
	return i18n.Pick(lang, "📚 Медитации", "📚 Meditations")
}

func CatalogHeader(lang i18n.Lang) string {
	return i18n.Pick(lang, "📚 <b>Медитации</b>\n", "📚 <b>Meditations</b>\n")
}

func CatalogEmpty(lang i18n.Lang) string {
	return i18n.Pick(lang, "📚 Пока нет медитаций.", "📚 No meditations yet.")
}

func CatalogLine(title string, unlocked bool) string {
	mark := "🔒"
	if unlocked {
		mark = "▶️"
	}
	return fmt.Sprintf("%s %s", mark, Escape(title))
}

func ContentLocked(lang i18n.Lang) string {
	return i18n.Pick(lang, "🔒 Эта медитация доступна после оплаты.", "🔒 This meditation is available after payment.")
}

func ContentNotFound(lang i18n.Lang) string {
	return i18n.Pick(lang, "Медитация не найдена.", "Meditation not found.")
}

func ContentNoFile(lang i18n.Lang) string {
	return i18n.Pick(lang, "Аудио ещё не загружено.", "Audio is not uploaded yet.")
}

func StatusActive(lang i18n.Lang, until time.Time) string {
	return i18n.Pick(lang,
		"✅ <b>Доступ открыт</b>\nДо: "+formatDate(until),
		"✅ <b>Access is active</b>\nUntil: "+formatDate(until))
}

func StatusInactive(lang i18n.Lang) string {
	return i18n.Pick(lang, "🔒 <b>Подписка не активна</b>", "🔒 <b>No active subscription</b>")
}

func StatusPackages(lang i18n.Lang, n int) string {
	return i18n.Pick(lang, fmt.Sprintf("\n🎧 Куплено пакетов: %d", n), fmt.Sprintf("\n🎧 Packages owned: %d", n))
}

func PreCheckoutInvalid(lang i18n.Lang) string {
	return i18n.Pick(lang, "Этот товар больше недоступен", "This item is no longer available")
}

func PreCheckoutUnavailable(lang i18n.Lang) string {
	return i18n.Pick(lang, "Сервис временно недоступен, попробуйте позже", "Service is temporarily unavailable, try again later")
}

func InvoiceUnavailable(lang i18n.Lang) string {
	return i18n.Pick(lang, "🚫 Не удалось выставить счёт.", "🚫 Could not create the invoice.")
}

func PaymentSucceeded(lang i18n.Lang) string {
	return i18n.Pick(lang, "Оплата прошла успешно! 🎉\n\nВсе медитации открыты.", "Payment successful! 🎉\n\nAll meditations are unlocked.")
}

func PaymentSucceededUntil(lang i18n.Lang, until time.Time) string {
	return i18n.Pick(lang,
		"Оплата прошла успешно! 🎉\n\nДоступ открыт до "+formatDate(until)+".",
		"Payment successful! 🎉\n\nAccess is active until "+formatDate(until)+".")
}

func PaymentPackageSucceeded(lang i18n.Lang) string {
	return i18n.Pick(lang, "Оплата прошла успешно! 🎉\n\nМедитации пакета открыты.", "Payment successful! 🎉\n\nThe package is unlocked.")
}

func PaymentFailed(lang i18n.Lang) string {
	return i18n.Pick(lang,
		"🚫 <b>Не удалось завершить покупку</b>\nНапишите в поддержку, мы всё исправим.",
		"🚫 <b>The purchase could not be completed</b>\nPlease contact support.")
}
