package handlers

import (
	"strconv"

	"github.com/go-telegram/bot/models"

	"github.com/maxim-sld/meditation-bot/internal/grant"
	"github.com/maxim-sld/meditation-bot/internal/i18n"
	"github.com/maxim-sld/meditation-bot/internal/messages"
	"github.com/maxim-sld/meditation-bot/types"
)

const (
	callbackBuyPrefix  = "buy:"
	callbackPlayPrefix = "play:"
	callbackCatalog    = "menu_catalog"
)

func buildStartKeyboard(lang i18n.Lang, plans []types.SubscriptionPlan, pkgs []types.Package) models.InlineKeyboardMarkup {
	rows := make([][]models.InlineKeyboardButton, 0, len(plans)+len(pkgs)+2)
	rows = append(rows, []models.InlineKeyboardButton{
		{Text: messages.BtnBuyLifetime(lang), CallbackData: callbackBuyPrefix + grant.Token(types.Lifetime())},
	})
	for _, p := range plans {
		rows = append(rows, []models.InlineKeyboardButton{
			{Text: messages.BtnBuyPlan(lang, p.Title), CallbackData: callbackBuyPrefix + grant.Token(types.PlanTarget(p.ID))},
		})
	}
	for _, p := range pkgs {
		rows = append(rows, []models.InlineKeyboardButton{
			{Text: messages.BtnBuyPackage(lang, p.Title), CallbackData: callbackBuyPrefix + grant.Token(types.PackageTarget(p.ID))},
		})
	}
	rows = append(rows, []models.InlineKeyboardButton{
		{Text: messages.BtnCatalog(lang), CallbackData: callbackCatalog},
	})
	return models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// buildCatalogKeyboard lays play buttons for unlocked items out three per row.
func buildCatalogKeyboard(items []types.ContentItem, unlocked map[int64]bool) models.InlineKeyboardMarkup {
	rows := make([][]models.InlineKeyboardButton, 0)
	row := make([]models.InlineKeyboardButton, 0, 3)
	for _, item := range items {
		if !unlocked[item.ID] {
			continue
		}
		if len(row) == 3 {
			rows = append(rows, row)
			row = make([]models.InlineKeyboardButton, 0, 3)
		}
		row = append(row, models.InlineKeyboardButton{
			Text:         "▶️ " + item.Title,
			CallbackData: callbackPlayPrefix + strconv.FormatInt(item.ID, 10),
		})
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return models.InlineKeyboardMarkup{InlineKeyboard: rows}
}
