package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/maxim-sld/meditation-bot/internal/contextkeys"
	"github.com/maxim-sld/meditation-bot/internal/grant"
	"github.com/maxim-sld/meditation-bot/internal/messages"
	"github.com/maxim-sld/meditation-bot/types"
)

func (bh *Handlers) HandleClickButton(ctx context.Context, s Sender, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}
	cq := update.CallbackQuery
	chatID := getChatIDFromUpdate(update)
	data, ok := contextkeys.GetCallbackData(ctx)
	if !ok {
		data = cq.Data
	}
	data = strings.TrimSpace(data)

	switch {
	case data == callbackCatalog:
		bh.answerCallback(ctx, s, cq.ID, "")
		bh.sendCatalog(ctx, s, chatID)
	case strings.HasPrefix(data, callbackBuyPrefix):
		bh.handleBuy(ctx, s, cq, chatID, strings.TrimPrefix(data, callbackBuyPrefix))
	case strings.HasPrefix(data, callbackPlayPrefix):
		bh.handlePlay(ctx, s, cq, chatID, strings.TrimPrefix(data, callbackPlayPrefix))
	default:
		bh.answerCallbackAlert(ctx, s, cq.ID, messages.ErrorDefault(langFromCtx(ctx)))
	}
}

func (bh *Handlers) handleBuy(ctx context.Context, s Sender, cq *models.CallbackQuery, chatID int64, token string) {
	lang := langFromCtx(ctx)
	target, err := grant.ParseToken(token)
	if err != nil {
		bh.answerCallbackAlert(ctx, s, cq.ID, messages.InvoiceUnavailable(lang))
		return
	}
	inv, err := bh.pipeline.Invoice(ctx, cq.From.ID, target, lang)
	if err != nil {
		bh.answerCallbackAlert(ctx, s, cq.ID, messages.InvoiceUnavailable(lang))
		return
	}
	bh.answerCallback(ctx, s, cq.ID, "")

	_, err = s.SendInvoice(ctx, &bot.SendInvoiceParams{
		ChatID:        chatID,
		Title:         inv.Title,
		Description:   inv.Description,
		Payload:       inv.Payload,
		ProviderToken: bh.payToken,
		Currency:      inv.Currency,
		Prices:        []models.LabeledPrice{{Label: inv.Label, Amount: int(inv.Amount)}},
	})
	if err != nil {
		bh.log.Error().Err(err).Int64("chat_id", chatID).Str("payload", inv.Payload).Msg("send invoice failed")
		bh.send(ctx, s, chatID, messages.InvoiceUnavailable(lang), nil)
	}
}

func (bh *Handlers) handlePlay(ctx context.Context, s Sender, cq *models.CallbackQuery, chatID int64, rawID string) {
	lang := langFromCtx(ctx)
	itemID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || itemID <= 0 {
		bh.answerCallbackAlert(ctx, s, cq.ID, messages.ContentNotFound(lang))
		return
	}
	userID, ok := contextkeys.GetUserID(ctx)
	if !ok {
		bh.answerCallbackAlert(ctx, s, cq.ID, messages.ErrorDefault(lang))
		return
	}

	allowed, err := bh.resolver.HasAccess(ctx, userID, itemID)
	switch {
	case errors.Is(err, types.ErrNotFound):
		bh.answerCallbackAlert(ctx, s, cq.ID, messages.ContentNotFound(lang))
		return
	case err != nil:
		bh.log.Error().Err(err).Str("user_id", userID).Int64("item_id", itemID).Msg("access check failed")
		bh.answerCallbackAlert(ctx, s, cq.ID, messages.ErrorDefault(lang))
		return
	case !allowed:
		bh.answerCallbackAlert(ctx, s, cq.ID, messages.ContentLocked(lang))
		return
	}

	item, err := bh.catalog.GetContentItem(ctx, itemID)
	if err != nil {
		bh.answerCallbackAlert(ctx, s, cq.ID, messages.ErrorDefault(lang))
		return
	}
	if item.FileID == "" {
		bh.answerCallbackAlert(ctx, s, cq.ID, messages.ContentNoFile(lang))
		return
	}
	bh.answerCallback(ctx, s, cq.ID, "")

	_, err = s.SendAudio(ctx, &bot.SendAudioParams{
		ChatID:  chatID,
		Audio:   &models.InputFileString{Data: item.FileID},
		Title:   item.Title,
		Caption: item.Description,
	})
	if err != nil {
		bh.log.Error().Err(err).Int64("item_id", itemID).Msg("send audio failed")
	}
}

func (bh *Handlers) answerCallback(ctx context.Context, s Sender, callbackID, text string) {
	_, err := s.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
	})
	if err != nil {
		bh.log.Debug().Err(err).Msg("answer callback failed")
	}
}

func (bh *Handlers) answerCallbackAlert(ctx context.Context, s Sender, callbackID, text string) {
	_, err := s.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       true,
	})
	if err != nil {
		bh.log.Debug().Err(err).Msg("answer callback failed")
	}
}
