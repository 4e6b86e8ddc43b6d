package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/maxim-sld/meditation-bot/internal/contextkeys"
	"github.com/maxim-sld/meditation-bot/internal/messages"
)

func (bh *Handlers) HandleCommand(ctx context.Context, s Sender, update *models.Update) {
	if update.Message == nil {
		return
	}
	lang := langFromCtx(ctx)
	chatID := update.Message.Chat.ID

	switch commandName(update.Message.Text) {
	case "/start", "/help":
		bh.sendStart(ctx, s, chatID)
	case "/catalog":
		bh.sendCatalog(ctx, s, chatID)
	case "/status":
		bh.sendStatus(ctx, s, chatID)
	default:
		bh.send(ctx, s, chatID, messages.ErrorUnknownCommand(lang), nil)
	}
}

func (bh *Handlers) sendStart(ctx context.Context, s Sender, chatID int64) {
	lang := langFromCtx(ctx)
	plans, err := bh.catalog.ListActivePlans(ctx)
	if err != nil {
		bh.log.Error().Err(err).Msg("list plans failed")
		bh.send(ctx, s, chatID, messages.ErrorDefault(lang), nil)
		return
	}
	pkgs, err := bh.catalog.ListPackages(ctx)
	if err != nil {
		bh.log.Error().Err(err).Msg("list packages failed")
		bh.send(ctx, s, chatID, messages.ErrorDefault(lang), nil)
		return
	}
	bh.send(ctx, s, chatID, messages.StartWelcome(lang), buildStartKeyboard(lang, plans, pkgs))
}

func (bh *Handlers) sendCatalog(ctx context.Context, s Sender, chatID int64) {
	lang := langFromCtx(ctx)
	userID, _ := contextkeys.GetUserID(ctx)

	items, err := bh.catalog.ListContentItems(ctx)
	if err != nil {
		bh.log.Error().Err(err).Msg("list content failed")
		bh.send(ctx, s, chatID, messages.ErrorDefault(lang), nil)
		return
	}
	if len(items) == 0 {
		bh.send(ctx, s, chatID, messages.CatalogEmpty(lang), nil)
		return
	}

	unlocked := make(map[int64]bool, len(items))
	var sb strings.Builder
	sb.WriteString(messages.CatalogHeader(lang))
	for _, item := range items {
		ok := item.IsFree
		if !ok && userID != "" {
			ok, err = bh.resolver.HasAccess(ctx, userID, item.ID)
			if err != nil {
				bh.log.Error().Err(err).Int64("item_id", item.ID).Msg("access check failed")
				bh.send(ctx, s, chatID, messages.ErrorDefault(lang), nil)
				return
			}
		}
		unlocked[item.ID] = ok
		sb.WriteString("\n")
		sb.WriteString(messages.CatalogLine(item.Title, ok))
	}
	bh.send(ctx, s, chatID, sb.String(), buildCatalogKeyboard(items, unlocked))
}

func (bh *Handlers) sendStatus(ctx context.Context, s Sender, chatID int64) {
	lang := langFromCtx(ctx)
	userID, ok := contextkeys.GetUserID(ctx)
	if !ok {
		bh.send(ctx, s, chatID, messages.ErrorDefault(lang), nil)
		return
	}
	st, err := bh.resolver.Status(ctx, userID)
	if err != nil {
		bh.log.Error().Err(err).Str("user_id", userID).Msg("status failed")
		bh.send(ctx, s, chatID, messages.ErrorDefault(lang), nil)
		return
	}
	text := messages.StatusInactive(lang)
	if st.Active {
		text = messages.StatusActive(lang, st.ExpiresAt)
	}
	if len(st.Packages) > 0 {
		text += messages.StatusPackages(lang, len(st.Packages))
	}
	bh.send(ctx, s, chatID, text, nil)
}
