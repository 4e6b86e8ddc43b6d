package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"

	"github.com/maxim-sld/meditation-bot/internal/contextkeys"
	"github.com/maxim-sld/meditation-bot/internal/entitlement"
	"github.com/maxim-sld/meditation-bot/internal/i18n"
	"github.com/maxim-sld/meditation-bot/internal/messages"
	"github.com/maxim-sld/meditation-bot/internal/settlement"
	"github.com/maxim-sld/meditation-bot/types"
)

// Sender is the part of *bot.Bot the handlers talk to.
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendInvoice(ctx context.Context, params *bot.SendInvoiceParams) (*models.Message, error)
	SendAudio(ctx context.Context, params *bot.SendAudioParams) (*models.Message, error)
	AnswerPreCheckoutQuery(ctx context.Context, params *bot.AnswerPreCheckoutQueryParams) (bool, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

type Handlers struct {
	resolver *entitlement.Resolver
	pipeline *settlement.Pipeline
	catalog  types.Catalog
	payToken string
	log      zerolog.Logger
}

func NewHandlers(resolver *entitlement.Resolver, pipeline *settlement.Pipeline, catalog types.Catalog, payToken string, log zerolog.Logger) *Handlers {
	return &Handlers{
		resolver: resolver,
		pipeline: pipeline,
		catalog:  catalog,
		payToken: payToken,
		log:      log.With().Str("component", "handlers").Logger(),
	}
}

func langFromCtx(ctx context.Context) i18n.Lang {
	if v, ok := contextkeys.GetLang(ctx); ok {
		return i18n.Parse(v)
	}
	return i18n.RU
}

func (bh *Handlers) MainHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	bh.Handle(ctx, b, update)
}

func (bh *Handlers) Handle(ctx context.Context, s Sender, update *models.Update) {
	if update == nil {
		return
	}
	lang := langFromCtx(ctx)
	messageType, _ := contextkeys.GetMessageType(ctx)

	switch messageType {
	case contextkeys.MessageTypePreCheckout:
		bh.HandlePreCheckout(ctx, s, update)
	case contextkeys.MessageTypePayment:
		bh.HandleSuccessfulPayment(ctx, s, update)
	case contextkeys.MessageTypeCommand:
		bh.HandleCommand(ctx, s, update)
	case contextkeys.MessageTypeClickButton:
		bh.HandleClickButton(ctx, s, update)
	default:
		if chatID := getChatIDFromUpdate(update); chatID != 0 {
			bh.send(ctx, s, chatID, messages.ErrorUnsupportedMessage(lang), nil)
		}
	}
}

func (bh *Handlers) send(ctx context.Context, s Sender, chatID int64, text string, markup models.ReplyMarkup) {
	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: messages.ParseModeHTML,
	}
	if markup != nil {
		params.ReplyMarkup = markup
	}
	if _, err := s.SendMessage(ctx, params); err != nil {
		bh.log.Warn().Err(err).Int64("chat_id", chatID).Msg("send message failed")
	}
}

func getChatIDFromUpdate(update *models.Update) int64 {
	if update == nil {
		return 0
	}
	if update.Message != nil {
		return update.Message.Chat.ID
	}
	if update.CallbackQuery != nil {
		if update.CallbackQuery.Message.Message != nil {
			return update.CallbackQuery.Message.Message.Chat.ID
		}
		if update.CallbackQuery.Message.InaccessibleMessage != nil {
			return update.CallbackQuery.Message.InaccessibleMessage.Chat.ID
		}
		return update.CallbackQuery.From.ID
	}
	return 0
}

func commandName(text string) string {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return ""
	}
	cmd := fields[0]
	if i := strings.Index(cmd, "@"); i >= 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd)
}
