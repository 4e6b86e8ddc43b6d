package middleware

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"

	"github.com/maxim-sld/meditation-bot/internal/contextkeys"
	"github.com/maxim-sld/meditation-bot/internal/i18n"
	"github.com/maxim-sld/meditation-bot/internal/messages"
	"github.com/maxim-sld/meditation-bot/types"
)

type Middlewares struct {
	users types.UserDirectory
	log   zerolog.Logger
}

func NewMiddlewares(users types.UserDirectory, log zerolog.Logger) *Middlewares {
	return &Middlewares{
		users: users,
		log:   log.With().Str("component", "middleware").Logger(),
	}
}

type sender struct {
	id       int64
	chatID   int64
	langCode string
}

// senderOf returns who wrote a message or pressed a button. Payment
// confirmations are skipped, settlement creates the user itself.
func senderOf(update *models.Update) (sender, bool) {
	switch {
	case update.Message != nil && update.Message.SuccessfulPayment != nil:
		return sender{}, false
	case update.Message != nil && update.Message.From != nil:
		return sender{
			id:       update.Message.From.ID,
			chatID:   update.Message.Chat.ID,
			langCode: update.Message.From.LanguageCode,
		}, true
	case update.CallbackQuery != nil:
		return sender{
			id:       update.CallbackQuery.From.ID,
			chatID:   getChatIDFromMaybeInaccessibleMessage(update.CallbackQuery.Message),
			langCode: update.CallbackQuery.From.LanguageCode,
		}, true
	}
	return sender{}, false
}

func getChatIDFromMaybeInaccessibleMessage(m models.MaybeInaccessibleMessage) int64 {
	if m.Message != nil {
		return m.Message.Chat.ID
	}
	if m.InaccessibleMessage != nil {
		return m.InaccessibleMessage.Chat.ID
	}
	return 0
}

func langCodeOf(update *models.Update) string {
	switch {
	case update.Message != nil && update.Message.From != nil:
		return update.Message.From.LanguageCode
	case update.CallbackQuery != nil:
		return update.CallbackQuery.From.LanguageCode
	}
	return ""
}

// ResolveUserMiddleware puts the sender's language and internal user id into
// the context. Updates without a sender pass through with the language only.
func (m *Middlewares) ResolveUserMiddleware(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		if update == nil {
			return
		}
		lang := i18n.FromLanguageCode(langCodeOf(update))
		ctx = contextkeys.WithLang(ctx, string(lang))

		s, ok := senderOf(update)
		if !ok || s.id == 0 {
			next(ctx, b, update)
			return
		}

		userID, err := m.users.GetOrCreateUser(ctx, s.id)
		if err != nil {
			m.log.Error().Err(err).Int64("external_id", s.id).Msg("resolve user failed")
			if s.chatID != 0 && b != nil {
				_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
					ChatID:    s.chatID,
					Text:      messages.ErrorDefault(lang),
					ParseMode: messages.ParseModeHTML,
				})
			}
			return
		}

		ctx = contextkeys.WithUserID(ctx, userID)
		next(ctx, b, update)
	}
}

func (m *Middlewares) AnalyzeMessageMiddleware(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		if update == nil {
			return
		}
		if update.CallbackQuery != nil && update.CallbackQuery.Data != "" {
			ctx = contextkeys.WithCallbackData(ctx, update.CallbackQuery.Data)
		}
		next(contextkeys.WithMessageType(ctx, classify(update)), b, update)
	}
}

func classify(update *models.Update) contextkeys.MessageType {
	switch {
	case update.PreCheckoutQuery != nil:
		return contextkeys.MessageTypePreCheckout
	case update.CallbackQuery != nil && update.CallbackQuery.Data != "":
		return contextkeys.MessageTypeClickButton
	case update.Message == nil:
		return contextkeys.MessageTypeUnknown
	case update.Message.SuccessfulPayment != nil:
		return contextkeys.MessageTypePayment
	case strings.HasPrefix(update.Message.Text, "/"):
		return contextkeys.MessageTypeCommand
	case update.Message.Text != "" || update.Message.Caption != "":
		return contextkeys.MessageTypeText
	}
	return contextkeys.MessageTypeUnknown
}
