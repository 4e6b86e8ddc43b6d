package middleware

import (
	"context"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxim-sld/meditation-bot/internal/contextkeys"
	"github.com/maxim-sld/meditation-bot/store"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name   string
		update *models.Update
		want   contextkeys.MessageType
	}{
		{"command", &models.Update{Message: &models.Message{Text: "/start"}}, contextkeys.MessageTypeCommand},
		{"text", &models.Update{Message: &models.Message{Text: "hello"}}, contextkeys.MessageTypeText},
		{"button", &models.Update{CallbackQuery: &models.CallbackQuery{Data: "buy:lifetime"}}, contextkeys.MessageTypeClickButton},
		{"pre-checkout", &models.Update{PreCheckoutQuery: &models.PreCheckoutQuery{ID: "q"}}, contextkeys.MessageTypePreCheckout},
		{"payment", &models.Update{Message: &models.Message{SuccessfulPayment: &models.SuccessfulPayment{InvoicePayload: "lifetime"}}}, contextkeys.MessageTypePayment},
		{"empty", &models.Update{}, contextkeys.MessageTypeUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, classify(tc.update))
		})
	}
}

func TestResolveUserMiddlewareSetsUserAndLang(t *testing.T) {
	s := store.NewMemoryStore()
	m := NewMiddlewares(s, zerolog.Nop())

	var gotUser, gotLang string
	h := m.ResolveUserMiddleware(func(ctx context.Context, _ *bot.Bot, _ *models.Update) {
		gotUser, _ = contextkeys.GetUserID(ctx)
		gotLang, _ = contextkeys.GetLang(ctx)
	})

	update := &models.Update{Message: &models.Message{
		Text: "/start",
		From: &models.User{ID: 42, LanguageCode: "en"},
		Chat: models.Chat{ID: 42},
	}}
	h(context.Background(), nil, update)

	require.NotEmpty(t, gotUser)
	assert.Equal(t, "en", gotLang)

	want, err := s.GetOrCreateUser(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, want, gotUser)
	assert.Equal(t, 1, s.UserCount())
}

func TestResolveUserMiddlewareSkipsPayments(t *testing.T) {
	s := store.NewMemoryStore()
	m := NewMiddlewares(s, zerolog.Nop())

	called := false
	h := m.ResolveUserMiddleware(func(ctx context.Context, _ *bot.Bot, _ *models.Update) {
		called = true
		_, ok := contextkeys.GetUserID(ctx)
		assert.False(t, ok)
	})

	h(context.Background(), nil, &models.Update{Message: &models.Message{
		From:              &models.User{ID: 42},
		Chat:              models.Chat{ID: 42},
		SuccessfulPayment: &models.SuccessfulPayment{InvoicePayload: "lifetime"},
	}})

	assert.True(t, called)
	assert.Equal(t, 0, s.UserCount())
}

func TestResolveUserMiddlewareStopsOnStoreError(t *testing.T) {
	s := store.NewMemoryStore()
	s.SetFault(assert.AnError)
	m := NewMiddlewares(s, zerolog.Nop())

	called := false
	h := m.ResolveUserMiddleware(func(context.Context, *bot.Bot, *models.Update) { called = true })
	h(context.Background(), nil, &models.Update{CallbackQuery: &models.CallbackQuery{
		ID:   "cb",
		From: models.User{ID: 42},
		Data: "menu_catalog",
	}})

	assert.False(t, called)
}
