package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/maxim-sld/meditation-bot/internal/messages"
	"github.com/maxim-sld/meditation-bot/internal/settlement"
	"github.com/maxim-sld/meditation-bot/types"
)

// HandlePreCheckout must answer within the provider's deadline, the
// pipeline bounds the lookup on its own.
func (bh *Handlers) HandlePreCheckout(ctx context.Context, s Sender, update *models.Update) {
	if update.PreCheckoutQuery == nil {
		return
	}
	lang := langFromCtx(ctx)
	q := update.PreCheckoutQuery

	d := bh.pipeline.PreCheckout(ctx, q.InvoicePayload)
	params := &bot.AnswerPreCheckoutQueryParams{
		PreCheckoutQueryID: q.ID,
		OK:                 d.OK,
	}
	switch d.Reason {
	case settlement.ReasonInvalid:
		params.ErrorMessage = messages.PreCheckoutInvalid(lang)
	case settlement.ReasonUnavailable:
		params.ErrorMessage = messages.PreCheckoutUnavailable(lang)
	}
	if _, err := s.AnswerPreCheckoutQuery(ctx, params); err != nil {
		bh.log.Error().Err(err).Str("query_id", q.ID).Msg("answer pre-checkout failed")
	}
}

func (bh *Handlers) HandleSuccessfulPayment(ctx context.Context, s Sender, update *models.Update) {
	if update.Message == nil || update.Message.SuccessfulPayment == nil {
		return
	}
	lang := langFromCtx(ctx)
	chatID := update.Message.Chat.ID
	p := update.Message.SuccessfulPayment

	var payer int64
	if update.Message.From != nil {
		payer = update.Message.From.ID
	}
	res, err := bh.pipeline.Settle(ctx, types.PaymentEvent{
		PayerExternalID:         payer,
		PayloadToken:            p.InvoicePayload,
		ProviderChargeID:        strings.TrimSpace(p.TelegramPaymentChargeID),
		ProviderPaymentChargeID: strings.TrimSpace(p.ProviderPaymentChargeID),
		Currency:                strings.TrimSpace(p.Currency),
		TotalAmount:             int64(p.TotalAmount),
	})
	if err != nil {
		if !errors.Is(err, types.ErrUnknownGrantTarget) && !errors.Is(err, types.ErrInvalidPayment) {
			bh.log.Error().Err(err).Int64("chat_id", chatID).Msg("payment settlement failed")
		}
		bh.send(ctx, s, chatID, messages.PaymentFailed(lang), nil)
		return
	}
	// A redelivered confirmation was already answered the first time.
	if res.Duplicate {
		bh.log.Info().Int64("chat_id", chatID).Str("user_id", res.UserID).Msg("duplicate payment confirmation ignored")
		return
	}

	switch res.Target.Kind {
	case types.GrantPlan:
		bh.send(ctx, s, chatID, messages.PaymentSucceededUntil(lang, res.ExpiresAt), nil)
	case types.GrantPackage:
		bh.send(ctx, s, chatID, messages.PaymentPackageSucceeded(lang), nil)
	default:
		bh.send(ctx, s, chatID, messages.PaymentSucceeded(lang), nil)
	}
}
