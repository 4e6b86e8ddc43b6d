// Package settlement turns confirmed payments into grants.
//
// A payment goes through three steps: an invoice is issued (no local
// state), the provider asks for pre-checkout approval, and finally a
// confirmation arrives and is settled. Settlement records the provider
// charge id in the idempotency ledger and applies the grant inside one store
// transaction, so a redelivered confirmation is detected before any grant is
// written and a failure part way through leaves nothing behind.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/maxim-sld/meditation-bot/internal/grant"
	"github.com/maxim-sld/meditation-bot/internal/i18n"
	"github.com/maxim-sld/meditation-bot/internal/metrics"
	"github.com/maxim-sld/meditation-bot/internal/pricing"
	"github.com/maxim-sld/meditation-bot/types"
)

type Config struct {
	Currency           string
	LifetimePrice      int64
	LifetimeYears      int
	PreCheckoutTimeout time.Duration
}

type Invoice struct {
	Title       string
	Description string
	Label       string
	Payload     string
	Currency    string
	Amount      int64
}

type Reason string

const (
	ReasonNone        Reason = ""
	ReasonInvalid     Reason = "invalid_payload"
	ReasonUnavailable Reason = "unavailable"
)

type Decision struct {
	OK     bool
	Reason Reason
}

type Result struct {
	UserID    string
	Target    types.GrantTarget
	Duplicate bool
	// ExpiresAt is set for lifetime and plan grants.
	ExpiresAt time.Time
	Purchase  types.PurchaseResult
}

type Pipeline struct {
	store types.Store
	cfg   Config
	log   zerolog.Logger
	now   func() time.Time
}

func NewPipeline(store types.Store, cfg Config, log zerolog.Logger) *Pipeline {
	if cfg.PreCheckoutTimeout <= 0 {
		cfg.PreCheckoutTimeout = 5 * time.Second
	}
	if cfg.LifetimeYears <= 0 {
		cfg.LifetimeYears = 100
	}
	if cfg.Currency == "" {
		cfg.Currency = "RUB"
	}
	return &Pipeline{
		store: store,
		cfg:   cfg,
		log:   log.With().Str("component", "settlement").Logger(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

type targetReader interface {
	GetPlan(ctx context.Context, planID int64) (*types.SubscriptionPlan, error)
	GetPackage(ctx context.Context, packageID int64) (*types.Package, error)
}

type resolvedTarget struct {
	plan *types.SubscriptionPlan
	pkg  *types.Package
}

// resolve checks that the target still exists and that a plan is active.
// Missing and inactive references become ErrUnknownGrantTarget, store
// failures are returned unchanged.
func resolve(ctx context.Context, r targetReader, target types.GrantTarget) (resolvedTarget, error) {
	switch target.Kind {
	case types.GrantLifetime:
		return resolvedTarget{}, nil
	case types.GrantPlan:
		plan, err := r.GetPlan(ctx, target.ID)
		if errors.Is(err, types.ErrNotFound) {
			return resolvedTarget{}, fmt.Errorf("%w: plan %d does not exist", types.ErrUnknownGrantTarget, target.ID)
		}
		if err != nil {
			return resolvedTarget{}, err
		}
		if !plan.IsActive || plan.DurationDays <= 0 {
			return resolvedTarget{}, fmt.Errorf("%w: plan %d is not active", types.ErrUnknownGrantTarget, target.ID)
		}
		return resolvedTarget{plan: plan}, nil
	case types.GrantPackage:
		pkg, err := r.GetPackage(ctx, target.ID)
		if errors.Is(err, types.ErrNotFound) {
			return resolvedTarget{}, fmt.Errorf("%w: package %d does not exist", types.ErrUnknownGrantTarget, target.ID)
		}
		if err != nil {
			return resolvedTarget{}, err
		}
		return resolvedTarget{pkg: pkg}, nil
	}
	return resolvedTarget{}, fmt.Errorf("%w: kind %q", types.ErrUnknownGrantTarget, target.Kind)
}

// Invoice texts are in lang, catalog titles are used as stored.
func (p *Pipeline) Invoice(ctx context.Context, externalID int64, target types.GrantTarget, lang i18n.Lang) (Invoice, error) {
	rt, err := resolve(ctx, p.store, target)
	if err != nil {
		p.log.Warn().Err(err).Int64("external_id", externalID).Str("target", grant.Token(target)).Msg("invoice refused")
		return Invoice{}, err
	}

	var q pricing.Quote
	switch {
	case rt.plan != nil:
		q = pricing.Plan(lang, *rt.plan)
	case rt.pkg != nil:
		q = pricing.Package(lang, *rt.pkg)
	default:
		q = pricing.Lifetime(lang, p.cfg.LifetimePrice)
	}
	inv := Invoice{
		Title:       q.Title,
		Description: q.Description,
		Label:       q.Label,
		Payload:     grant.Token(target),
		Currency:    p.cfg.Currency,
		Amount:      q.Amount,
	}
	p.log.Info().Int64("external_id", externalID).Str("target", inv.Payload).Int64("amount", inv.Amount).Msg("invoice issued")
	return inv, nil
}

// PreCheckout answers the provider's approval request. Anything other than
// a resolvable target inside the deadline is declined.
func (p *Pipeline) PreCheckout(ctx context.Context, payloadToken string) Decision {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.PreCheckoutTimeout)
	defer cancel()

	d := p.preCheckout(ctx, payloadToken)
	if d.OK {
		metrics.PreCheckoutTotal.WithLabelValues("approve").Inc()
	} else {
		metrics.PreCheckoutTotal.WithLabelValues("decline_" + string(d.Reason)).Inc()
	}
	return d
}

func (p *Pipeline) preCheckout(ctx context.Context, payloadToken string) Decision {
	target, err := grant.ParseToken(payloadToken)
	if err != nil {
		p.log.Warn().Err(err).Msg("pre-checkout declined")
		return Decision{Reason: ReasonInvalid}
	}
	if _, err := resolve(ctx, p.store, target); err != nil {
		p.log.Warn().Err(err).Str("target", payloadToken).Msg("pre-checkout declined")
		if errors.Is(err, types.ErrUnknownGrantTarget) {
			return Decision{Reason: ReasonInvalid}
		}
		return Decision{Reason: ReasonUnavailable}
	}
	return Decision{OK: true}
}

// Settle applies a confirmed payment. A charge id that was already settled
// yields Result.Duplicate with a nil error and leaves the store untouched.
func (p *Pipeline) Settle(ctx context.Context, ev types.PaymentEvent) (Result, error) {
	chargeID := strings.TrimSpace(ev.ProviderChargeID)
	logger := p.log.With().
		Str("charge_id", chargeID).
		Int64("external_id", ev.PayerExternalID).
		Str("payload", ev.PayloadToken).
		Logger()

	if chargeID == "" || ev.PayerExternalID == 0 {
		metrics.SettlementsTotal.WithLabelValues("rejected").Inc()
		logger.Error().Msg("payment without charge id or payer")
		return Result{}, types.ErrInvalidPayment
	}

	target, err := grant.ParseToken(ev.PayloadToken)
	if err != nil {
		metrics.SettlementsTotal.WithLabelValues("rejected").Inc()
		logger.Error().Err(err).Msg("payment with unparseable payload")
		return Result{}, err
	}

	res := Result{Target: target}
	now := p.now()
	err = p.store.InTx(ctx, func(ctx context.Context, tx types.Tx) error {
		userID, err := tx.GetOrCreateUser(ctx, ev.PayerExternalID)
		if err != nil {
			return err
		}
		res.UserID = userID

		inserted, err := tx.RecordCharge(ctx, types.ChargeRecord{
			ChargeID:                chargeID,
			UserID:                  userID,
			Payload:                 grant.Token(target),
			Currency:                ev.Currency,
			TotalAmount:             ev.TotalAmount,
			ProviderPaymentChargeID: ev.ProviderPaymentChargeID,
		})
		if err != nil {
			return err
		}
		if !inserted {
			return types.ErrDuplicateGrant
		}

		rt, err := resolve(ctx, tx, target)
		if err != nil {
			return err
		}
		return p.apply(ctx, tx, userID, target, rt, now, &res)
	})

	switch {
	case err == nil:
		metrics.SettlementsTotal.WithLabelValues("granted").Inc()
		logger.Info().Str("user_id", res.UserID).Time("expires_at", res.ExpiresAt).Str("purchase", res.Purchase.String()).Msg("payment settled")
		return res, nil
	case errors.Is(err, types.ErrDuplicateGrant):
		metrics.SettlementsTotal.WithLabelValues("duplicate").Inc()
		logger.Info().Msg("charge already settled, skipping")
		return Result{UserID: res.UserID, Target: target, Duplicate: true}, nil
	case errors.Is(err, types.ErrUnknownGrantTarget):
		metrics.SettlementsTotal.WithLabelValues("rejected").Inc()
		logger.Error().Err(err).Msg("payment for unknown target")
		return Result{}, err
	default:
		metrics.SettlementsTotal.WithLabelValues("failed").Inc()
		logger.Error().Err(err).Msg("settlement failed")
		return Result{}, fmt.Errorf("settle %s: %w", chargeID, err)
	}
}

func (p *Pipeline) apply(ctx context.Context, tx types.Tx, userID string, target types.GrantTarget, rt resolvedTarget, now time.Time, res *Result) error {
	switch target.Kind {
	case types.GrantLifetime:
		sub, err := tx.InsertSubscriptionGrant(ctx, userID, nil, now.AddDate(p.cfg.LifetimeYears, 0, 0))
		if err != nil {
			return err
		}
		res.ExpiresAt = sub.ExpiresAt
	case types.GrantPlan:
		planID := rt.plan.ID
		expiresAt := now.Add(time.Duration(rt.plan.DurationDays) * 24 * time.Hour)
		sub, err := tx.InsertSubscriptionGrant(ctx, userID, &planID, expiresAt)
		if err != nil {
			return err
		}
		res.ExpiresAt = sub.ExpiresAt
	case types.GrantPackage:
		pr, err := tx.InsertPurchase(ctx, userID, rt.pkg.ID)
		if err != nil {
			return err
		}
		res.Purchase = pr
	}
	return nil
}
