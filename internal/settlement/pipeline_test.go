package settlement

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/maxim-sld/meditation-bot/internal/i18n"
	"github.com/maxim-sld/meditation-bot/internal/metrics"
	"github.com/maxim-sld/meditation-bot/store"
	"github.com/maxim-sld/meditation-bot/types"
)

var settledAt = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func newTestPipeline(t *testing.T) (*store.MemoryStore, *Pipeline) {
	t.Helper()
	s := store.NewMemoryStore()
	s.SetClock(func() time.Time { return settledAt })
	s.AddPlan(types.SubscriptionPlan{ID: 1, Title: "1 месяц", DurationDays: 30, Price: 9900, IsActive: true})
	s.AddPlan(types.SubscriptionPlan{ID: 2, Title: "3 месяца", DurationDays: 90, Price: 24900, IsActive: true})
	s.AddPackage(types.Package{ID: 7, Title: "Сон", Price: 5000})

	p := NewPipeline(s, Config{Currency: "RUB", LifetimePrice: 19900, PreCheckoutTimeout: time.Second}, zerolog.Nop())
	p.now = func() time.Time { return settledAt }
	return s, p
}

func payment(externalID int64, payload, chargeID string) types.PaymentEvent {
	return types.PaymentEvent{
		PayerExternalID:  externalID,
		PayloadToken:     payload,
		ProviderChargeID: chargeID,
		Currency:         "RUB",
		TotalAmount:      24900,
	}
}

func TestSettlePlanGrantsDuration(t *testing.T) {
	s, p := newTestPipeline(t)
	ctx := context.Background()

	res, err := p.Settle(ctx, payment(42, "plan:2", "ch_1"))
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Equal(t, types.PlanTarget(2), res.Target)
	assert.Equal(t, settledAt.Add(90*24*time.Hour), res.ExpiresAt)

	active, err := s.HasActiveSubscription(ctx, res.UserID)
	require.NoError(t, err)
	assert.True(t, active)

	subs := s.Subscriptions(res.UserID)
	require.Len(t, subs, 1)
	require.NotNil(t, subs[0].PlanID)
	assert.Equal(t, int64(2), *subs[0].PlanID)
	assert.Equal(t, settledAt.Add(90*24*time.Hour), subs[0].ExpiresAt)
}

func TestSettleLifetime(t *testing.T) {
	s, p := newTestPipeline(t)

	res, err := p.Settle(context.Background(), payment(42, "meditation_access", "ch_1"))
	require.NoError(t, err)
	assert.Equal(t, types.Lifetime(), res.Target)
	assert.Equal(t, settledAt.AddDate(100, 0, 0), res.ExpiresAt)

	subs := s.Subscriptions(res.UserID)
	require.Len(t, subs, 1)
	assert.Nil(t, subs[0].PlanID)
}

func TestSettleSameChargeTwice(t *testing.T) {
	s, p := newTestPipeline(t)
	ctx := context.Background()

	first, err := p.Settle(ctx, payment(42, "plan:1", "ch_dup"))
	require.NoError(t, err)
	second, err := p.Settle(ctx, payment(42, "plan:1", "ch_dup"))
	require.NoError(t, err)

	assert.False(t, first.Duplicate)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.UserID, second.UserID)
	assert.Len(t, s.Subscriptions(first.UserID), 1)
	assert.Equal(t, 1, s.ChargeCount())
}

func TestSettleConcurrentRedelivery(t *testing.T) {
	s, p := newTestPipeline(t)
	ctx := context.Background()

	const deliveries = 16
	results := make([]Result, deliveries)
	var g errgroup.Group
	for i := 0; i < deliveries; i++ {
		i := i
		g.Go(func() error {
			res, err := p.Settle(ctx, payment(42, "lifetime", "ch_race"))
			results[i] = res
			return err
		})
	}
	require.NoError(t, g.Wait())

	granted := 0
	for _, res := range results {
		if !res.Duplicate {
			granted++
		}
	}
	assert.Equal(t, 1, granted)
	assert.Equal(t, 1, s.UserCount())
	assert.Len(t, s.Subscriptions(results[0].UserID), 1)
}

func TestSettlePackageTwiceWithDifferentCharges(t *testing.T) {
	s, p := newTestPipeline(t)
	ctx := context.Background()

	first, err := p.Settle(ctx, payment(42, "package:7", "ch_a"))
	require.NoError(t, err)
	assert.Equal(t, types.PurchaseCreated, first.Purchase)

	second, err := p.Settle(ctx, payment(42, "package:7", "ch_b"))
	require.NoError(t, err)
	assert.False(t, second.Duplicate)
	assert.Equal(t, types.PurchaseAlreadyExists, second.Purchase)

	assert.Len(t, s.Purchases(first.UserID), 1)
}

func TestSettleDeactivatedPlanIsRejected(t *testing.T) {
	s, p := newTestPipeline(t)
	s.SetPlanActive(2, false)

	_, err := p.Settle(context.Background(), payment(42, "plan:2", "ch_1"))
	require.ErrorIs(t, err, types.ErrUnknownGrantTarget)
	assert.Equal(t, 0, s.UserCount())
	assert.Equal(t, 0, s.ChargeCount())
}

func TestSettleUnknownTargets(t *testing.T) {
	s, p := newTestPipeline(t)
	ctx := context.Background()

	for i, payload := range []string{"plan:99", "package:99", "garbage", ""} {
		_, err := p.Settle(ctx, payment(42, payload, fmt.Sprintf("ch_%d", i)))
		require.ErrorIs(t, err, types.ErrUnknownGrantTarget, payload)
	}
	assert.Equal(t, 0, s.UserCount())
	assert.Equal(t, 0, s.ChargeCount())
}

func TestSettleRequiresChargeID(t *testing.T) {
	_, p := newTestPipeline(t)

	_, err := p.Settle(context.Background(), payment(42, "lifetime", "  "))
	assert.ErrorIs(t, err, types.ErrInvalidPayment)
}

func TestSettleStoreUnavailable(t *testing.T) {
	s, p := newTestPipeline(t)
	s.SetFault(errors.New("connection refused"))

	_, err := p.Settle(context.Background(), payment(42, "lifetime", "ch_1"))
	assert.ErrorIs(t, err, types.ErrStoreUnavailable)
}

type failingGrantStore struct {
	*store.MemoryStore
	err error
}

func (f *failingGrantStore) InTx(ctx context.Context, fn func(ctx context.Context, tx types.Tx) error) error {
	return f.MemoryStore.InTx(ctx, func(ctx context.Context, tx types.Tx) error {
		return fn(ctx, failingTx{Tx: tx, err: f.err})
	})
}

type failingTx struct {
	types.Tx
	err error
}

func (f failingTx) InsertSubscriptionGrant(context.Context, string, *int64, time.Time) (*types.Subscription, error) {
	return nil, f.err
}

func TestSettleFailureAfterUpsertLeavesNothing(t *testing.T) {
	s, p := newTestPipeline(t)
	failing := &failingGrantStore{MemoryStore: s, err: fmt.Errorf("%w: conn closed", types.ErrStoreUnavailable)}
	p.store = failing
	ctx := context.Background()

	_, err := p.Settle(ctx, payment(42, "plan:1", "ch_1"))
	require.ErrorIs(t, err, types.ErrStoreUnavailable)
	assert.Equal(t, 0, s.UserCount())
	assert.Equal(t, 0, s.ChargeCount())

	p.store = s
	res, err := p.Settle(ctx, payment(42, "plan:1", "ch_1"))
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Len(t, s.Subscriptions(res.UserID), 1)
}

func TestRepeatedPlanPurchasesStack(t *testing.T) {
	s, p := newTestPipeline(t)
	ctx := context.Background()

	first, err := p.Settle(ctx, payment(42, "plan:1", "ch_a"))
	require.NoError(t, err)
	second, err := p.Settle(ctx, payment(42, "plan:1", "ch_b"))
	require.NoError(t, err)

	subs := s.Subscriptions(first.UserID)
	require.Len(t, subs, 2)
	assert.Equal(t, first.ExpiresAt, second.ExpiresAt)
}

func TestPreCheckout(t *testing.T) {
	s, p := newTestPipeline(t)
	ctx := context.Background()

	assert.Equal(t, Decision{OK: true}, p.PreCheckout(ctx, "lifetime"))
	assert.Equal(t, Decision{OK: true}, p.PreCheckout(ctx, "plan:1"))
	assert.Equal(t, Decision{OK: true}, p.PreCheckout(ctx, "package:7"))
	assert.Equal(t, Decision{Reason: ReasonInvalid}, p.PreCheckout(ctx, "sub_unlimited_month"))
	assert.Equal(t, Decision{Reason: ReasonInvalid}, p.PreCheckout(ctx, "package:8"))

	s.SetPlanActive(1, false)
	assert.Equal(t, Decision{Reason: ReasonInvalid}, p.PreCheckout(ctx, "plan:1"))
	assert.Equal(t, 0, s.UserCount())
}

func TestPreCheckoutDeclinesWhenStoreIsSlow(t *testing.T) {
	s, p := newTestPipeline(t)
	p.cfg.PreCheckoutTimeout = 20 * time.Millisecond
	s.SetLatency(5 * time.Second)

	start := time.Now()
	d := p.PreCheckout(context.Background(), "plan:1")
	assert.False(t, d.OK)
	assert.Equal(t, ReasonUnavailable, d.Reason)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestPreCheckoutDeclinesWhenStoreIsDown(t *testing.T) {
	s, p := newTestPipeline(t)
	s.SetFault(errors.New("connection refused"))

	assert.Equal(t, Decision{Reason: ReasonUnavailable}, p.PreCheckout(context.Background(), "package:7"))
}

func TestPreCheckoutLifetimeNeedsNoStore(t *testing.T) {
	s, p := newTestPipeline(t)
	s.SetFault(errors.New("connection refused"))

	assert.True(t, p.PreCheckout(context.Background(), "lifetime").OK)
}

func TestInvoice(t *testing.T) {
	_, p := newTestPipeline(t)
	ctx := context.Background()

	inv, err := p.Invoice(ctx, 42, types.PlanTarget(2), i18n.RU)
	require.NoError(t, err)
	assert.Equal(t, "plan:2", inv.Payload)
	assert.Equal(t, "Подписка: 3 месяца", inv.Title)
	assert.Equal(t, int64(24900), inv.Amount)
	assert.Equal(t, "RUB", inv.Currency)

	inv, err = p.Invoice(ctx, 42, types.Lifetime(), i18n.EN)
	require.NoError(t, err)
	assert.Equal(t, "lifetime", inv.Payload)
	assert.Equal(t, "Full access to meditations", inv.Title)
	assert.Equal(t, int64(19900), inv.Amount)

	_, err = p.Invoice(ctx, 42, types.PackageTarget(99), i18n.RU)
	assert.ErrorIs(t, err, types.ErrUnknownGrantTarget)
}

func TestSettleCountsOutcomes(t *testing.T) {
	_, p := newTestPipeline(t)
	ctx := context.Background()
	granted := metrics.SettlementsTotal.WithLabelValues("granted")
	duplicate := metrics.SettlementsTotal.WithLabelValues("duplicate")
	grantedBefore, duplicateBefore := testutil.ToFloat64(granted), testutil.ToFloat64(duplicate)

	_, err := p.Settle(ctx, payment(42, "plan:1", "ch_metrics"))
	require.NoError(t, err)
	_, err = p.Settle(ctx, payment(42, "plan:1", "ch_metrics"))
	require.NoError(t, err)

	assert.Equal(t, grantedBefore+1, testutil.ToFloat64(granted))
	assert.Equal(t, duplicateBefore+1, testutil.ToFloat64(duplicate))
}
