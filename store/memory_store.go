package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maxim-sld/meditation-bot/types"
)

type purchaseKey struct {
	userID    string
	packageID int64
}

type memData struct {
	users         map[int64]types.User
	plans         map[int64]types.SubscriptionPlan
	packages      map[int64]types.Package
	items         map[int64]types.ContentItem
	subscriptions []types.Subscription
	purchases     map[purchaseKey]types.Purchase
	charges       map[string]types.ChargeRecord
}

func newMemData() memData {
	return memData{
		users:     make(map[int64]types.User),
		plans:     make(map[int64]types.SubscriptionPlan),
		packages:  make(map[int64]types.Package),
		items:     make(map[int64]types.ContentItem),
		purchases: make(map[purchaseKey]types.Purchase),
		charges:   make(map[string]types.ChargeRecord),
	}
}

func (d memData) clone() memData {
	c := newMemData()
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.plans {
		c.plans[k] = v
	}
	for k, v := range d.packages {
		c.packages[k] = v
	}
	for k, v := range d.items {
		c.items[k] = v
	}
	c.subscriptions = append([]types.Subscription(nil), d.subscriptions...)
	for k, v := range d.purchases {
		c.purchases[k] = v
	}
	for k, v := range d.charges {
		c.charges[k] = v
	}
	return c
}

// MemoryStore is an in-process types.Store. InTx holds the store lock for
// the whole callback and restores a snapshot when the callback fails.
type MemoryStore struct {
	mu      sync.Mutex
	data    memData
	now     func() time.Time
	fault   error
	latency time.Duration
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: newMemData(),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// SetFault makes every following call fail with ErrStoreUnavailable wrapping
// err. A nil err clears the fault.
func (s *MemoryStore) SetFault(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = err
}

// SetLatency delays every call by d, or until the caller's context ends.
func (s *MemoryStore) SetLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = d
}

func (s *MemoryStore) enter(ctx context.Context) error {
	s.mu.Lock()
	fault, latency := s.fault, s.latency
	s.mu.Unlock()
	if fault != nil {
		return fmt.Errorf("%w: %w", types.ErrStoreUnavailable, fault)
	}
	if latency > 0 {
		t := time.NewTimer(latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", types.ErrStoreUnavailable, ctx.Err())
		case <-t.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *MemoryStore) AddPlan(p types.SubscriptionPlan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.plans[p.ID] = p
}

func (s *MemoryStore) SetPlanActive(planID int64, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.data.plans[planID]; ok {
		p.IsActive = active
		s.data.plans[planID] = p
	}
}

func (s *MemoryStore) AddPackage(p types.Package) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.packages[p.ID] = p
}

func (s *MemoryStore) AddContentItem(item types.ContentItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.items[item.ID] = item
}

func (s *MemoryStore) UserCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.users)
}

func (s *MemoryStore) Subscriptions(userID string) []types.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Subscription
	for _, sub := range s.data.subscriptions {
		if sub.UserID == userID {
			out = append(out, sub)
		}
	}
	return out
}

func (s *MemoryStore) Purchases(userID string) []types.Purchase {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Purchase
	for k, p := range s.data.purchases {
		if k.userID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PackageID < out[j].PackageID })
	return out
}

func (s *MemoryStore) ChargeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.charges)
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return s.enter(ctx)
}

func (s *MemoryStore) Close() {}

func (s *MemoryStore) InTx(ctx context.Context, fn func(ctx context.Context, tx types.Tx) error) error {
	if err := s.enter(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.data.clone()
	if err := fn(ctx, &memTx{s: s}); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

// locked runs fn against the store under its lock, the single-statement
// equivalent of InTx.
func (s *MemoryStore) locked(ctx context.Context, fn func(tx *memTx) error) error {
	if err := s.enter(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&memTx{s: s})
}

func (s *MemoryStore) GetOrCreateUser(ctx context.Context, externalID int64) (id string, err error) {
	err = s.locked(ctx, func(tx *memTx) error {
		id, err = tx.GetOrCreateUser(ctx, externalID)
		return err
	})
	return id, err
}

func (s *MemoryStore) HasActiveSubscription(ctx context.Context, userID string) (ok bool, err error) {
	err = s.locked(ctx, func(tx *memTx) error {
		ok, err = tx.HasActiveSubscription(ctx, userID)
		return err
	})
	return ok, err
}

func (s *MemoryStore) LatestSubscriptionExpiry(ctx context.Context, userID string) (at time.Time, ok bool, err error) {
	err = s.locked(ctx, func(tx *memTx) error {
		at, ok, err = tx.LatestSubscriptionExpiry(ctx, userID)
		return err
	})
	return at, ok, err
}

func (s *MemoryStore) HasPurchase(ctx context.Context, userID string, packageID int64) (ok bool, err error) {
	err = s.locked(ctx, func(tx *memTx) error {
		ok, err = tx.HasPurchase(ctx, userID, packageID)
		return err
	})
	return ok, err
}

func (s *MemoryStore) InsertSubscriptionGrant(ctx context.Context, userID string, planID *int64, expiresAt time.Time) (sub *types.Subscription, err error) {
	err = s.locked(ctx, func(tx *memTx) error {
		sub, err = tx.InsertSubscriptionGrant(ctx, userID, planID, expiresAt)
		return err
	})
	return sub, err
}

func (s *MemoryStore) InsertPurchase(ctx context.Context, userID string, packageID int64) (res types.PurchaseResult, err error) {
	err = s.locked(ctx, func(tx *memTx) error {
		res, err = tx.InsertPurchase(ctx, userID, packageID)
		return err
	})
	return res, err
}

func (s *MemoryStore) RecordCharge(ctx context.Context, rec types.ChargeRecord) (inserted bool, err error) {
	err = s.locked(ctx, func(tx *memTx) error {
		inserted, err = tx.RecordCharge(ctx, rec)
		return err
	})
	return inserted, err
}

func (s *MemoryStore) GetContentItem(ctx context.Context, itemID int64) (item *types.ContentItem, err error) {
	err = s.locked(ctx, func(tx *memTx) error {
		v, ok := tx.s.data.items[itemID]
		if !ok {
			return fmt.Errorf("content item %d: %w", itemID, types.ErrNotFound)
		}
		item = &v
		return nil
	})
	return item, err
}

func (s *MemoryStore) ListContentItems(ctx context.Context) (items []types.ContentItem, err error) {
	err = s.locked(ctx, func(tx *memTx) error {
		items = make([]types.ContentItem, 0, len(tx.s.data.items))
		for _, v := range tx.s.data.items {
			items = append(items, v)
		}
		sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
		return nil
	})
	return items, err
}

func (s *MemoryStore) GetPlan(ctx context.Context, planID int64) (plan *types.SubscriptionPlan, err error) {
	err = s.locked(ctx, func(tx *memTx) error {
		plan, err = tx.GetPlan(ctx, planID)
		return err
	})
	return plan, err
}

func (s *MemoryStore) ListActivePlans(ctx context.Context) (plans []types.SubscriptionPlan, err error) {
	err = s.locked(ctx, func(tx *memTx) error {
		plans = make([]types.SubscriptionPlan, 0, len(tx.s.data.plans))
		for _, p := range tx.s.data.plans {
			if p.IsActive {
				plans = append(plans, p)
			}
		}
		sort.Slice(plans, func(i, j int) bool { return plans[i].ID < plans[j].ID })
		return nil
	})
	return plans, err
}

func (s *MemoryStore) GetPackage(ctx context.Context, packageID int64) (pkg *types.Package, err error) {
	err = s.locked(ctx, func(tx *memTx) error {
		pkg, err = tx.GetPackage(ctx, packageID)
		return err
	})
	return pkg, err
}

func (s *MemoryStore) ListPackages(ctx context.Context) (pkgs []types.Package, err error) {
	err = s.locked(ctx, func(tx *memTx) error {
		pkgs = make([]types.Package, 0, len(tx.s.data.packages))
		for _, p := range tx.s.data.packages {
			pkgs = append(pkgs, p)
		}
		sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].ID < pkgs[j].ID })
		return nil
	})
	return pkgs, err
}

// memTx operates on the store data with the lock already held.
type memTx struct {
	s *MemoryStore
}

func (tx *memTx) GetOrCreateUser(_ context.Context, externalID int64) (string, error) {
	if u, ok := tx.s.data.users[externalID]; ok {
		return u.ID, nil
	}
	u := types.User{ID: uuid.NewString(), ExternalID: externalID, CreatedAt: tx.s.now()}
	tx.s.data.users[externalID] = u
	return u.ID, nil
}

func (tx *memTx) HasActiveSubscription(_ context.Context, userID string) (bool, error) {
	now := tx.s.now()
	for _, sub := range tx.s.data.subscriptions {
		if sub.UserID == userID && sub.ExpiresAt.After(now) {
			return true, nil
		}
	}
	return false, nil
}

func (tx *memTx) LatestSubscriptionExpiry(_ context.Context, userID string) (time.Time, bool, error) {
	var latest time.Time
	found := false
	for _, sub := range tx.s.data.subscriptions {
		if sub.UserID != userID {
			continue
		}
		if !found || sub.ExpiresAt.After(latest) {
			latest = sub.ExpiresAt
			found = true
		}
	}
	return latest, found, nil
}

func (tx *memTx) HasPurchase(_ context.Context, userID string, packageID int64) (bool, error) {
	_, ok := tx.s.data.purchases[purchaseKey{userID: userID, packageID: packageID}]
	return ok, nil
}

func (tx *memTx) InsertSubscriptionGrant(_ context.Context, userID string, planID *int64, expiresAt time.Time) (*types.Subscription, error) {
	sub := types.Subscription{
		ID:        uuid.NewString(),
		UserID:    userID,
		PlanID:    planID,
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: tx.s.now(),
	}
	tx.s.data.subscriptions = append(tx.s.data.subscriptions, sub)
	return &sub, nil
}

func (tx *memTx) InsertPurchase(_ context.Context, userID string, packageID int64) (types.PurchaseResult, error) {
	if _, ok := tx.s.data.packages[packageID]; !ok {
		return 0, fmt.Errorf("package %d: %w", packageID, types.ErrNotFound)
	}
	key := purchaseKey{userID: userID, packageID: packageID}
	if _, ok := tx.s.data.purchases[key]; ok {
		return types.PurchaseAlreadyExists, nil
	}
	tx.s.data.purchases[key] = types.Purchase{UserID: userID, PackageID: packageID, CreatedAt: tx.s.now()}
	return types.PurchaseCreated, nil
}

func (tx *memTx) RecordCharge(_ context.Context, rec types.ChargeRecord) (bool, error) {
	if _, ok := tx.s.data.charges[rec.ChargeID]; ok {
		return false, nil
	}
	rec.CreatedAt = tx.s.now()
	tx.s.data.charges[rec.ChargeID] = rec
	return true, nil
}

func (tx *memTx) GetPlan(_ context.Context, planID int64) (*types.SubscriptionPlan, error) {
	p, ok := tx.s.data.plans[planID]
	if !ok {
		return nil, fmt.Errorf("plan %d: %w", planID, types.ErrNotFound)
	}
	return &p, nil
}

func (tx *memTx) GetPackage(_ context.Context, packageID int64) (*types.Package, error) {
	p, ok := tx.s.data.packages[packageID]
	if !ok {
		return nil, fmt.Errorf("package %d: %w", packageID, types.ErrNotFound)
	}
	return &p, nil
}
