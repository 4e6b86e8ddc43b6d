package entitlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxim-sld/meditation-bot/store"
	"github.com/maxim-sld/meditation-bot/types"
)

const (
	freeItem       = int64(1)
	packagedItem   = int64(2)
	standaloneItem = int64(3)
	packageID      = int64(7)
)

type countingGrants struct {
	types.GrantReader
	calls int
}

func (c *countingGrants) HasActiveSubscription(ctx context.Context, userID string) (bool, error) {
	c.calls++
	return c.GrantReader.HasActiveSubscription(ctx, userID)
}

func (c *countingGrants) HasPurchase(ctx context.Context, userID string, pkg int64) (bool, error) {
	c.calls++
	return c.GrantReader.HasPurchase(ctx, userID, pkg)
}

func newTestResolver(t *testing.T) (*store.MemoryStore, *countingGrants, *Resolver) {
	t.Helper()
	s := store.NewMemoryStore()
	pkg := packageID
	s.AddPackage(types.Package{ID: packageID, Title: "Sleep", Price: 100})
	s.AddContentItem(types.ContentItem{ID: freeItem, Title: "Breath", IsFree: true})
	s.AddContentItem(types.ContentItem{ID: packagedItem, Title: "Sleep", PackageID: &pkg})
	s.AddContentItem(types.ContentItem{ID: standaloneItem, Title: "Focus"})
	grants := &countingGrants{GrantReader: s}
	return s, grants, NewResolver(s, grants, s, zerolog.Nop())
}

func TestFreeItemNeedsNoGrantLookup(t *testing.T) {
	_, grants, r := newTestResolver(t)

	ok, err := r.CheckExternal(context.Background(), 1001, freeItem)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, grants.calls)
}

func TestStandaloneItemWithoutSubscription(t *testing.T) {
	s, _, r := newTestResolver(t)
	ctx := context.Background()
	userID, err := s.GetOrCreateUser(ctx, 1)
	require.NoError(t, err)

	ok, err := r.HasAccess(ctx, userID, standaloneItem)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestActiveSubscriptionGrantsEverything(t *testing.T) {
	s, _, r := newTestResolver(t)
	ctx := context.Background()
	userID, err := s.GetOrCreateUser(ctx, 1)
	require.NoError(t, err)
	_, err = s.InsertSubscriptionGrant(ctx, userID, nil, time.Now().Add(time.Hour))
	require.NoError(t, err)

	for _, item := range []int64{packagedItem, standaloneItem} {
		ok, err := r.HasAccess(ctx, userID, item)
		require.NoError(t, err)
		assert.True(t, ok, "item %d", item)
	}
}

func TestExpiredSubscriptionGrantsNothing(t *testing.T) {
	s, _, r := newTestResolver(t)
	ctx := context.Background()
	userID, err := s.GetOrCreateUser(ctx, 1)
	require.NoError(t, err)
	_, err = s.InsertSubscriptionGrant(ctx, userID, nil, time.Now().Add(-time.Minute))
	require.NoError(t, err)

	ok, err := r.HasAccess(ctx, userID, standaloneItem)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPurchaseIsPerUser(t *testing.T) {
	s, _, r := newTestResolver(t)
	ctx := context.Background()
	buyer, err := s.GetOrCreateUser(ctx, 1)
	require.NoError(t, err)
	other, err := s.GetOrCreateUser(ctx, 2)
	require.NoError(t, err)
	_, err = s.InsertPurchase(ctx, buyer, packageID)
	require.NoError(t, err)

	ok, err := r.HasAccess(ctx, buyer, packagedItem)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.HasAccess(ctx, other, packagedItem)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.HasAccess(ctx, buyer, standaloneItem)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnknownItemIsNotFound(t *testing.T) {
	_, _, r := newTestResolver(t)

	_, err := r.CheckExternal(context.Background(), 1, 404)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestStoreFailureIsNotDenial(t *testing.T) {
	s, _, r := newTestResolver(t)
	ctx := context.Background()
	userID, err := s.GetOrCreateUser(ctx, 1)
	require.NoError(t, err)
	s.SetFault(errors.New("connection reset"))

	_, err = r.HasAccess(ctx, userID, packagedItem)
	assert.ErrorIs(t, err, types.ErrStoreUnavailable)
}

func TestStatus(t *testing.T) {
	s, _, r := newTestResolver(t)
	ctx := context.Background()
	userID, err := s.GetOrCreateUser(ctx, 1)
	require.NoError(t, err)

	st, err := r.Status(ctx, userID)
	require.NoError(t, err)
	assert.False(t, st.Active)
	assert.Empty(t, st.Packages)

	expiresAt := time.Now().Add(30 * 24 * time.Hour).UTC()
	_, err = s.InsertSubscriptionGrant(ctx, userID, nil, expiresAt)
	require.NoError(t, err)
	_, err = s.InsertPurchase(ctx, userID, packageID)
	require.NoError(t, err)

	st, err = r.Status(ctx, userID)
	require.NoError(t, err)
	assert.True(t, st.Active)
	assert.Equal(t, expiresAt, st.ExpiresAt)
	assert.Equal(t, []int64{packageID}, st.Packages)
}

func TestStatusFollowsStoreClock(t *testing.T) {
	s, _, r := newTestResolver(t)
	ctx := context.Background()
	storeNow := time.Date(2020, 3, 1, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return storeNow })

	userID, err := s.GetOrCreateUser(ctx, 1)
	require.NoError(t, err)
	_, err = s.InsertSubscriptionGrant(ctx, userID, nil, storeNow.Add(time.Hour))
	require.NoError(t, err)

	active, err := s.HasActiveSubscription(ctx, userID)
	require.NoError(t, err)
	st, err := r.Status(ctx, userID)
	require.NoError(t, err)
	assert.True(t, active)
	assert.Equal(t, active, st.Active)

	storeNow = storeNow.Add(2 * time.Hour)
	st, err = r.Status(ctx, userID)
	require.NoError(t, err)
	assert.False(t, st.Active)
	assert.Equal(t, time.Date(2020, 3, 1, 13, 0, 0, 0, time.UTC), st.ExpiresAt)
}
