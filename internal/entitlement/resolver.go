// Package entitlement decides whether a user may open a content item.
package entitlement

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/maxim-sld/meditation-bot/internal/metrics"
	"github.com/maxim-sld/meditation-bot/types"
)

type Resolver struct {
	catalog types.Catalog
	grants  types.GrantReader
	users   types.UserDirectory
	log     zerolog.Logger
}

func NewResolver(catalog types.Catalog, grants types.GrantReader, users types.UserDirectory, log zerolog.Logger) *Resolver {
	return &Resolver{
		catalog: catalog,
		grants:  grants,
		users:   users,
		log:     log.With().Str("component", "entitlement").Logger(),
	}
}

// HasAccess expects an internal user id already resolved through the user
// directory. The checks run in a fixed order and stop at the first grant:
// free item, active subscription, purchase of the item's package.
func (r *Resolver) HasAccess(ctx context.Context, userID string, itemID int64) (bool, error) {
	item, err := r.catalog.GetContentItem(ctx, itemID)
	if err != nil {
		metrics.AccessChecksTotal.WithLabelValues("error").Inc()
		return false, err
	}
	if item.IsFree {
		metrics.AccessChecksTotal.WithLabelValues("free").Inc()
		return true, nil
	}

	active, err := r.grants.HasActiveSubscription(ctx, userID)
	if err != nil {
		metrics.AccessChecksTotal.WithLabelValues("error").Inc()
		return false, fmt.Errorf("check subscription: %w", err)
	}
	if active {
		metrics.AccessChecksTotal.WithLabelValues("subscription").Inc()
		return true, nil
	}

	if item.PackageID == nil {
		metrics.AccessChecksTotal.WithLabelValues("denied").Inc()
		return false, nil
	}
	owned, err := r.grants.HasPurchase(ctx, userID, *item.PackageID)
	if err != nil {
		metrics.AccessChecksTotal.WithLabelValues("error").Inc()
		return false, fmt.Errorf("check purchase: %w", err)
	}
	if owned {
		metrics.AccessChecksTotal.WithLabelValues("purchase").Inc()
	} else {
		metrics.AccessChecksTotal.WithLabelValues("denied").Inc()
	}
	return owned, nil
}

// CheckExternal resolves the platform identity first, creating the user on
// first contact.
func (r *Resolver) CheckExternal(ctx context.Context, externalID int64, itemID int64) (bool, error) {
	userID, err := r.users.GetOrCreateUser(ctx, externalID)
	if err != nil {
		return false, fmt.Errorf("resolve user: %w", err)
	}
	ok, err := r.HasAccess(ctx, userID, itemID)
	if err != nil {
		r.log.Debug().Err(err).Int64("external_id", externalID).Int64("item_id", itemID).Msg("access check failed")
	}
	return ok, err
}

// SubscriptionActive reports whether the platform user holds an active
// subscription. Package purchases do not count.
func (r *Resolver) SubscriptionActive(ctx context.Context, externalID int64) (bool, error) {
	userID, err := r.users.GetOrCreateUser(ctx, externalID)
	if err != nil {
		return false, fmt.Errorf("resolve user: %w", err)
	}
	active, err := r.grants.HasActiveSubscription(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("check subscription: %w", err)
	}
	return active, nil
}

type Status struct {
	Active    bool
	ExpiresAt time.Time
	Packages  []int64
}

// Status reports the latest subscription expiry, which may be in the past,
// and the packages the user owns.
func (r *Resolver) Status(ctx context.Context, userID string) (Status, error) {
	var st Status
	expiresAt, ok, err := r.grants.LatestSubscriptionExpiry(ctx, userID)
	if err != nil {
		return st, fmt.Errorf("subscription expiry: %w", err)
	}
	if ok {
		st.ExpiresAt = expiresAt
	}
	// Same clock as HasAccess: the store decides what is active.
	st.Active, err = r.grants.HasActiveSubscription(ctx, userID)
	if err != nil {
		return st, fmt.Errorf("check subscription: %w", err)
	}

	pkgs, err := r.catalog.ListPackages(ctx)
	if err != nil {
		return st, fmt.Errorf("list packages: %w", err)
	}
	for _, p := range pkgs {
		owned, err := r.grants.HasPurchase(ctx, userID, p.ID)
		if err != nil {
			return st, fmt.Errorf("check purchase: %w", err)
		}
		if owned {
			st.Packages = append(st.Packages, p.ID)
		}
	}
	return st, nil
}
