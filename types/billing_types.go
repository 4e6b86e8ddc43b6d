package types

import (
	"context"
	"time"
)

type GrantReader interface {
	HasActiveSubscription(ctx context.Context, userID string) (bool, error)
	// LatestSubscriptionExpiry reports the furthest expiry among the user's
	// subscription rows, ok is false when the user never subscribed.
	LatestSubscriptionExpiry(ctx context.Context, userID string) (expiresAt time.Time, ok bool, err error)
	HasPurchase(ctx context.Context, userID string, packageID int64) (bool, error)
}

type GrantStore interface {
	GrantReader
	InsertSubscriptionGrant(ctx context.Context, userID string, planID *int64, expiresAt time.Time) (*Subscription, error)
	InsertPurchase(ctx context.Context, userID string, packageID int64) (PurchaseResult, error)
}

// Tx is the view of the store available inside one settlement transaction.
type Tx interface {
	UserDirectory
	GrantStore
	GetPlan(ctx context.Context, planID int64) (*SubscriptionPlan, error)
	GetPackage(ctx context.Context, packageID int64) (*Package, error)
	// RecordCharge inserts the charge into the idempotency ledger and reports
	// false when the charge id is already there.
	RecordCharge(ctx context.Context, rec ChargeRecord) (inserted bool, err error)
}

type Store interface {
	Tx
	Catalog
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Ping(ctx context.Context) error
	Close()
}
