package types

import (
	"context"
	"time"
)

type User struct {
	ID         string
	ExternalID int64
	CreatedAt  time.Time
}

type Subscription struct {
	ID        string
	UserID    string
	PlanID    *int64
	ExpiresAt time.Time
	CreatedAt time.Time
}

type Purchase struct {
	UserID    string
	PackageID int64
	CreatedAt time.Time
}

type PaymentEvent struct {
	PayerExternalID int64
	PayloadToken    string
	// ProviderChargeID is the messaging platform charge id and keys the
	// idempotency ledger.
	ProviderChargeID        string
	ProviderPaymentChargeID string
	Currency                string
	TotalAmount             int64
}

type ChargeRecord struct {
	ChargeID                string
	UserID                  string
	Payload                 string
	Currency                string
	TotalAmount             int64
	ProviderPaymentChargeID string
	CreatedAt               time.Time
}

type UserDirectory interface {
	// GetOrCreateUser maps an external identity to its internal user id,
	// creating the user on first contact.
	GetOrCreateUser(ctx context.Context, externalID int64) (string, error)
}
