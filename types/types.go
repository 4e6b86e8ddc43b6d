package types

import "context"

type ContentItem struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	FileID      string `json:"-"`
	PackageID   *int64 `json:"package_id,omitempty"`
	IsFree      bool   `json:"is_free"`
}

type Package struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
}

type SubscriptionPlan struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	DurationDays int    `json:"duration_days"`
	Price        int64  `json:"price"`
	IsActive     bool   `json:"is_active"`
}

type Catalog interface {
	GetContentItem(ctx context.Context, itemID int64) (*ContentItem, error)
	ListContentItems(ctx context.Context) ([]ContentItem, error)
	GetPlan(ctx context.Context, planID int64) (*SubscriptionPlan, error)
	ListActivePlans(ctx context.Context) ([]SubscriptionPlan, error)
	GetPackage(ctx context.Context, packageID int64) (*Package, error)
	ListPackages(ctx context.Context) ([]Package, error)
}
