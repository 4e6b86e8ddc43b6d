package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/maxim-sld/meditation-bot/types"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const queryTimeout = 5 * time.Second

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresStore struct {
	*pgQueries
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = buildPostgresDSNFromEnv()
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, wrapErr("connect", err)
	}
	s := &PostgresStore{pgQueries: &pgQueries{q: pool}, pool: pool}
	if err := s.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return wrapErr("ping", s.pool.Ping(ctx))
}

func buildPostgresDSNFromEnv() string {
	host := strings.TrimSpace(os.Getenv("POSTGRES_HOST"))
	if host == "" {
		host = "localhost"
	}
	port := strings.TrimSpace(os.Getenv("POSTGRES_PORT"))
	if port == "" {
		port = "5432"
	}
	db := strings.TrimSpace(os.Getenv("POSTGRES_DB"))
	if db == "" {
		db = "meditation_bot"
	}
	user := strings.TrimSpace(os.Getenv("POSTGRES_USER"))
	if user == "" {
		user = "meditation_bot"
	}
	pass := os.Getenv("POSTGRES_PASSWORD")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", urlEscape(user), urlEscape(pass), host, port, db)
}

func urlEscape(s string) string {
	r := strings.NewReplacer(
		"%", "%25",
		":", "%3A",
		"/", "%2F",
		"@", "%40",
		"?", "%3F",
		"#", "%23",
		"[", "%5B",
		"]", "%5D",
	)
	return r.Replace(s)
}

func (s *PostgresStore) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDB(*s.pool.Config().ConnConfig)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(ctx context.Context, tx types.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return wrapErr("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &pgQueries{q: tx}); err != nil {
		return err
	}
	return wrapErr("commit", tx.Commit(ctx))
}

// wrapErr maps driver errors onto the store sentinels. Connection level
// failures become ErrStoreUnavailable so callers can retry.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, types.ErrNotFound)
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		pgconn.Timeout(err) ||
		pgconn.SafeToRetry(err) {
		return fmt.Errorf("%s: %w: %w", op, types.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

type pgQueries struct {
	q querier
}

func (p *pgQueries) GetOrCreateUser(ctx context.Context, externalID int64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	var id string
	err := p.q.QueryRow(ctx, `
INSERT INTO users (id, external_id)
VALUES ($1, $2)
ON CONFLICT (external_id) DO UPDATE SET external_id = EXCLUDED.external_id
RETURNING id
`, uuid.NewString(), externalID).Scan(&id)
	if err != nil {
		return "", wrapErr("get or create user", err)
	}
	return id, nil
}

func (p *pgQueries) HasActiveSubscription(ctx context.Context, userID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	var ok bool
	err := p.q.QueryRow(ctx, `
SELECT EXISTS(
  SELECT 1
  FROM subscriptions
  WHERE user_id = $1
    AND expires_at > NOW()
)
`, userID).Scan(&ok)
	if err != nil {
		return false, wrapErr("has active subscription", err)
	}
	return ok, nil
}

func (p *pgQueries) LatestSubscriptionExpiry(ctx context.Context, userID string) (time.Time, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	var expiresAt *time.Time
	err := p.q.QueryRow(ctx, `
SELECT MAX(expires_at)
FROM subscriptions
WHERE user_id = $1
`, userID).Scan(&expiresAt)
	if err != nil {
		return time.Time{}, false, wrapErr("latest subscription expiry", err)
	}
	if expiresAt == nil {
		return time.Time{}, false, nil
	}
	return expiresAt.UTC(), true, nil
}

func (p *pgQueries) HasPurchase(ctx context.Context, userID string, packageID int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	var ok bool
	err := p.q.QueryRow(ctx, `
SELECT EXISTS(
  SELECT 1
  FROM purchases
  WHERE user_id = $1
    AND package_id = $2
)
`, userID, packageID).Scan(&ok)
	if err != nil {
		return false, wrapErr("has purchase", err)
	}
	return ok, nil
}

func (p *pgQueries) InsertSubscriptionGrant(ctx context.Context, userID string, planID *int64, expiresAt time.Time) (*types.Subscription, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	sub := types.Subscription{
		ID:        uuid.NewString(),
		UserID:    userID,
		PlanID:    planID,
		ExpiresAt: expiresAt.UTC(),
	}
	err := p.q.QueryRow(ctx, `
INSERT INTO subscriptions (id, user_id, plan_id, expires_at)
VALUES ($1, $2, $3, $4)
RETURNING created_at
`, sub.ID, sub.UserID, sub.PlanID, sub.ExpiresAt).Scan(&sub.CreatedAt)
	if err != nil {
		return nil, wrapErr("insert subscription", err)
	}
	return &sub, nil
}

func (p *pgQueries) InsertPurchase(ctx context.Context, userID string, packageID int64) (types.PurchaseResult, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	tag, err := p.q.Exec(ctx, `
INSERT INTO purchases (user_id, package_id)
VALUES ($1, $2)
ON CONFLICT (user_id, package_id) DO NOTHING
`, userID, packageID)
	if err != nil {
		return 0, wrapErr("insert purchase", err)
	}
	if tag.RowsAffected() == 0 {
		return types.PurchaseAlreadyExists, nil
	}
	return types.PurchaseCreated, nil
}

func (p *pgQueries) RecordCharge(ctx context.Context, rec types.ChargeRecord) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	tag, err := p.q.Exec(ctx, `
INSERT INTO payment_charges (charge_id, user_id, payload, currency, total_amount, provider_charge_id)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (charge_id) DO NOTHING
`, strings.TrimSpace(rec.ChargeID), rec.UserID, strings.TrimSpace(rec.Payload), strings.TrimSpace(rec.Currency), rec.TotalAmount, strings.TrimSpace(rec.ProviderPaymentChargeID))
	if err != nil {
		return false, wrapErr("record charge", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (p *pgQueries) GetContentItem(ctx context.Context, itemID int64) (*types.ContentItem, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	var item types.ContentItem
	err := p.q.QueryRow(ctx, `
SELECT id, title, description, file_id, package_id, is_free
FROM content_items
WHERE id = $1
`, itemID).Scan(&item.ID, &item.Title, &item.Description, &item.FileID, &item.PackageID, &item.IsFree)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("content item %d", itemID), err)
	}
	return &item, nil
}

func (p *pgQueries) ListContentItems(ctx context.Context) ([]types.ContentItem, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	rows, err := p.q.Query(ctx, `
SELECT id, title, description, file_id, package_id, is_free
FROM content_items
ORDER BY id
`)
	if err != nil {
		return nil, wrapErr("list content items", err)
	}
	defer rows.Close()

	items := make([]types.ContentItem, 0)
	for rows.Next() {
		var item types.ContentItem
		if err := rows.Scan(&item.ID, &item.Title, &item.Description, &item.FileID, &item.PackageID, &item.IsFree); err != nil {
			return nil, wrapErr("scan content item", err)
		}
		items = append(items, item)
	}
	return items, wrapErr("list content items", rows.Err())
}

func (p *pgQueries) GetPlan(ctx context.Context, planID int64) (*types.SubscriptionPlan, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	var plan types.SubscriptionPlan
	err := p.q.QueryRow(ctx, `
SELECT id, title, duration_days, price, is_active
FROM subscription_plans
WHERE id = $1
`, planID).Scan(&plan.ID, &plan.Title, &plan.DurationDays, &plan.Price, &plan.IsActive)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("plan %d", planID), err)
	}
	return &plan, nil
}

func (p *pgQueries) ListActivePlans(ctx context.Context) ([]types.SubscriptionPlan, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	rows, err := p.q.Query(ctx, `
SELECT id, title, duration_days, price, is_active
FROM subscription_plans
WHERE is_active
ORDER BY id
`)
	if err != nil {
		return nil, wrapErr("list plans", err)
	}
	defer rows.Close()

	plans := make([]types.SubscriptionPlan, 0)
	for rows.Next() {
		var plan types.SubscriptionPlan
		if err := rows.Scan(&plan.ID, &plan.Title, &plan.DurationDays, &plan.Price, &plan.IsActive); err != nil {
			return nil, wrapErr("scan plan", err)
		}
		plans = append(plans, plan)
	}
	return plans, wrapErr("list plans", rows.Err())
}

func (p *pgQueries) GetPackage(ctx context.Context, packageID int64) (*types.Package, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	var pkg types.Package
	err := p.q.QueryRow(ctx, `
SELECT id, title, description, price
FROM packages
WHERE id = $1
`, packageID).Scan(&pkg.ID, &pkg.Title, &pkg.Description, &pkg.Price)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("package %d", packageID), err)
	}
	return &pkg, nil
}

func (p *pgQueries) ListPackages(ctx context.Context) ([]types.Package, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	rows, err := p.q.Query(ctx, `
SELECT id, title, description, price
FROM packages
ORDER BY id
`)
	if err != nil {
		return nil, wrapErr("list packages", err)
	}
	defer rows.Close()

	pkgs := make([]types.Package, 0)
	for rows.Next() {
		var pkg types.Package
		if err := rows.Scan(&pkg.ID, &pkg.Title, &pkg.Description, &pkg.Price); err != nil {
			return nil, wrapErr("scan package", err)
		}
		pkgs = append(pkgs, pkg)
	}
	return pkgs, wrapErr("list packages", rows.Err())
}
