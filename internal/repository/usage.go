package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tortilleria/promo-service/internal/domain/discount"
)

const (
	usageCountsSQL = `SELECT code, COUNT(*),
		COUNT(*) FILTER (WHERE customer_email = $2)
		FROM discount_usages WHERE code = ANY($1) GROUP BY code`

	recordUsageSQL = `INSERT INTO discount_usages
		(id, code, customer_email, order_id, order_number, subtotal, discount_applied, used_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	incrementUsageCountSQL = `UPDATE discount_codes
		SET current_usage_count = current_usage_count + 1 WHERE code = $1`

	usageStatsSQL = `SELECT COUNT(*), COUNT(DISTINCT customer_email),
		COALESCE(SUM(discount_applied), 0)
		FROM discount_usages WHERE code = $1`

	recentUsagesSQL = `SELECT id, code, customer_email, order_id, order_number,
		subtotal, discount_applied, used_at
		FROM discount_usages WHERE code = $1 ORDER BY used_at DESC LIMIT $2`
)

// recentUsageLimit bounds the usage history returned with admin stats.
const recentUsageLimit = 20

var _ discount.UsageRepository = (*UsageRepository)(nil)

// UsageRepository implements discount.UsageRepository backed by PostgreSQL.
// Usages are append-only; the denormalized counter on discount_codes is kept
// in step inside the same transaction.
type UsageRepository struct {
	pool *pgxpool.Pool
}

// NewUsageRepository returns a UsageRepository that uses the given pool.
func NewUsageRepository(pool *pgxpool.Pool) *UsageRepository {
	return &UsageRepository{pool: pool}
}

// Counts returns the total and per-email redemption counts for each of the
// given codes in a single round trip. Codes that were never redeemed are
// absent from the result, which the evaluator reads as zero.
func (r *UsageRepository) Counts(ctx context.Context, codes []string, email string) (discount.UsageCounts, error) {
	counts := make(discount.UsageCounts, len(codes))
	if len(codes) == 0 {
		return counts, nil
	}

	rows, err := r.pool.Query(ctx, usageCountsSQL, codes, discount.NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("counting usages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			code  string
			usage discount.Usage
		)
		if err := rows.Scan(&code, &usage.Total, &usage.ByEmail); err != nil {
			return nil, fmt.Errorf("counting usages: %w", err)
		}
		counts[code] = usage
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("counting usages: %w", err)
	}
	return counts, nil
}

// Record appends one redemption and bumps the definition's usage counter in
// the same transaction.
func (r *UsageRepository) Record(ctx context.Context, rec *discount.UsageRecord) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("recording usage of %q: %w", rec.Code, err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, recordUsageSQL,
		rec.ID, rec.Code, rec.Email, rec.OrderID, rec.OrderNumber,
		rec.Subtotal, rec.DiscountApplied, rec.UsedAt,
	)
	if err != nil {
		return fmt.Errorf("recording usage of %q: %w", rec.Code, err)
	}

	if _, err = tx.Exec(ctx, incrementUsageCountSQL, rec.Code); err != nil {
		return fmt.Errorf("recording usage of %q: %w", rec.Code, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("recording usage of %q: %w", rec.Code, err)
	}
	return nil
}

// Stats aggregates redemptions of one code and attaches its most recent
// usage records.
func (r *UsageRepository) Stats(ctx context.Context, code string) (*discount.UsageStats, error) {
	code = discount.NormalizeCode(code)

	var stats discount.UsageStats
	err := r.pool.QueryRow(ctx, usageStatsSQL, code).Scan(
		&stats.TotalUses, &stats.UniqueEmails, &stats.TotalDiscountGiven,
	)
	if err != nil {
		return nil, fmt.Errorf("aggregating usage stats for %q: %w", code, err)
	}

	rows, err := r.pool.Query(ctx, recentUsagesSQL, code, recentUsageLimit)
	if err != nil {
		return nil, fmt.Errorf("loading recent usages for %q: %w", code, err)
	}

	stats.Recent, err = pgx.CollectRows(rows, scanUsageRecord)
	if err != nil {
		return nil, fmt.Errorf("loading recent usages for %q: %w", code, err)
	}
	return &stats, nil
}

func scanUsageRecord(row pgx.CollectableRow) (discount.UsageRecord, error) {
	var rec discount.UsageRecord
	err := row.Scan(
		&rec.ID, &rec.Code, &rec.Email, &rec.OrderID, &rec.OrderNumber,
		&rec.Subtotal, &rec.DiscountApplied, &rec.UsedAt,
	)
	return rec, err
}
