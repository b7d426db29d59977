package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tortilleria/promo-service/internal/domain/discount"
)

const (
	definitionColumns = `code, name, description, source, active, starts_at, expires_at,
		min_order_amount, max_discount_amount, max_usage_total, max_usage_per_email,
		first_order_only, stackable, priority, rules, restrictions, created_at, created_by`

	findDefinitionsByCodesSQL = `SELECT ` + definitionColumns + `
		FROM discount_codes WHERE UPPER(code) = ANY($1)`

	findDefinitionByCodeSQL = `SELECT ` + definitionColumns + `
		FROM discount_codes WHERE UPPER(code) = UPPER($1)`

	createDefinitionSQL = `INSERT INTO discount_codes (code, name, description, source, active,
		starts_at, expires_at, min_order_amount, max_discount_amount, max_usage_total,
		max_usage_per_email, first_order_only, stackable, priority, rules, restrictions,
		created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	updateDefinitionSQL = `UPDATE discount_codes SET name = $2, description = $3, source = $4,
		active = $5, starts_at = $6, expires_at = $7, min_order_amount = $8,
		max_discount_amount = $9, max_usage_total = $10, max_usage_per_email = $11,
		first_order_only = $12, stackable = $13, priority = $14, rules = $15, restrictions = $16
		WHERE UPPER(code) = UPPER($1)`

	deleteDefinitionSQL = `DELETE FROM discount_codes WHERE UPPER(code) = UPPER($1)`
)

var _ discount.DefinitionRepository = (*DefinitionRepository)(nil)

// DefinitionRepository implements discount.DefinitionRepository backed by
// PostgreSQL. Rules and restrictions are stored as JSONB arrays whose element
// order is preserved.
type DefinitionRepository struct {
	pool *pgxpool.Pool
}

// NewDefinitionRepository returns a DefinitionRepository that uses the given pool.
func NewDefinitionRepository(pool *pgxpool.Pool) *DefinitionRepository {
	return &DefinitionRepository{pool: pool}
}

// FindByCodes fetches all definitions matching the given codes,
// case-insensitively. Codes with no definition are simply absent from the
// result; callers decide how to report them.
func (r *DefinitionRepository) FindByCodes(ctx context.Context, codes []string) ([]discount.Definition, error) {
	if len(codes) == 0 {
		return nil, nil
	}

	upper := make([]string, len(codes))
	for i, c := range codes {
		upper[i] = discount.NormalizeCode(c)
	}

	rows, err := r.pool.Query(ctx, findDefinitionsByCodesSQL, upper)
	if err != nil {
		return nil, fmt.Errorf("finding definitions by codes: %w", err)
	}

	defs, err := pgx.CollectRows(rows, scanDefinition)
	if err != nil {
		return nil, fmt.Errorf("finding definitions by codes: %w", err)
	}
	return defs, nil
}

// FindByCode looks up a single definition by its code (case-insensitive).
// Returns discount.ErrNotFound when no definition exists.
func (r *DefinitionRepository) FindByCode(ctx context.Context, code string) (*discount.Definition, error) {
	rows, err := r.pool.Query(ctx, findDefinitionByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding definition %q: %w", code, err)
	}

	def, err := pgx.CollectExactlyOneRow(rows, scanDefinition)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrNotFound
		}
		return nil, fmt.Errorf("finding definition %q: %w", code, err)
	}
	return &def, nil
}

// Create persists a new definition. The code is stored in its normalized
// (uppercase) form so lookups stay cheap.
func (r *DefinitionRepository) Create(ctx context.Context, def *discount.Definition) error {
	rulesJSON, restrictionsJSON := encodeDefinitionJSON(def)

	_, err := r.pool.Exec(ctx, createDefinitionSQL,
		discount.NormalizeCode(def.Code), def.Name, def.Description, string(def.Source),
		def.IsActive, def.StartsAt, def.ExpiresAt, def.MinOrderAmount, def.MaxDiscountAmount,
		def.MaxUsageTotal, def.MaxUsagePerEmail, def.FirstOrderOnly, def.Stackable,
		def.Priority, rulesJSON, restrictionsJSON, def.CreatedAt, def.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("creating definition %q: %w", def.Code, err)
	}
	return nil
}

// Update replaces every mutable field of an existing definition.
// Returns discount.ErrNotFound when the code does not exist.
func (r *DefinitionRepository) Update(ctx context.Context, def *discount.Definition) error {
	rulesJSON, restrictionsJSON := encodeDefinitionJSON(def)

	tag, err := r.pool.Exec(ctx, updateDefinitionSQL,
		def.Code, def.Name, def.Description, string(def.Source), def.IsActive,
		def.StartsAt, def.ExpiresAt, def.MinOrderAmount, def.MaxDiscountAmount,
		def.MaxUsageTotal, def.MaxUsagePerEmail, def.FirstOrderOnly, def.Stackable,
		def.Priority, rulesJSON, restrictionsJSON,
	)
	if err != nil {
		return fmt.Errorf("updating definition %q: %w", def.Code, err)
	}
	if tag.RowsAffected() == 0 {
		return discount.ErrNotFound
	}
	return nil
}

// Delete removes a definition and, via cascade, its usage records.
// Returns discount.ErrNotFound when the code does not exist.
func (r *DefinitionRepository) Delete(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, deleteDefinitionSQL, code)
	if err != nil {
		return fmt.Errorf("deleting definition %q: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return discount.ErrNotFound
	}
	return nil
}

// List returns a page of definitions matching the filter plus the total
// number of matches.
func (r *DefinitionRepository) List(ctx context.Context, filter discount.ListFilter) ([]discount.Definition, int, error) {
	where, args := buildListFilter(filter)

	var total int
	countSQL := `SELECT COUNT(*) FROM discount_codes` + where
	if err := r.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting definitions: %w", err)
	}

	listSQL := `SELECT ` + definitionColumns + ` FROM discount_codes` + where +
		` ORDER BY created_at DESC, code`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		listSQL += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		listSQL += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, listSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing definitions: %w", err)
	}

	defs, err := pgx.CollectRows(rows, scanDefinition)
	if err != nil {
		return nil, 0, fmt.Errorf("listing definitions: %w", err)
	}
	return defs, total, nil
}

func buildListFilter(filter discount.ListFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if filter.Source != "" {
		args = append(args, string(filter.Source))
		clauses = append(clauses, fmt.Sprintf("source = $%d", len(args)))
	}
	if filter.IsActive != nil {
		args = append(args, *filter.IsActive)
		clauses = append(clauses, fmt.Sprintf("active = $%d", len(args)))
	}
	if !filter.IncludeExpired {
		clauses = append(clauses, "(expires_at IS NULL OR expires_at > NOW())")
	}

	if len(clauses) == 0 {
		return "", nil
	}
	where := " WHERE " + clauses[0]
	for _, c := range clauses[1:] {
		where += " AND " + c
	}
	return where, args
}

func encodeDefinitionJSON(def *discount.Definition) (rules, restrictions []byte) {
	return discount.MarshalRules(def.Rules), discount.MarshalRestrictions(def.Restrictions)
}

func scanDefinition(row pgx.CollectableRow) (discount.Definition, error) {
	var (
		def              discount.Definition
		source           string
		startsAt         *time.Time
		expiresAt        *time.Time
		rulesJSON        []byte
		restrictionsJSON []byte
	)
	err := row.Scan(
		&def.Code, &def.Name, &def.Description, &source, &def.IsActive,
		&startsAt, &expiresAt, &def.MinOrderAmount, &def.MaxDiscountAmount,
		&def.MaxUsageTotal, &def.MaxUsagePerEmail, &def.FirstOrderOnly,
		&def.Stackable, &def.Priority, &rulesJSON, &restrictionsJSON,
		&def.CreatedAt, &def.CreatedBy,
	)
	if err != nil {
		return def, err
	}

	def.Source = discount.Source(source)
	def.StartsAt = startsAt
	def.ExpiresAt = expiresAt

	def.Rules, err = discount.UnmarshalRules(rulesJSON)
	if err != nil {
		return def, fmt.Errorf("unmarshaling rules for %q: %w", def.Code, err)
	}
	def.Restrictions, err = discount.UnmarshalRestrictions(restrictionsJSON)
	if err != nil {
		return def, fmt.Errorf("unmarshaling restrictions for %q: %w", def.Code, err)
	}
	return def, nil
}
