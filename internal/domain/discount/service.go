package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// Redemption errors.
var (
	ErrEmptyEmail = errors.New("email required")
	ErrNotFound   = errors.New("discount code not found")
)

// Service resolves declared codes and usage counts from their repositories
// and runs the pure evaluator over the snapshot. Redeem appends usage records
// after a successful checkout.
type Service struct {
	defs  DefinitionRepository
	usage UsageRepository
	now   func() time.Time
}

// NewService creates a Service backed by the given repositories.
func NewService(defs DefinitionRepository, usage UsageRepository) *Service {
	return &Service{defs: defs, usage: usage, now: time.Now}
}

// Evaluate fetches the definitions and usage counts for the order's declared
// codes, then evaluates the order. The order snapshot is never mutated and
// no usage is consumed.
func (s *Service) Evaluate(ctx context.Context, order Order) (*Result, error) {
	codes := make([]string, 0, len(order.Codes))
	for _, raw := range order.Codes {
		if code := NormalizeCode(raw); code != "" {
			codes = append(codes, code)
		}
	}

	if len(codes) == 0 {
		return &Result{}, nil
	}

	defs, err := s.defs.FindByCodes(ctx, codes)
	if err != nil {
		return nil, errors.Wrap(err, "find definitions")
	}

	usage, err := s.usage.Counts(ctx, codes, NormalizeEmail(order.Email))
	if err != nil {
		return nil, errors.Wrap(err, "fetch usage counts")
	}

	result := Evaluate(order, defs, usage, s.now())
	return &result, nil
}

// Redeem records one successful application of a code to a completed order.
// The write is transactional in the repository so usage counts stay
// consistent with the redemption (see UsageRepository.Record).
func (s *Service) Redeem(ctx context.Context, rec UsageRecord) error {
	rec.Code = NormalizeCode(rec.Code)
	rec.Email = NormalizeEmail(rec.Email)
	if rec.Code == "" {
		return ErrEmptyCode
	}
	if rec.Email == "" {
		return ErrEmptyEmail
	}

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.UsedAt.IsZero() {
		rec.UsedAt = s.now()
	}

	if err := s.usage.Record(ctx, &rec); err != nil {
		return errors.Wrapf(err, "record usage of %q", rec.Code)
	}
	return nil
}
