package discount

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// Drip campaign codes are handed out one per email send, so they must be
// unique and unguessable. Codes look like DRIP-10OFF-K7XQ2M.

// DripKind selects the canned discount attached to a generated drip code.
type DripKind string

const (
	Drip10Off    DripKind = "10OFF"
	Drip5Off     DripKind = "5OFF"
	DripFreeShip DripKind = "FREESHIP"
)

const (
	dripPrefix     = "DRIP-"
	dripRandomLen  = 6
	dripMaxUsesPer = 1
)

// dripCharset omits visually ambiguous characters (I, O, 0, 1, L).
const dripCharset = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// NewDripCode generates a fresh unique drip code for the given kind.
func NewDripCode(kind DripKind) (string, error) {
	random, err := randomToken(dripRandomLen)
	if err != nil {
		return "", errors.Wrap(err, "generate drip token")
	}
	return dripPrefix + string(kind) + "-" + random, nil
}

// IsDripCode reports whether a code was issued by the drip campaign
// generator.
func IsDripCode(code string) bool {
	return strings.HasPrefix(NormalizeCode(code), dripPrefix)
}

// DripDefinition builds the definition for a generated drip code: one-shot,
// non-stackable, expiring after the campaign window.
func DripDefinition(code string, kind DripKind, now time.Time, validFor time.Duration) (*Definition, error) {
	expires := now.Add(validFor)
	b := NewBuilder(code, dripName(kind)).
		Source(SourceDrip).
		Schedule(nil, &expires).
		UsageLimits(dripMaxUsesPer, dripMaxUsesPer)

	switch kind {
	case Drip10Off:
		b.Description("10% off your order").Percentage(10, 0, 0)
	case Drip5Off:
		b.Description("$5 off your order").FixedAmount(500, 0)
	case DripFreeShip:
		b.Description("Free shipping").FreeShipping(0)
	default:
		return nil, errors.Errorf("unknown drip kind %q", kind)
	}

	return b.Build(now)
}

func dripName(kind DripKind) string {
	switch kind {
	case Drip5Off:
		return "Drip: $5 off"
	case DripFreeShip:
		return "Drip: free shipping"
	default:
		return "Drip: 10% off"
	}
}

// randomToken draws n characters from dripCharset using rejection sampling
// so every character is equally likely.
func randomToken(n int) (string, error) {
	// Largest multiple of len(dripCharset) below 256; bytes at or above it
	// are redrawn to avoid modulo bias.
	limit := byte(256 - 256%len(dripCharset))

	out := make([]byte, 0, n)
	buf := make([]byte, n*2)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, dripCharset[int(b)%len(dripCharset)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
