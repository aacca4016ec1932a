// Package shipmentno issues human-readable shipment numbers of the form F-NNNNN.
package shipmentno

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
)

const (
	Prefix             = "F-"
	DefaultMaxAttempts = 20

	minNumber = 10000
	span      = 90000
)

var ErrExhausted = errors.New("shipment number generation exhausted")

var pattern = regexp.MustCompile(`^F-[0-9]{5}$`)

// Valid reports whether code has the shipment number format.
func Valid(code string) bool {
	return pattern.MatchString(code)
}

// Checker reports whether a shipment number is already taken.
type Checker interface {
	ShipmentNumberExists(ctx context.Context, code string) (bool, error)
}

type Generator struct {
	checker     Checker
	maxAttempts int
	intn        func(n int) int
}

type Option func(*Generator)

// WithSource replaces the random source, mostly for tests.
func WithSource(intn func(n int) int) Option {
	return func(g *Generator) {
		g.intn = intn
	}
}

func NewGenerator(checker Checker, maxAttempts int, opts ...Option) *Generator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	g := &Generator{
		checker:     checker,
		maxAttempts: maxAttempts,
		intn:        rand.Intn,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate probes candidates until one is free. Nothing is reserved: two
// callers can receive the same code before either persists it, so inserts
// must still rely on the unique index.
func (g *Generator) Generate(ctx context.Context) (string, error) {
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		candidate := fmt.Sprintf("%s%05d", Prefix, minNumber+g.intn(span))
		taken, err := g.checker.ShipmentNumberExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check shipment number %s: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w after %d attempts", ErrExhausted, g.maxAttempts)
}
