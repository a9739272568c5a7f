package wizard

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

var ErrNumberSpaceExhausted = errors.New("no free invoice number found")

const (
	numberSpace          = 9999
	defaultNumberRetries = 16
)

// ExistsFunc reports whether an invoice number is already in use.
type ExistsFunc func(ctx context.Context, number string) (bool, error)

// RandomNumbers issues INV-{year}-{NNNN} numbers with NNNN drawn uniformly
// from 1..9999, redrawing when the number is already taken.
type RandomNumbers struct {
	exists   ExistsFunc
	intN     func(n int) int
	attempts int
}

func NewRandomNumbers(exists ExistsFunc) *RandomNumbers {
	return &RandomNumbers{exists: exists, intN: rand.IntN, attempts: defaultNumberRetries}
}

func (g *RandomNumbers) Next(ctx context.Context, issuedAt time.Time) (string, error) {
	for range g.attempts {
		number := FormatNumber(issuedAt.Year(), g.intN(numberSpace)+1)
		if g.exists == nil {
			return number, nil
		}
		taken, err := g.exists(ctx, number)
		if err != nil {
			return "", err
		}
		if !taken {
			return number, nil
		}
	}
	return "", ErrNumberSpaceExhausted
}

func FormatNumber(year int, sequence int) string {
	return fmt.Sprintf("INV-%d-%04d", year, sequence)
}
