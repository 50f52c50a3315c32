// Package reference builds human-facing reference numbers for ledger rows.
//
// A reference is prefix + unix milliseconds + random suffix. Uniqueness is
// enforced by probing the owning table and drawing again on collision.
package reference

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

const (
	base36Upper = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digits      = "0123456789"

	// DefaultMaxAttempts bounds the probe loop. At realistic request rates a
	// second draw is already rare.
	DefaultMaxAttempts = 1000
)

var ErrExhausted = errors.New("reference generator: no free reference number")

// ProbeFunc reports whether candidate is already taken.
type ProbeFunc func(ctx context.Context, candidate string) (bool, error)

type Generator struct {
	prefix      string
	alphabet    string
	suffixLen   int
	maxAttempts int
	now         func() time.Time
	random      io.Reader
}

func New(prefix, alphabet string, suffixLen int) *Generator {
	return &Generator{
		prefix:      prefix,
		alphabet:    alphabet,
		suffixLen:   suffixLen,
		maxAttempts: DefaultMaxAttempts,
		now:         time.Now,
		random:      rand.Reader,
	}
}

// NewTransactionGenerator is used for savings transactions, e.g. TXN1718000000000K3J9Q2A.
func NewTransactionGenerator() *Generator {
	return New("TXN", base36Upper, 7)
}

// NewRepaymentGenerator is used for credit repayments, e.g. CR1718000000000482.
func NewRepaymentGenerator() *Generator {
	return New("CR", digits, 3)
}

func (g *Generator) WithMaxAttempts(n int) *Generator {
	if n > 0 {
		g.maxAttempts = n
	}
	return g
}

func (g *Generator) Prefix() string {
	return g.prefix
}

// Candidate draws one reference without checking uniqueness.
func (g *Generator) Candidate() (string, error) {
	suffix, err := g.suffix()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(g.prefix)
	b.WriteString(strconv.FormatInt(g.now().UnixMilli(), 10))
	b.WriteString(suffix)
	return b.String(), nil
}

// Generate draws candidates until exists reports a free one.
func (g *Generator) Generate(ctx context.Context, exists ProbeFunc) (string, error) {
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		candidate, err := g.Candidate()
		if err != nil {
			return "", err
		}
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("probe reference %s: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", ErrExhausted
}

func (g *Generator) suffix() (string, error) {
	buf := make([]byte, g.suffixLen)
	if _, err := io.ReadFull(g.random, buf); err != nil {
		return "", fmt.Errorf("read random suffix: %w", err)
	}
	n := byte(len(g.alphabet))
	for i, b := range buf {
		buf[i] = g.alphabet[b%n]
	}
	return string(buf), nil
}
