// Package idgen generates user identifiers.
package idgen

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator generates unique identifiers.
// Implementations should be safe for concurrent use.
type Generator interface {
	Generate() (uuid.UUID, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func() (uuid.UUID, error)

func (f GeneratorFunc) Generate() (uuid.UUID, error) { return f() }

// DefaultRetries is how often V7 retries after a failed first attempt.
const DefaultRetries = 1

type v7Gen struct {
	maxRetries int
	newV7      func() (uuid.UUID, error)
}

type Option func(*v7Gen)

// WithRetries sets how many times to retry after the initial attempt.
// Set to 0 to disable retries; negative values are ignored.
func WithRetries(n int) Option {
	return func(g *v7Gen) {
		if n >= 0 {
			g.maxRetries = n
		}
	}
}

// NewV7 returns a Generator that produces time-ordered UUID v7 values,
// which keep the users primary key index append-mostly.
func NewV7(opts ...Option) Generator {
	g := &v7Gen{maxRetries: DefaultRetries, newV7: uuid.NewV7}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *v7Gen) Generate() (uuid.UUID, error) {
	var last error
	for range g.maxRetries + 1 {
		id, err := g.newV7()
		if err == nil {
			return id, nil
		}
		last = err
	}
	return uuid.Nil, fmt.Errorf("uuid v7 generation failed after %d attempts: %w", g.maxRetries+1, last)
}
