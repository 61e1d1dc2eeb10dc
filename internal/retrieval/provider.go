package retrieval

import (
	"errors"
	"fmt"
	"sync"
)

// ErrRetrieverUnavailable is returned when the engine could not be
// constructed. It stays returned for the life of the Provider.
var ErrRetrieverUnavailable = errors.New("retriever unavailable")

// Provider constructs an Engine on first use and shares it afterwards.
// Concurrent first calls run the constructor once.
type Provider struct {
	build func() (*Engine, error)

	once   sync.Once
	engine *Engine
	err    error
}

// NewProvider returns a provider that calls build at most once
func NewProvider(build func() (*Engine, error)) *Provider {
	return &Provider{build: build}
}

// Engine returns the shared engine, constructing it if needed
func (p *Provider) Engine() (*Engine, error) {
	p.once.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				p.err = fmt.Errorf("%w: panic during construction: %v", ErrRetrieverUnavailable, r)
			}
		}()

		engine, err := p.build()
		if err != nil {
			p.err = fmt.Errorf("%w: %w", ErrRetrieverUnavailable, err)
			return
		}
		p.engine = engine
	})
	return p.engine, p.err
}
