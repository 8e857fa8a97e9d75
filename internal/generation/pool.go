package generation

import (
	"context"

	"github.com/iliyamo/notes-marketplace/internal/model"
)

// Pool bounds the number of concurrent generations. It wraps another
// Generator and is itself a Generator, so uploads stay synchronous while
// the expensive step never runs more than size at a time.
type Pool struct {
	next  Generator
	slots chan struct{}
}

// NewPool creates a pool with the provided concurrency.
func NewPool(next Generator, size int) *Pool {
	if size <= 0 {
		size = 4
	}
	return &Pool{next: next, slots: make(chan struct{}, size)}
}

// Generate waits for a free slot or ctx cancellation.
func (p *Pool) Generate(ctx context.Context, text string) (model.StudyContent, error) {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return model.StudyContent{}, ctx.Err()
	}
	defer func() { <-p.slots }()
	return p.next.Generate(ctx, text)
}

// Size returns the pool capacity.
func (p *Pool) Size() int { return cap(p.slots) }

// InFlight returns the number of generations currently running.
func (p *Pool) InFlight() int { return len(p.slots) }
