package service

import (
	"context"
	"io"
	"time"

	"github.com/iliyamo/notes-marketplace/internal/dbx"
	"github.com/iliyamo/notes-marketplace/internal/generation"
	"github.com/iliyamo/notes-marketplace/internal/logging"
	"github.com/iliyamo/notes-marketplace/internal/payment"
	"github.com/iliyamo/notes-marketplace/internal/queue"
	"github.com/iliyamo/notes-marketplace/internal/repository"
	"github.com/iliyamo/notes-marketplace/internal/storage"
)

// SearchInvalidator drops cached search responses after a write that
// changes what search would return.
type SearchInvalidator interface {
	Invalidate(ctx context.Context) error
}

type noopInvalidator struct{}

func (noopInvalidator) Invalidate(context.Context) error { return nil }

// AuthConfig carries token and hashing parameters.
type AuthConfig struct {
	JWTSecret      string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int
}

// Deps bundles the collaborators shared by all services. Optional
// fields (Events, Search, Log, Extract, Now) fall back to defaults.
type Deps struct {
	Tx        dbx.Transactor
	Repos     repository.Manager
	Log       logging.Logger
	Events    queue.Publisher
	Payments  payment.Gateway
	Store     storage.Store
	Generator generation.Generator
	Extract   func(r io.ReaderAt, size int64) (string, error)
	Search    SearchInvalidator
	Auth      AuthConfig
	Now       func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Log == nil {
		d.Log = logging.Nop()
	}
	if d.Events == nil {
		d.Events = queue.NopPublisher{}
	}
	if d.Search == nil {
		d.Search = noopInvalidator{}
	}
	if d.Extract == nil {
		d.Extract = generation.ExtractText
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	return d
}

// invalidateSearch is best effort; stale entries expire with the cache TTL.
func (d Deps) invalidateSearch(ctx context.Context) {
	if err := d.Search.Invalidate(ctx); err != nil {
		d.Log.Warn(ctx, "search cache invalidation failed", "err", err)
	}
}
