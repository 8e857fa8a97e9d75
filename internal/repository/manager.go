package repository

import (
	"context"
	"time"

	"github.com/iliyamo/notes-marketplace/internal/dbx"
	"github.com/iliyamo/notes-marketplace/internal/model"
)

// Users persists accounts.
type Users interface {
	Create(ctx context.Context, u *model.User) error
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	LockByID(ctx context.Context, id uint64) (model.User, error)
	UpdateProfile(ctx context.Context, id uint64, name, university string) error
	UpdatePassword(ctx context.Context, id uint64, hash string) error
}

// Tokens persists hashed refresh tokens.
type Tokens interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// Notes persists notes and their materialized counters.
type Notes interface {
	Create(ctx context.Context, n *model.Note) error
	GetByID(ctx context.Context, id uint64) (*model.Note, error)
	LockByID(ctx context.Context, id uint64) (*model.Note, error)
	Update(ctx context.Context, id uint64, e model.NoteEdit, state model.NoteState) error
	SoftDelete(ctx context.Context, id uint64) error
	IncrementDownloads(ctx context.Context, id uint64) error
	AddRating(ctx context.Context, id uint64, rating int) error
	ListByOwner(ctx context.Context, ownerID uint64) ([]model.Note, error)
	ListPurchasedBy(ctx context.Context, buyerID uint64) ([]model.Note, error)
	CountByOwner(ctx context.Context, ownerID uint64) (int64, error)
	Search(ctx context.Context, q NoteSearchQuery) ([]model.Note, int64, error)
}

// Purchases persists entitlements. Create returns ErrDuplicate for a
// second (buyer, note) pair.
type Purchases interface {
	Create(ctx context.Context, p *model.Purchase) error
	Exists(ctx context.Context, buyerID, noteID uint64) (bool, error)
	CountByBuyer(ctx context.Context, buyerID uint64) (int64, error)
}

// Comments persists ratings and review text.
type Comments interface {
	Create(ctx context.Context, c *model.Comment) error
	ListByNote(ctx context.Context, noteID uint64) ([]model.Comment, error)
}

// Ledger persists append-only monetary entries and withdrawals.
type Ledger interface {
	Append(ctx context.Context, e *model.LedgerEntry) error
	Balance(ctx context.Context, userID uint64) (model.Balance, error)
	CreateWithdrawal(ctx context.Context, w *model.Withdrawal) error
}

// Manager vends repositories bound to a connection or transaction.
type Manager interface {
	Users(db dbx.DBTX) Users
	Tokens(db dbx.DBTX) Tokens
	Notes(db dbx.DBTX) Notes
	Purchases(db dbx.DBTX) Purchases
	Comments(db dbx.DBTX) Comments
	Ledger(db dbx.DBTX) Ledger
}

// MySQLManager vends MySQL-backed repository implementations.
type MySQLManager struct{}

// NewMySQLManager constructs a MySQL-backed Manager.
func NewMySQLManager() *MySQLManager { return &MySQLManager{} }

func (MySQLManager) Users(db dbx.DBTX) Users         { return NewUserRepo(db) }
func (MySQLManager) Tokens(db dbx.DBTX) Tokens       { return NewTokenRepo(db) }
func (MySQLManager) Notes(db dbx.DBTX) Notes         { return NewNoteRepo(db) }
func (MySQLManager) Purchases(db dbx.DBTX) Purchases { return NewPurchaseRepo(db) }
func (MySQLManager) Comments(db dbx.DBTX) Comments   { return NewCommentRepo(db) }
func (MySQLManager) Ledger(db dbx.DBTX) Ledger       { return NewLedgerRepo(db) }
