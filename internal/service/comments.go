package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/iliyamo/notes-marketplace/internal/dbx"
	"github.com/iliyamo/notes-marketplace/internal/model"
)

// MaxCommentLength bounds comment text in characters.
const MaxCommentLength = 2000

// CommentService records ratings and keeps the note aggregate in step.
type CommentService struct{ d Deps }

func NewCommentService(d Deps) *CommentService { return &CommentService{d: d.withDefaults()} }

// AddComment inserts the comment and folds its rating into the note's
// aggregate in the same transaction, under the note row lock. Any
// authenticated user may comment; no purchase is required.
func (s *CommentService) AddComment(ctx context.Context, noteID, authorID uint64, rating int, text string) (model.Comment, error) {
	if authorID == 0 {
		return model.Comment{}, ErrUnauthorized
	}
	text = strings.TrimSpace(text)
	if rating < 1 || rating > 5 {
		return model.Comment{}, validation("rating must be between 1 and 5")
	}
	if text == "" {
		return model.Comment{}, validation("comment must not be empty")
	}
	if utf8.RuneCountInString(text) > MaxCommentLength {
		return model.Comment{}, validation("comment longer than %d characters", MaxCommentLength)
	}

	// DATETIME keeps whole seconds; truncating makes the returned comment
	// match what a later List reads back.
	c := model.Comment{NoteID: noteID, AuthorID: authorID, Rating: rating, Body: text,
		CreatedAt: s.d.Now().UTC().Truncate(time.Second)}
	err := s.d.Tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		notes := s.d.Repos.Notes(tx)
		n, err := notes.LockByID(ctx, noteID)
		if err != nil {
			return err
		}
		if !n.State.Purchasable() {
			return ErrNotFound
		}
		if err := s.d.Repos.Comments(tx).Create(ctx, &c); err != nil {
			return err
		}
		return notes.AddRating(ctx, noteID, rating)
	})
	if err != nil {
		return model.Comment{}, mapRepoErr(err)
	}
	if u, err := s.d.Repos.Users(s.d.Tx.Conn()).GetByID(ctx, authorID); err == nil {
		c.AuthorName = u.Name
	}
	s.d.invalidateSearch(ctx)
	return c, nil
}

// List returns the comments of a note visible to viewerID (access.Guest
// for anonymous requests), newest first.
func (s *CommentService) List(ctx context.Context, viewerID, noteID uint64) ([]model.Comment, error) {
	if _, _, err := resolveNote(ctx, s.d, viewerID, noteID); err != nil {
		return nil, err
	}
	return s.d.Repos.Comments(s.d.Tx.Conn()).ListByNote(ctx, noteID)
}
