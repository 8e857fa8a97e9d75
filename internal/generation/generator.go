// Package generation turns the text of an uploaded document into study
// aids: a summary, flashcards and a multiple choice quiz.
package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/notes-marketplace/internal/model"
)

var (
	// ErrUnreadable is returned when no text can be extracted from a document.
	ErrUnreadable = errors.New("unreadable document")
	// ErrInvalidContent is returned when a generator produced content that
	// fails validation.
	ErrInvalidContent = errors.New("invalid generated content")
)

// Generator produces study content from plain text.
type Generator interface {
	Generate(ctx context.Context, text string) (model.StudyContent, error)
}

// Validate checks the minimum shape every stored note must have.
func Validate(c model.StudyContent) error {
	if strings.TrimSpace(c.Summary) == "" {
		return fmt.Errorf("%w: empty summary", ErrInvalidContent)
	}
	if len(c.Flashcards) == 0 {
		return fmt.Errorf("%w: no flashcards", ErrInvalidContent)
	}
	for i, f := range c.Flashcards {
		if strings.TrimSpace(f.Question) == "" || strings.TrimSpace(f.Answer) == "" {
			return fmt.Errorf("%w: flashcard %d is blank", ErrInvalidContent, i)
		}
	}
	for i, q := range c.Quiz {
		if len(q.Options) < 2 {
			return fmt.Errorf("%w: quiz %d has %d options", ErrInvalidContent, i, len(q.Options))
		}
		if q.Correct < 0 || q.Correct >= len(q.Options) {
			return fmt.Errorf("%w: quiz %d answer out of range", ErrInvalidContent, i)
		}
	}
	return nil
}
