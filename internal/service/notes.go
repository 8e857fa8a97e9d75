package service

import (
	"bytes"
	"context"
	"errors"
	"path"
	"strings"

	"github.com/iliyamo/notes-marketplace/internal/access"
	"github.com/iliyamo/notes-marketplace/internal/dbx"
	"github.com/iliyamo/notes-marketplace/internal/generation"
	"github.com/iliyamo/notes-marketplace/internal/model"
	"github.com/iliyamo/notes-marketplace/internal/repository"
	"github.com/iliyamo/notes-marketplace/internal/storage"
)

// NoteService owns the note lifecycle: upload, edit, soft delete and
// the gated read paths.
type NoteService struct{ d Deps }

func NewNoteService(d Deps) *NoteService { return &NoteService{d: d.withDefaults()} }

// UploadInput is a validated multipart upload.
type UploadInput struct {
	Title         string
	University    string
	CourseCode    string
	BookReference *string
	Description   string
	PriceCents    model.Cents
	Filename      string
	ContentType   string
	Document      []byte
}

func trimmedPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}

func validateMeta(title, university, courseCode string, price model.Cents) error {
	switch {
	case title == "":
		return validation("title is required")
	case university == "":
		return validation("university is required")
	case courseCode == "":
		return validation("course_code is required")
	case price < 0:
		return validation("price must not be negative")
	}
	return nil
}

// Upload stores the raw document, generates study content and only then
// inserts the note. Any failure after the document was stored removes
// it again, so a failed upload leaves neither a note nor an orphan file.
func (s *NoteService) Upload(ctx context.Context, ownerID uint64, in UploadInput) (*model.Note, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.University = strings.TrimSpace(in.University)
	in.CourseCode = strings.TrimSpace(in.CourseCode)
	in.Description = strings.TrimSpace(in.Description)
	in.BookReference = trimmedPtr(in.BookReference)
	if err := validateMeta(in.Title, in.University, in.CourseCode, in.PriceCents); err != nil {
		return nil, err
	}
	if len(in.Document) == 0 {
		return nil, validation("document is required")
	}
	if !strings.EqualFold(path.Ext(in.Filename), ".pdf") {
		return nil, validation("only PDF files are allowed")
	}

	key := storage.NewKey(ownerID, in.Filename, s.d.Now())
	contentType := in.ContentType
	if contentType == "" {
		contentType = "application/pdf"
	}
	if err := s.d.Store.Put(ctx, key, contentType, bytes.NewReader(in.Document), int64(len(in.Document))); err != nil {
		return nil, upstream("store document", err)
	}

	note, err := s.generateAndInsert(ctx, ownerID, key, in)
	if err != nil {
		// The request context may already be done; cleanup must still run.
		if derr := s.d.Store.Delete(context.WithoutCancel(ctx), key); derr != nil {
			s.d.Log.Error(ctx, "orphaned document after failed upload", "key", key, "err", derr)
		}
		return nil, err
	}
	s.d.Log.Info(ctx, "note uploaded", "note_id", note.ID, "owner_id", ownerID, "price_cents", int64(note.PriceCents))
	s.d.invalidateSearch(ctx)
	return note, nil
}

func (s *NoteService) generateAndInsert(ctx context.Context, ownerID uint64, key string, in UploadInput) (*model.Note, error) {
	text, err := s.d.Extract(bytes.NewReader(in.Document), int64(len(in.Document)))
	if err != nil {
		return nil, upstream("extract text", err)
	}
	content, err := s.d.Generator.Generate(ctx, text)
	if err != nil {
		return nil, upstream("generate content", err)
	}
	if err := generation.Validate(content); err != nil {
		return nil, upstream("generate content", err)
	}
	n := &model.Note{
		OwnerID:       ownerID,
		Title:         in.Title,
		University:    in.University,
		CourseCode:    in.CourseCode,
		BookReference: in.BookReference,
		Description:   in.Description,
		PriceCents:    in.PriceCents,
		Content:       content,
		DocumentKey:   key,
	}
	if err := s.d.Repos.Notes(s.d.Tx.Conn()).Create(ctx, n); err != nil {
		return nil, upstream("insert note", err)
	}
	return n, nil
}

// lockOwned locks a non-deleted note and checks ownership.
func lockOwned(ctx context.Context, notes repository.Notes, ownerID, noteID uint64) (*model.Note, error) {
	n, err := notes.LockByID(ctx, noteID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !n.State.Mutable() {
		return nil, ErrNotFound
	}
	if n.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	return n, nil
}

// Edit updates owner-editable metadata. AI content, downloads and
// purchases are untouched; the note moves to EDITED.
func (s *NoteService) Edit(ctx context.Context, ownerID, noteID uint64, e model.NoteEdit) (*model.Note, error) {
	e.Title = strings.TrimSpace(e.Title)
	e.University = strings.TrimSpace(e.University)
	e.CourseCode = strings.TrimSpace(e.CourseCode)
	e.Description = strings.TrimSpace(e.Description)
	e.BookReference = trimmedPtr(e.BookReference)
	if err := validateMeta(e.Title, e.University, e.CourseCode, e.PriceCents); err != nil {
		return nil, err
	}
	err := s.d.Tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		notes := s.d.Repos.Notes(tx)
		n, err := lockOwned(ctx, notes, ownerID, noteID)
		if err != nil {
			return err
		}
		return notes.Update(ctx, noteID, e, n.State.AfterEdit())
	})
	if err != nil {
		return nil, mapRepoErr(err)
	}
	s.d.Log.Info(ctx, "note edited", "note_id", noteID)
	s.d.invalidateSearch(ctx)
	return s.get(ctx, noteID)
}

// Delete soft-deletes the note. The raw document is kept since prior
// purchasers retain access to it.
func (s *NoteService) Delete(ctx context.Context, ownerID, noteID uint64) error {
	err := s.d.Tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		notes := s.d.Repos.Notes(tx)
		if _, err := lockOwned(ctx, notes, ownerID, noteID); err != nil {
			return err
		}
		return notes.SoftDelete(ctx, noteID)
	})
	if err != nil {
		return mapRepoErr(err)
	}
	s.d.Log.Info(ctx, "note deleted", "note_id", noteID)
	s.d.invalidateSearch(ctx)
	return nil
}

func (s *NoteService) get(ctx context.Context, noteID uint64) (*model.Note, error) {
	n, err := s.d.Repos.Notes(s.d.Tx.Conn()).GetByID(ctx, noteID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return n, nil
}

func mapRepoErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// NoteView is a note as seen by one viewer. When Access.Full is false
// the study content and document key have been cleared.
type NoteView struct {
	Note     *model.Note
	Access   access.Decision
	Comments []model.Comment
}

// resolve loads a note and applies the access gate for viewerID
// (access.Guest for anonymous requests).
func (s *NoteService) resolve(ctx context.Context, viewerID, noteID uint64) (*model.Note, access.Decision, error) {
	return resolveNote(ctx, s.d, viewerID, noteID)
}

func resolveNote(ctx context.Context, d Deps, viewerID, noteID uint64) (*model.Note, access.Decision, error) {
	db := d.Tx.Conn()
	n, err := d.Repos.Notes(db).GetByID(ctx, noteID)
	if err != nil {
		return nil, access.Decision{}, mapRepoErr(err)
	}
	purchased := false
	if viewerID != access.Guest && viewerID != n.OwnerID {
		if purchased, err = d.Repos.Purchases(db).Exists(ctx, viewerID, noteID); err != nil {
			return nil, access.Decision{}, err
		}
	}
	dec := access.Resolve(viewerID, n, purchased)
	if !dec.Visible {
		return nil, dec, ErrNotFound
	}
	return n, dec, nil
}

// Detail returns the gated note with its comments, newest first.
func (s *NoteService) Detail(ctx context.Context, viewerID, noteID uint64) (NoteView, error) {
	n, dec, err := s.resolve(ctx, viewerID, noteID)
	if err != nil {
		return NoteView{}, err
	}
	if !dec.Full {
		n.Content = model.StudyContent{}
		n.DocumentKey = ""
	}
	comments, err := s.d.Repos.Comments(s.d.Tx.Conn()).ListByNote(ctx, noteID)
	if err != nil {
		return NoteView{}, err
	}
	return NoteView{Note: n, Access: dec, Comments: comments}, nil
}

// DocumentURL returns a short lived download link for entitled viewers.
func (s *NoteService) DocumentURL(ctx context.Context, viewerID, noteID uint64) (string, error) {
	if viewerID == access.Guest {
		return "", ErrUnauthorized
	}
	n, dec, err := s.resolve(ctx, viewerID, noteID)
	if err != nil {
		return "", err
	}
	if !dec.Full {
		return "", ErrForbidden
	}
	url, err := s.d.Store.PresignGet(ctx, n.DocumentKey)
	if err != nil {
		return "", upstream("presign document", err)
	}
	return url, nil
}

// SearchResult is one page of discoverable notes without study content.
type SearchResult struct {
	Notes    []model.Note
	Total    int64
	Page     int
	PageSize int
}

func (s *NoteService) Search(ctx context.Context, q repository.NoteSearchQuery) (SearchResult, error) {
	q = q.Normalize()
	notes, total, err := s.d.Repos.Notes(s.d.Tx.Conn()).Search(ctx, q)
	if err != nil {
		return SearchResult{}, err
	}
	for i := range notes {
		notes[i].Content = model.StudyContent{}
		notes[i].DocumentKey = ""
	}
	return SearchResult{Notes: notes, Total: total, Page: q.Page, PageSize: q.PageSize}, nil
}

// Mine lists the owner's notes including deleted ones.
func (s *NoteService) Mine(ctx context.Context, ownerID uint64) ([]model.Note, error) {
	return s.d.Repos.Notes(s.d.Tx.Conn()).ListByOwner(ctx, ownerID)
}

// Purchased lists notes the buyer holds a purchase for, with full
// content, including notes deleted after the purchase.
func (s *NoteService) Purchased(ctx context.Context, buyerID uint64) ([]model.Note, error) {
	return s.d.Repos.Notes(s.d.Tx.Conn()).ListPurchasedBy(ctx, buyerID)
}
