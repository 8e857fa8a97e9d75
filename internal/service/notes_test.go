package service

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/notes-marketplace/internal/access"
	"github.com/iliyamo/notes-marketplace/internal/model"
	"github.com/iliyamo/notes-marketplace/internal/repository"
)

type stubGenerator struct {
	content model.StudyContent
	err     error
}

func (g stubGenerator) Generate(context.Context, string) (model.StudyContent, error) {
	return g.content, g.err
}

var sampleContent = model.StudyContent{
	Summary:    "Cells convert light to energy.",
	Flashcards: []model.Flashcard{{Question: "What is photosynthesis?", Answer: "Light to sugar."}},
	Quiz:       []model.QuizQuestion{{Question: "Where?", Options: []string{"Leaf", "Root"}, Correct: 0}},
}

func noteService(f *fixture, gen stubGenerator) *NoteService {
	d := f.deps
	d.Generator = gen
	d.Extract = func(io.ReaderAt, int64) (string, error) { return "Photosynthesis is the process.", nil }
	return NewNoteService(d)
}

func upload(price model.Cents) UploadInput {
	return UploadInput{
		Title: " Bio 101 ", University: "LU", CourseCode: "BIO101",
		PriceCents: price, Filename: "notes.PDF", Document: []byte("%PDF-1.4"),
	}
}

func TestUploadStoresDocumentAndNote(t *testing.T) {
	f := newFixture()
	owner := f.db.addUser("Seller")
	svc := noteService(f, stubGenerator{content: sampleContent})

	n, err := svc.Upload(context.Background(), owner, upload(10000))
	require.NoError(t, err)
	assert.Equal(t, "Bio 101", n.Title)
	assert.Equal(t, model.NoteActive, n.State)
	assert.Equal(t, sampleContent.Summary, n.Content.Summary)
	assert.Equal(t, 1, f.store.len())
	assert.Equal(t, 1, f.search.n)
}

func TestUploadValidation(t *testing.T) {
	f := newFixture()
	svc := noteService(f, stubGenerator{content: sampleContent})
	ctx := context.Background()

	in := upload(100)
	in.Filename = "notes.docx"
	_, err := svc.Upload(ctx, 1, in)
	assert.ErrorIs(t, err, ErrValidation)

	in = upload(-1)
	_, err = svc.Upload(ctx, 1, in)
	assert.ErrorIs(t, err, ErrValidation)

	in = upload(100)
	in.Document = nil
	_, err = svc.Upload(ctx, 1, in)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 0, f.store.len())
}

func TestUploadGenerationFailureLeavesNothing(t *testing.T) {
	f := newFixture()
	owner := f.db.addUser("Seller")

	svc := noteService(f, stubGenerator{err: errors.New("model unavailable")})
	_, err := svc.Upload(context.Background(), owner, upload(100))
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Equal(t, 0, f.store.len())

	svc = noteService(f, stubGenerator{content: model.StudyContent{Summary: "only a summary"}})
	_, err = svc.Upload(context.Background(), owner, upload(100))
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Equal(t, 0, f.store.len())

	notes, err := svc.Mine(context.Background(), owner)
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestUploadStoreFailure(t *testing.T) {
	f := newFixture()
	f.store.putErr = errors.New("bucket gone")
	svc := noteService(f, stubGenerator{content: sampleContent})
	_, err := svc.Upload(context.Background(), 1, upload(100))
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestEditOwnership(t *testing.T) {
	f := newFixture()
	owner, other := f.db.addUser("Seller"), f.db.addUser("Other")
	id := f.db.addNote(owner, 100)
	svc := noteService(f, stubGenerator{})
	ctx := context.Background()
	edit := model.NoteEdit{Title: "New", University: "LU", CourseCode: "C1", PriceCents: 300}

	_, err := svc.Edit(ctx, other, id, edit)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Edit(ctx, owner, 9999, edit)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Edit(ctx, owner, id, model.NoteEdit{University: "LU", CourseCode: "C1"})
	assert.ErrorIs(t, err, ErrValidation)

	n, err := svc.Edit(ctx, owner, id, edit)
	require.NoError(t, err)
	assert.Equal(t, "New", n.Title)
	assert.Equal(t, model.NoteEdited, n.State)
	assert.Equal(t, model.Cents(300), n.PriceCents)
	assert.Equal(t, "s", n.Content.Summary)
}

func TestDeleteHidesFromEveryoneButOwnerAndBuyers(t *testing.T) {
	f := newFixture()
	owner, buyer, stranger := f.db.addUser("Seller"), f.db.addUser("Buyer"), f.db.addUser("Stranger")
	id := f.db.addNote(owner, 100)
	svc := noteService(f, stubGenerator{})
	ctx := context.Background()

	_, err := NewPurchaseService(f.deps).Purchase(ctx, buyer, id, "")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, stranger, id), ErrForbidden)
	require.NoError(t, svc.Delete(ctx, owner, id))
	assert.ErrorIs(t, svc.Delete(ctx, owner, id), ErrNotFound)
	_, err = svc.Edit(ctx, owner, id, model.NoteEdit{Title: "x", University: "LU", CourseCode: "C1"})
	assert.ErrorIs(t, err, ErrNotFound)

	res, err := svc.Search(ctx, repository.NoteSearchQuery{})
	require.NoError(t, err)
	assert.Zero(t, res.Total)

	_, err = svc.Detail(ctx, stranger, id)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Detail(ctx, access.Guest, id)
	assert.ErrorIs(t, err, ErrNotFound)

	v, err := svc.Detail(ctx, buyer, id)
	require.NoError(t, err)
	assert.True(t, v.Access.Full)
	assert.Equal(t, "s", v.Note.Content.Summary)

	v, err = svc.Detail(ctx, owner, id)
	require.NoError(t, err)
	assert.True(t, v.Access.Owner)

	purchased, err := svc.Purchased(ctx, buyer)
	require.NoError(t, err)
	require.Len(t, purchased, 1)
	assert.Equal(t, model.NoteDeleted, purchased[0].State)

	mine, err := svc.Mine(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestDetailGatesContent(t *testing.T) {
	f := newFixture()
	owner, viewer := f.db.addUser("Seller"), f.db.addUser("Viewer")
	paid := f.db.addNote(owner, 100)
	free := f.db.addNote(owner, 0)
	svc := noteService(f, stubGenerator{})
	ctx := context.Background()

	v, err := svc.Detail(ctx, viewer, paid)
	require.NoError(t, err)
	assert.True(t, v.Access.AccessRequired())
	assert.Empty(t, v.Note.Content.Summary)
	assert.Empty(t, v.Note.DocumentKey)
	assert.Equal(t, "Note", v.Note.Title)

	v, err = svc.Detail(ctx, access.Guest, free)
	require.NoError(t, err)
	assert.True(t, v.Access.AccessRequired())

	v, err = svc.Detail(ctx, viewer, free)
	require.NoError(t, err)
	assert.True(t, v.Access.Full)
	assert.NotEmpty(t, v.Note.Content.Flashcards)
}

func TestDocumentURL(t *testing.T) {
	f := newFixture()
	owner, viewer := f.db.addUser("Seller"), f.db.addUser("Viewer")
	id := f.db.addNote(owner, 100)
	svc := noteService(f, stubGenerator{})
	ctx := context.Background()

	_, err := svc.DocumentURL(ctx, access.Guest, id)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = svc.DocumentURL(ctx, viewer, id)
	assert.ErrorIs(t, err, ErrForbidden)

	url, err := svc.DocumentURL(ctx, owner, id)
	require.NoError(t, err)
	assert.Equal(t, "https://objects.test/k", url)
}

func TestSearchStripsContent(t *testing.T) {
	f := newFixture()
	owner := f.db.addUser("Seller")
	f.db.addNote(owner, 100)
	f.db.addNote(owner, 0)
	svc := noteService(f, stubGenerator{})

	res, err := svc.Search(context.Background(), repository.NoteSearchQuery{University: "lu"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Total)
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, repository.DefaultPageSize, res.PageSize)
	for _, n := range res.Notes {
		assert.Empty(t, n.Content.Summary)
		assert.Empty(t, n.DocumentKey)
	}
}
