package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/iliyamo/notes-marketplace/internal/dbx"
	"github.com/iliyamo/notes-marketplace/internal/model"
)

// NoteRepo manages persistence for notes. Study content (summary,
// flashcards, quiz) lives on the note row; flashcards and quiz are JSON
// columns.
type NoteRepo struct{ db dbx.DBTX }

func NewNoteRepo(db dbx.DBTX) *NoteRepo { return &NoteRepo{db: db} }

// noteSelect is shared by every read so scanNote sees one column order.
const noteSelect = `SELECT n.id, n.owner_id, u.name, n.title, n.university, n.course_code,
       n.book_reference, n.description, n.price_cents, n.summary, n.flashcards, n.quiz,
       n.document_key, n.downloads, n.rating_sum, n.rating_count, n.state,
       n.created_at, n.updated_at, n.deleted_at
  FROM notes n
  JOIN users u ON u.id = n.owner_id`

type rowScanner interface{ Scan(dest ...any) error }

func scanNote(s rowScanner) (model.Note, error) {
	var (
		n          model.Note
		bookRef    sql.NullString
		deletedAt  sql.NullTime
		flashcards []byte
		quiz       []byte
	)
	err := s.Scan(&n.ID, &n.OwnerID, &n.OwnerName, &n.Title, &n.University, &n.CourseCode,
		&bookRef, &n.Description, &n.PriceCents, &n.Content.Summary, &flashcards, &quiz,
		&n.DocumentKey, &n.Downloads, &n.RatingSum, &n.RatingCount, &n.State,
		&n.CreatedAt, &n.UpdatedAt, &deletedAt)
	if err != nil {
		return n, err
	}
	if bookRef.Valid {
		v := bookRef.String
		n.BookReference = &v
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		n.DeletedAt = &t
	}
	if len(flashcards) > 0 {
		if err := json.Unmarshal(flashcards, &n.Content.Flashcards); err != nil {
			return n, fmt.Errorf("decode flashcards: %w", err)
		}
	}
	if len(quiz) > 0 {
		if err := json.Unmarshal(quiz, &n.Content.Quiz); err != nil {
			return n, fmt.Errorf("decode quiz: %w", err)
		}
	}
	return n, nil
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

// Create inserts a new ACTIVE note and sets its ID.
func (r *NoteRepo) Create(ctx context.Context, n *model.Note) error {
	fc := n.Content.Flashcards
	if fc == nil {
		fc = []model.Flashcard{}
	}
	qz := n.Content.Quiz
	if qz == nil {
		qz = []model.QuizQuestion{}
	}
	flashcards, err := json.Marshal(fc)
	if err != nil {
		return fmt.Errorf("encode flashcards: %w", err)
	}
	quiz, err := json.Marshal(qz)
	if err != nil {
		return fmt.Errorf("encode quiz: %w", err)
	}
	n.State = model.NoteActive
	const q = `INSERT INTO notes (owner_id, title, university, course_code, book_reference, description,
                   price_cents, summary, flashcards, quiz, document_key, state)
               VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`
	res, err := r.db.ExecContext(ctx, q, n.OwnerID, n.Title, n.University, n.CourseCode,
		nullString(n.BookReference), n.Description, n.PriceCents, n.Content.Summary,
		flashcards, quiz, n.DocumentKey, n.State)
	if err != nil {
		return translate("insert note", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return translate("insert note", err)
	}
	n.ID = uint64(id)
	return nil
}

// GetByID returns the note in any state, including DELETED.
func (r *NoteRepo) GetByID(ctx context.Context, id uint64) (*model.Note, error) {
	n, err := scanNote(r.db.QueryRowContext(ctx, noteSelect+" WHERE n.id=? LIMIT 1", id))
	if err != nil {
		return nil, translate("get note", err)
	}
	return &n, nil
}

// LockByID reads the note row with an exclusive lock held until the
// surrounding transaction ends. Only the notes row is locked so that a
// purchase never blocks on the owner's users row (held by withdrawals).
func (r *NoteRepo) LockByID(ctx context.Context, id uint64) (*model.Note, error) {
	const q = `SELECT id, owner_id, price_cents, state, downloads, rating_sum, rating_count
                 FROM notes WHERE id=? FOR UPDATE`
	var n model.Note
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&n.ID, &n.OwnerID, &n.PriceCents, &n.State, &n.Downloads, &n.RatingSum, &n.RatingCount)
	if err != nil {
		return nil, translate("lock note", err)
	}
	return &n, nil
}

// Update writes the owner-editable fields and the new state. AI content,
// downloads and rating counters are never touched here.
func (r *NoteRepo) Update(ctx context.Context, id uint64, e model.NoteEdit, state model.NoteState) error {
	const q = `UPDATE notes SET title=?, university=?, course_code=?, book_reference=?, description=?,
                   price_cents=?, state=?
                WHERE id=? AND state <> 'DELETED'`
	res, err := r.db.ExecContext(ctx, q, e.Title, e.University, e.CourseCode,
		nullString(e.BookReference), e.Description, e.PriceCents, state, id)
	if err != nil {
		return translate("update note", err)
	}
	return r.requireExisting(ctx, res, id)
}

// SoftDelete moves the note to DELETED and stamps deleted_at.
func (r *NoteRepo) SoftDelete(ctx context.Context, id uint64) error {
	const q = `UPDATE notes SET state='DELETED', deleted_at=UTC_TIMESTAMP() WHERE id=? AND state <> 'DELETED'`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return translate("delete note", err)
	}
	return r.requireExisting(ctx, res, id)
}

// requireExisting distinguishes "no row" from "no change" after an
// UPDATE guarded by state <> 'DELETED'.
func (r *NoteRepo) requireExisting(ctx context.Context, res sql.Result, id uint64) error {
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	var one int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM notes WHERE id=? AND state <> 'DELETED'", id).Scan(&one)
	return translate("check note", err)
}

// IncrementDownloads bumps the purchase counter by one.
func (r *NoteRepo) IncrementDownloads(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx, "UPDATE notes SET downloads = downloads + 1 WHERE id=?", id)
	return translate("increment downloads", err)
}

// AddRating folds one rating into the materialized aggregate.
func (r *NoteRepo) AddRating(ctx context.Context, id uint64, rating int) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE notes SET rating_sum = rating_sum + ?, rating_count = rating_count + 1 WHERE id=?",
		rating, id)
	return translate("add rating", err)
}

// ListByOwner returns all notes uploaded by ownerID, deleted ones included.
func (r *NoteRepo) ListByOwner(ctx context.Context, ownerID uint64) ([]model.Note, error) {
	return r.list(ctx, "list owner notes",
		noteSelect+" WHERE n.owner_id=? ORDER BY n.created_at DESC, n.id DESC", ownerID)
}

// ListPurchasedBy returns every note buyerID holds a purchase for, in
// purchase order (newest first), deleted ones included.
func (r *NoteRepo) ListPurchasedBy(ctx context.Context, buyerID uint64) ([]model.Note, error) {
	return r.list(ctx, "list purchased notes",
		noteSelect+" JOIN purchases p ON p.note_id = n.id WHERE p.buyer_id=? ORDER BY p.created_at DESC, p.id DESC",
		buyerID)
}

// CountByOwner counts notes uploaded by ownerID, deleted ones included.
func (r *NoteRepo) CountByOwner(ctx context.Context, ownerID uint64) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM notes WHERE owner_id=?", ownerID).Scan(&n)
	return n, translate("count owner notes", err)
}

func (r *NoteRepo) list(ctx context.Context, op, q string, args ...any) ([]model.Note, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, translate(op, err)
	}
	defer rows.Close()
	out := make([]model.Note, 0)
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, translate(op, err)
		}
		out = append(out, n)
	}
	return out, translate(op, rows.Err())
}
