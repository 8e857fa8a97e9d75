package repository

import (
	"context"

	"github.com/iliyamo/notes-marketplace/internal/dbx"
	"github.com/iliyamo/notes-marketplace/internal/model"
)

type CommentRepo struct{ db dbx.DBTX }

func NewCommentRepo(db dbx.DBTX) *CommentRepo { return &CommentRepo{db: db} }

// Create inserts c with c.CreatedAt as the stored timestamp and sets
// its ID. The caller is responsible for updating the note's rating
// aggregate in the same transaction.
func (r *CommentRepo) Create(ctx context.Context, c *model.Comment) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO comments (note_id, author_id, rating, body, created_at) VALUES (?,?,?,?,?)",
		c.NoteID, c.AuthorID, c.Rating, c.Body, c.CreatedAt.UTC())
	if err != nil {
		return translate("insert comment", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return translate("insert comment", err)
	}
	c.ID = uint64(id)
	return nil
}

// ListByNote returns the note's comments newest first with author names.
func (r *CommentRepo) ListByNote(ctx context.Context, noteID uint64) ([]model.Comment, error) {
	const q = `SELECT c.id, c.note_id, c.author_id, u.name, c.rating, c.body, c.created_at
                 FROM comments c
                 JOIN users u ON u.id = c.author_id
                WHERE c.note_id = ?
                ORDER BY c.created_at DESC, c.id DESC`
	rows, err := r.db.QueryContext(ctx, q, noteID)
	if err != nil {
		return nil, translate("list comments", err)
	}
	defer rows.Close()
	out := make([]model.Comment, 0)
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.ID, &c.NoteID, &c.AuthorID, &c.AuthorName, &c.Rating, &c.Body, &c.CreatedAt); err != nil {
			return nil, translate("scan comment", err)
		}
		out = append(out, c)
	}
	return out, translate("list comments", rows.Err())
}
