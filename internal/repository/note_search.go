package repository

import (
	"context"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/iliyamo/notes-marketplace/internal/model"
)

// Search page size bounds.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	MaxPage         = 10000
)

// NoteSearchQuery defines filters & pagination for searching notes.
// Every non-empty filter is a case-insensitive substring match; filters
// are ANDed. Keyword matches title, description or summary.
type NoteSearchQuery struct {
	University    string
	CourseCode    string
	BookReference string
	Keyword       string
	Page          int
	PageSize      int
}

// Normalize clamps pagination to sane bounds.
func (q NoteSearchQuery) Normalize() NoteSearchQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Page > MaxPage {
		q.Page = MaxPage
	}
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	q.University = strings.TrimSpace(q.University)
	q.CourseCode = strings.TrimSpace(q.CourseCode)
	q.BookReference = strings.TrimSpace(q.BookReference)
	q.Keyword = strings.TrimSpace(q.Keyword)
	return q
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}

// conditions builds the shared WHERE clause. DELETED notes are never
// discoverable.
func (q NoteSearchQuery) conditions() sq.And {
	cond := sq.And{sq.NotEq{"n.state": string(model.NoteDeleted)}}
	if q.University != "" {
		cond = append(cond, sq.Expr("LOWER(n.university) LIKE ?", containsPattern(q.University)))
	}
	if q.CourseCode != "" {
		cond = append(cond, sq.Expr("LOWER(n.course_code) LIKE ?", containsPattern(q.CourseCode)))
	}
	if q.BookReference != "" {
		cond = append(cond, sq.Expr("LOWER(n.book_reference) LIKE ?", containsPattern(q.BookReference)))
	}
	if q.Keyword != "" {
		p := containsPattern(q.Keyword)
		cond = append(cond, sq.Or{
			sq.Expr("LOWER(n.title) LIKE ?", p),
			sq.Expr("LOWER(n.description) LIKE ?", p),
			sq.Expr("LOWER(n.summary) LIKE ?", p),
		})
	}
	return cond
}

// Search returns one page of discoverable notes plus the total match
// count. Study content is never selected; keyword matching on the
// summary happens in SQL only.
func (r *NoteRepo) Search(ctx context.Context, q NoteSearchQuery) ([]model.Note, int64, error) {
	q = q.Normalize()
	cond := q.conditions()

	countSQL, countArgs, err := sq.Select("COUNT(*)").From("notes n").Where(cond).ToSql()
	if err != nil {
		return nil, 0, translate("build search count", err)
	}
	var total int64
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, translate("search count", err)
	}
	if total == 0 {
		return []model.Note{}, 0, nil
	}

	dataSQL, dataArgs, err := sq.Select(
		"n.id", "n.owner_id", "u.name", "n.title", "n.university", "n.course_code",
		"n.book_reference", "n.description", "n.price_cents", "n.downloads",
		"n.rating_sum", "n.rating_count", "n.state", "n.created_at", "n.updated_at",
	).
		From("notes n").
		Join("users u ON u.id = n.owner_id").
		Where(cond).
		OrderBy("n.created_at DESC", "n.id DESC").
		Limit(uint64(q.PageSize)).
		Offset(uint64((q.Page - 1) * q.PageSize)).
		ToSql()
	if err != nil {
		return nil, 0, translate("build search", err)
	}

	rows, err := r.db.QueryContext(ctx, dataSQL, dataArgs...)
	if err != nil {
		return nil, 0, translate("search", err)
	}
	defer rows.Close()

	out := make([]model.Note, 0, q.PageSize)
	for rows.Next() {
		var (
			n       model.Note
			bookRef *string
		)
		if err := rows.Scan(&n.ID, &n.OwnerID, &n.OwnerName, &n.Title, &n.University, &n.CourseCode,
			&bookRef, &n.Description, &n.PriceCents, &n.Downloads,
			&n.RatingSum, &n.RatingCount, &n.State, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, 0, translate("search scan", err)
		}
		n.BookReference = bookRef
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, translate("search rows", err)
	}
	return out, total, nil
}
