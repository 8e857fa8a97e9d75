package handler

import (
    "math"
    "time"

    "github.com/iliyamo/notes-marketplace/internal/model"
    "github.com/iliyamo/notes-marketplace/internal/service"
)

// ----- response DTOs -----

type tokenPart struct {
    Token   string    `json:"token"`
    Expires time.Time `json:"expires"`
}

type userPart struct {
    ID         uint64 `json:"id"`
    Email      string `json:"email"`
    Name       string `json:"name"`
    University string `json:"university"`
}

type authResp struct {
    User    userPart  `json:"user"`
    Access  tokenPart `json:"access"`
    Refresh tokenPart `json:"refresh"`
}

func toUser(u model.User) userPart {
    return userPart{ID: u.ID, Email: u.Email, Name: u.Name, University: u.University}
}

func toAuth(s service.Session) authResp {
    return authResp{
        User:    toUser(s.User),
        Access:  tokenPart{Token: s.Access.Token, Expires: s.Access.Exp},
        Refresh: tokenPart{Token: s.Refresh.Raw, Expires: s.Refresh.Exp},
    }
}

type uploaderPart struct {
    ID   uint64 `json:"id"`
    Name string `json:"name"`
}

type noteResp struct {
    ID             uint64               `json:"id"`
    Title          string               `json:"title"`
    University     string               `json:"university"`
    CourseCode     string               `json:"course_code"`
    BookReference  *string              `json:"book_reference"`
    Description    string               `json:"description"`
    Price          float64              `json:"price"`
    PriceCents     int64                `json:"price_cents"`
    IsFree         bool                 `json:"is_free"`
    Uploader       uploaderPart         `json:"uploader"`
    Downloads      uint64               `json:"downloads"`
    Rating         float64              `json:"rating"`
    RatingCount    uint64               `json:"rating_count"`
    State          model.NoteState      `json:"state"`
    CreatedAt      time.Time            `json:"created_at"`
    UpdatedAt      time.Time            `json:"updated_at"`
    DeletedAt      *time.Time           `json:"deleted_at,omitempty"`
    Summary        string               `json:"summary,omitempty"`
    Flashcards     []model.Flashcard    `json:"flashcards,omitempty"`
    Quiz           []model.QuizQuestion `json:"quiz,omitempty"`
    AccessRequired *bool                `json:"access_required,omitempty"`
    IsOwner        *bool                `json:"is_owner,omitempty"`
}

// noteDetailResp is the single note view with its comments.
type noteDetailResp struct {
    noteResp
    Comments []commentResp `json:"comments"`
}

// roundRating rounds the mean to one decimal for display only.
func roundRating(r float64) float64 { return math.Round(r*10) / 10 }

func toNote(n *model.Note, withContent bool) noteResp {
    r := noteResp{
        ID:            n.ID,
        Title:         n.Title,
        University:    n.University,
        CourseCode:    n.CourseCode,
        BookReference: n.BookReference,
        Description:   n.Description,
        Price:         n.PriceCents.Float(),
        PriceCents:    int64(n.PriceCents),
        IsFree:        n.IsFree(),
        Uploader:      uploaderPart{ID: n.OwnerID, Name: n.OwnerName},
        Downloads:     n.Downloads,
        Rating:        roundRating(n.Rating()),
        RatingCount:   n.RatingCount,
        State:         n.State,
        CreatedAt:     n.CreatedAt,
        UpdatedAt:     n.UpdatedAt,
        DeletedAt:     n.DeletedAt,
    }
    if withContent {
        r.Summary = n.Content.Summary
        r.Flashcards = n.Content.Flashcards
        r.Quiz = n.Content.Quiz
    }
    return r
}

func toNotes(ns []model.Note, withContent bool) []noteResp {
    out := make([]noteResp, 0, len(ns))
    for i := range ns {
        out = append(out, toNote(&ns[i], withContent))
    }
    return out
}

func toNoteView(v service.NoteView) noteDetailResp {
    r := noteDetailResp{noteResp: toNote(v.Note, v.Access.Full)}
    required, owner := v.Access.AccessRequired(), v.Access.Owner
    r.AccessRequired, r.IsOwner = &required, &owner
    r.Comments = toComments(v.Comments)
    return r
}

type commentResp struct {
    ID        uint64       `json:"id"`
    NoteID    uint64       `json:"note_id"`
    Author    uploaderPart `json:"author"`
    Rating    int          `json:"rating"`
    Comment   string       `json:"comment"`
    CreatedAt time.Time    `json:"created_at"`
}

func toComment(c model.Comment) commentResp {
    return commentResp{
        ID:        c.ID,
        NoteID:    c.NoteID,
        Author:    uploaderPart{ID: c.AuthorID, Name: c.AuthorName},
        Rating:    c.Rating,
        Comment:   c.Body,
        CreatedAt: c.CreatedAt,
    }
}

func toComments(cs []model.Comment) []commentResp {
    out := make([]commentResp, 0, len(cs))
    for _, c := range cs {
        out = append(out, toComment(c))
    }
    return out
}

type balanceResp struct {
    TotalEarnings       float64 `json:"total_earnings"`
    TotalEarningsCents  int64   `json:"total_earnings_cents"`
    TotalWithdrawn      float64 `json:"total_withdrawn"`
    TotalWithdrawnCents int64   `json:"total_withdrawn_cents"`
    Available           float64 `json:"available_balance"`
    AvailableCents      int64   `json:"available_balance_cents"`
    CanWithdraw         bool    `json:"can_withdraw"`
    MinimumWithdrawal   float64 `json:"minimum_withdrawal"`
}

func toBalance(b model.Balance) balanceResp {
    return balanceResp{
        TotalEarnings:       b.Earnings.Float(),
        TotalEarningsCents:  int64(b.Earnings),
        TotalWithdrawn:      b.Withdrawn.Float(),
        TotalWithdrawnCents: int64(b.Withdrawn),
        Available:           b.Available().Float(),
        AvailableCents:      int64(b.Available()),
        CanWithdraw:         b.CanWithdraw(),
        MinimumWithdrawal:   model.MinimumWithdrawalCents.Float(),
    }
}
