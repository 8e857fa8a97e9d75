package model

import "time"

// NoteState is the lifecycle state of a note.  A note starts ACTIVE,
// moves to EDITED on its first owner edit and stays there on further
// edits, and ends in DELETED.  DELETED is terminal for mutation but the
// row is kept so that the owner and prior purchasers can still read it.
type NoteState string

const (
    NoteActive  NoteState = "ACTIVE"
    NoteEdited  NoteState = "EDITED"
    NoteDeleted NoteState = "DELETED"
)

// Valid reports whether s is a known state.
func (s NoteState) Valid() bool {
    switch s {
    case NoteActive, NoteEdited, NoteDeleted:
        return true
    }
    return false
}

// Discoverable reports whether notes in this state appear in search.
func (s NoteState) Discoverable() bool { return s == NoteActive || s == NoteEdited }

// Purchasable reports whether new purchases and comments are accepted.
func (s NoteState) Purchasable() bool { return s.Discoverable() }

// Mutable reports whether the owner may still edit or delete the note.
func (s NoteState) Mutable() bool { return s.Discoverable() }

// AfterEdit returns the state a note moves to when its owner edits it.
func (s NoteState) AfterEdit() NoteState {
    if s == NoteDeleted {
        return s
    }
    return NoteEdited
}

// Flashcard is a single question/answer pair generated from a document.
type Flashcard struct {
    Question string `json:"question"`
    Answer   string `json:"answer"`
}

// QuizQuestion is a multiple choice question.  Correct indexes Options.
type QuizQuestion struct {
    Question    string   `json:"question"`
    Options     []string `json:"options"`
    Correct     int      `json:"correct"`
    Explanation string   `json:"explanation,omitempty"`
}

// StudyContent bundles everything the generation pipeline produces for
// one document.  It is immutable once the note is created.
type StudyContent struct {
    Summary    string
    Flashcards []Flashcard
    Quiz       []QuizQuestion
}

// Note represents a row in the `notes` table.  RatingSum and RatingCount
// are a materialized aggregate over the note's comments and are only
// changed in the same transaction that inserts a comment.
//
// Fields:
//  ID            – primary key identifier.
//  OwnerID       – uploading user.
//  OwnerName     – uploader display name (joined, read only).
//  Title, University, CourseCode, BookReference, Description – metadata.
//  PriceCents    – price in minor units; 0 means free.
//  Content       – AI generated summary/flashcards/quiz.
//  DocumentKey   – object storage key of the uploaded source document.
//  Downloads     – number of purchases; never decreases.
//  RatingSum     – sum of all comment ratings.
//  RatingCount   – number of comments.
//  State         – lifecycle state.
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last update timestamp.
//  DeletedAt     – soft delete timestamp (nullable).
type Note struct {
    ID            uint64
    OwnerID       uint64
    OwnerName     string
    Title         string
    University    string
    CourseCode    string
    BookReference *string
    Description   string
    PriceCents    Cents
    Content       StudyContent
    DocumentKey   string
    Downloads     uint64
    RatingSum     uint64
    RatingCount   uint64
    State         NoteState
    CreatedAt     time.Time
    UpdatedAt     time.Time
    DeletedAt     *time.Time
}

// IsFree reports whether the note has no price.
func (n *Note) IsFree() bool { return n.PriceCents == 0 }

// Rating returns the unrounded mean rating, or 0 when there are no comments.
func (n *Note) Rating() float64 {
    if n.RatingCount == 0 {
        return 0
    }
    return float64(n.RatingSum) / float64(n.RatingCount)
}

// NoteEdit carries the owner-editable fields of a note.
type NoteEdit struct {
    Title         string
    University    string
    CourseCode    string
    BookReference *string
    Description   string
    PriceCents    Cents
}
