// Package access decides what a viewer may see of a note. It is pure:
// callers load the note and the viewer's entitlement and pass them in.
package access

import "github.com/iliyamo/notes-marketplace/internal/model"

// Guest is the viewer id of an unauthenticated request.
const Guest uint64 = 0

// Decision is the outcome of resolving a viewer against a note.
type Decision struct {
	// Visible is false when the viewer must be told the note does not
	// exist (a deleted note seen by a non-owner without a purchase).
	Visible bool
	// Owner is set when the viewer uploaded the note.
	Owner bool
	// Full grants summary, flashcards, quiz and the source document.
	Full bool
}

// AccessRequired reports whether the preview must be flagged as locked.
func (d Decision) AccessRequired() bool { return d.Visible && !d.Full }

// Resolve applies the gate rules:
//
//	owner                         -> full, any state
//	guest                         -> preview only, never entitled
//	purchased                     -> full, any state
//	authenticated and free note   -> full while the note is discoverable
//	otherwise                     -> preview
//
// Deleted notes are only visible to the owner and prior purchasers.
func Resolve(viewerID uint64, n *model.Note, purchased bool) Decision {
	if n == nil {
		return Decision{}
	}
	if viewerID != Guest && viewerID == n.OwnerID {
		return Decision{Visible: true, Owner: true, Full: true}
	}
	entitled := viewerID != Guest && purchased
	if n.State == model.NoteDeleted {
		if entitled {
			return Decision{Visible: true, Full: true}
		}
		return Decision{}
	}
	if entitled {
		return Decision{Visible: true, Full: true}
	}
	if viewerID != Guest && n.IsFree() {
		return Decision{Visible: true, Full: true}
	}
	return Decision{Visible: true}
}

// PurchaseCheck is the gate's verdict on a purchase attempt.
type PurchaseCheck int

const (
	PurchaseAllowed PurchaseCheck = iota
	// PurchaseAnonymous: guests cannot buy.
	PurchaseAnonymous
	// PurchaseUnavailable: the note is missing or deleted.
	PurchaseUnavailable
	// PurchaseOwnNote: the viewer uploaded the note.
	PurchaseOwnNote
)

// CheckPurchase decides whether viewerID may start a purchase of n. It
// does not consider existing entitlement; the purchase ledger enforces
// that under the note lock.
func CheckPurchase(viewerID uint64, n *model.Note) PurchaseCheck {
	switch {
	case viewerID == Guest:
		return PurchaseAnonymous
	case n == nil || !n.State.Purchasable():
		return PurchaseUnavailable
	case n.OwnerID == viewerID:
		return PurchaseOwnNote
	}
	return PurchaseAllowed
}
