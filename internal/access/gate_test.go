package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/notes-marketplace/internal/model"
)

func note(owner uint64, price model.Cents, state model.NoteState) *model.Note {
	return &model.Note{ID: 1, OwnerID: owner, PriceCents: price, State: state}
}

func TestResolve(t *testing.T) {
	const owner, buyer, other = 1, 2, 3

	tests := []struct {
		name      string
		viewer    uint64
		note      *model.Note
		purchased bool
		want      Decision
	}{
		{"owner sees active", owner, note(owner, 10000, model.NoteActive), false, Decision{Visible: true, Owner: true, Full: true}},
		{"owner sees deleted", owner, note(owner, 10000, model.NoteDeleted), false, Decision{Visible: true, Owner: true, Full: true}},
		{"buyer sees paid", buyer, note(owner, 10000, model.NoteEdited), true, Decision{Visible: true, Full: true}},
		{"buyer keeps deleted", buyer, note(owner, 10000, model.NoteDeleted), true, Decision{Visible: true, Full: true}},
		{"stranger previews paid", other, note(owner, 10000, model.NoteActive), false, Decision{Visible: true}},
		{"stranger loses deleted", other, note(owner, 10000, model.NoteDeleted), false, Decision{}},
		{"stranger reads free", other, note(owner, 0, model.NoteActive), false, Decision{Visible: true, Full: true}},
		{"free deleted stays hidden", other, note(owner, 0, model.NoteDeleted), false, Decision{}},
		{"guest previews free", Guest, note(owner, 0, model.NoteActive), false, Decision{Visible: true}},
		{"guest never entitled", Guest, note(owner, 10000, model.NoteActive), true, Decision{Visible: true}},
		{"nil note", other, nil, false, Decision{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.viewer, tt.note, tt.purchased)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got.Visible && !got.Full, got.AccessRequired())
		})
	}
}

func TestCheckPurchase(t *testing.T) {
	assert.Equal(t, PurchaseAllowed, CheckPurchase(2, note(1, 100, model.NoteActive)))
	assert.Equal(t, PurchaseAllowed, CheckPurchase(2, note(1, 100, model.NoteEdited)))
	assert.Equal(t, PurchaseOwnNote, CheckPurchase(1, note(1, 100, model.NoteActive)))
	assert.Equal(t, PurchaseUnavailable, CheckPurchase(2, note(1, 100, model.NoteDeleted)))
	assert.Equal(t, PurchaseUnavailable, CheckPurchase(1, note(1, 100, model.NoteDeleted)))
	assert.Equal(t, PurchaseAnonymous, CheckPurchase(Guest, note(1, 100, model.NoteActive)))
	assert.Equal(t, PurchaseUnavailable, CheckPurchase(2, nil))
}
