package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/notes-marketplace/internal/dbx"
	"github.com/iliyamo/notes-marketplace/internal/model"
	"github.com/iliyamo/notes-marketplace/internal/payment"
	"github.com/iliyamo/notes-marketplace/internal/repository"
)

// memDB is an in-memory stand-in for MySQL. Transactions are serialized
// and roll back by restoring a snapshot, which is enough to check the
// all-or-nothing behavior of the services.
type memDB struct {
	txMu sync.Mutex
	mu   sync.Mutex

	seq         uint64
	users       map[uint64]model.User
	tokens      map[string]model.RefreshToken
	notes       map[uint64]model.Note
	purchases   []model.Purchase
	comments    []model.Comment
	ledger      []model.LedgerEntry
	withdrawals []model.Withdrawal

	commitErr   error // returned instead of committing
	failLedger  error // returned by Ledger.Append
	failCreateP error // returned by Purchases.Create
}

func newMemDB() *memDB {
	return &memDB{
		users:  map[uint64]model.User{},
		tokens: map[string]model.RefreshToken{},
		notes:  map[uint64]model.Note{},
	}
}

type snapshot struct {
	seq         uint64
	users       map[uint64]model.User
	tokens      map[string]model.RefreshToken
	notes       map[uint64]model.Note
	purchases   []model.Purchase
	comments    []model.Comment
	ledger      []model.LedgerEntry
	withdrawals []model.Withdrawal
}

func (m *memDB) snapshot() snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := snapshot{
		seq:         m.seq,
		users:       map[uint64]model.User{},
		tokens:      map[string]model.RefreshToken{},
		notes:       map[uint64]model.Note{},
		purchases:   append([]model.Purchase(nil), m.purchases...),
		comments:    append([]model.Comment(nil), m.comments...),
		ledger:      append([]model.LedgerEntry(nil), m.ledger...),
		withdrawals: append([]model.Withdrawal(nil), m.withdrawals...),
	}
	for k, v := range m.users {
		s.users[k] = v
	}
	for k, v := range m.tokens {
		s.tokens[k] = v
	}
	for k, v := range m.notes {
		s.notes[k] = v
	}
	return s
}

func (m *memDB) restore(s snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq, m.users, m.tokens, m.notes = s.seq, s.users, s.tokens, s.notes
	m.purchases, m.comments, m.ledger, m.withdrawals = s.purchases, s.comments, s.ledger, s.withdrawals
}

func (m *memDB) next() uint64 { m.seq++; return m.seq }

// Conn implements dbx.Transactor; the handle is ignored by the fake repos.
func (m *memDB) Conn() dbx.DBTX { return nil }

func (m *memDB) WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	snap := m.snapshot()
	if err := fn(ctx, nil); err != nil {
		m.restore(snap)
		return err
	}
	if m.commitErr != nil {
		m.restore(snap)
		return m.commitErr
	}
	return nil
}

func (m *memDB) Users(dbx.DBTX) repository.Users         { return memUsers{m} }
func (m *memDB) Tokens(dbx.DBTX) repository.Tokens       { return memTokens{m} }
func (m *memDB) Notes(dbx.DBTX) repository.Notes         { return memNotes{m} }
func (m *memDB) Purchases(dbx.DBTX) repository.Purchases { return memPurchases{m} }
func (m *memDB) Comments(dbx.DBTX) repository.Comments   { return memComments{m} }
func (m *memDB) Ledger(dbx.DBTX) repository.Ledger       { return memLedger{m} }

// helpers used by tests

func (m *memDB) addUser(name string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.next()
	m.users[id] = model.User{ID: id, Email: strings.ToLower(name) + "@uni.se", Name: name}
	return id
}

func (m *memDB) addNote(owner uint64, price model.Cents) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.next()
	m.notes[id] = model.Note{
		ID: id, OwnerID: owner, Title: "Note", University: "LU", CourseCode: "C1",
		PriceCents: price, State: model.NoteActive, DocumentKey: "k",
		Content: model.StudyContent{Summary: "s", Flashcards: []model.Flashcard{{Question: "q", Answer: "a"}}},
	}
	return id
}

func (m *memDB) note(id uint64) model.Note {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notes[id]
}

func (m *memDB) balance(user uint64) model.Balance {
	m.mu.Lock()
	defer m.mu.Unlock()
	var b model.Balance
	for _, e := range m.ledger {
		if e.UserID == user {
			b = b.Apply(e)
		}
	}
	return b
}

func (m *memDB) credit(user uint64, amount model.Cents) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledger = append(m.ledger, model.LedgerEntry{ID: m.next(), UserID: user, Kind: model.EntryCredit, AmountCents: amount})
}

func (m *memDB) purchaseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.purchases)
}

type memUsers struct{ m *memDB }

func (r memUsers) Create(_ context.Context, u *model.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, x := range r.m.users {
		if x.Email == u.Email {
			return repository.ErrDuplicate
		}
	}
	u.ID = r.m.next()
	r.m.users[u.ID] = *u
	return nil
}

func (r memUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, x := range r.m.users {
		if x.Email == email {
			return x, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (r memUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (r memUsers) LockByID(ctx context.Context, id uint64) (model.User, error) {
	return r.GetByID(ctx, id)
}

func (r memUsers) UpdateProfile(_ context.Context, id uint64, name, university string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u := r.m.users[id]
	u.Name, u.University = name, university
	r.m.users[id] = u
	return nil
}

func (r memUsers) UpdatePassword(_ context.Context, id uint64, hash string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u := r.m.users[id]
	u.PasswordHash = hash
	r.m.users[id] = u
	return nil
}

type memTokens struct{ m *memDB }

func (r memTokens) StoreRefresh(_ context.Context, userID uint64, hash string, exp time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.tokens[hash] = model.RefreshToken{UserID: userID, TokenHash: hash, ExpiresAt: exp}
	return nil
}

func (r memTokens) ValidateRefresh(_ context.Context, hash string) (uint64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	t, ok := r.m.tokens[hash]
	if !ok || t.RevokedAt != nil || time.Now().After(t.ExpiresAt) {
		return 0, repository.ErrNotFound
	}
	return t.UserID, nil
}

func (r memTokens) RevokeByHash(_ context.Context, hash string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if t, ok := r.m.tokens[hash]; ok {
		now := time.Now()
		t.RevokedAt = &now
		r.m.tokens[hash] = t
	}
	return nil
}

func (r memTokens) RevokeAllForUser(_ context.Context, userID uint64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	now := time.Now()
	for k, t := range r.m.tokens {
		if t.UserID == userID {
			t.RevokedAt = &now
			r.m.tokens[k] = t
		}
	}
	return nil
}

type memNotes struct{ m *memDB }

func (r memNotes) Create(_ context.Context, n *model.Note) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	n.ID = r.m.next()
	n.State = model.NoteActive
	r.m.notes[n.ID] = *n
	return nil
}

func (r memNotes) GetByID(_ context.Context, id uint64) (*model.Note, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	n, ok := r.m.notes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	n.OwnerName = r.m.users[n.OwnerID].Name
	return &n, nil
}

func (r memNotes) LockByID(ctx context.Context, id uint64) (*model.Note, error) {
	return r.GetByID(ctx, id)
}

func (r memNotes) Update(_ context.Context, id uint64, e model.NoteEdit, state model.NoteState) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	n, ok := r.m.notes[id]
	if !ok || n.State == model.NoteDeleted {
		return repository.ErrNotFound
	}
	n.Title, n.University, n.CourseCode = e.Title, e.University, e.CourseCode
	n.BookReference, n.Description, n.PriceCents, n.State = e.BookReference, e.Description, e.PriceCents, state
	r.m.notes[id] = n
	return nil
}

func (r memNotes) SoftDelete(_ context.Context, id uint64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	n, ok := r.m.notes[id]
	if !ok || n.State == model.NoteDeleted {
		return repository.ErrNotFound
	}
	now := time.Now()
	n.State, n.DeletedAt = model.NoteDeleted, &now
	r.m.notes[id] = n
	return nil
}

func (r memNotes) IncrementDownloads(_ context.Context, id uint64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	n := r.m.notes[id]
	n.Downloads++
	r.m.notes[id] = n
	return nil
}

func (r memNotes) AddRating(_ context.Context, id uint64, rating int) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	n := r.m.notes[id]
	n.RatingSum += uint64(rating)
	n.RatingCount++
	r.m.notes[id] = n
	return nil
}

func (r memNotes) sorted(keep func(model.Note) bool) []model.Note {
	out := []model.Note{}
	for _, n := range r.m.notes {
		if keep(n) {
			n.OwnerName = r.m.users[n.OwnerID].Name
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (r memNotes) ListByOwner(_ context.Context, ownerID uint64) ([]model.Note, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.sorted(func(n model.Note) bool { return n.OwnerID == ownerID }), nil
}

func (r memNotes) ListPurchasedBy(_ context.Context, buyerID uint64) ([]model.Note, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	owned := map[uint64]bool{}
	for _, p := range r.m.purchases {
		if p.BuyerID == buyerID {
			owned[p.NoteID] = true
		}
	}
	return r.sorted(func(n model.Note) bool { return owned[n.ID] }), nil
}

func (r memNotes) CountByOwner(ctx context.Context, ownerID uint64) (int64, error) {
	ns, _ := r.ListByOwner(ctx, ownerID)
	return int64(len(ns)), nil
}

func (r memNotes) Search(_ context.Context, q repository.NoteSearchQuery) ([]model.Note, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	has := func(field, sub string) bool {
		return sub == "" || strings.Contains(strings.ToLower(field), strings.ToLower(sub))
	}
	out := r.sorted(func(n model.Note) bool {
		ref := ""
		if n.BookReference != nil {
			ref = *n.BookReference
		}
		kw := q.Keyword == "" || has(n.Title, q.Keyword) || has(n.Description, q.Keyword) || has(n.Content.Summary, q.Keyword)
		return n.State.Discoverable() && has(n.University, q.University) && has(n.CourseCode, q.CourseCode) &&
			(q.BookReference == "" || has(ref, q.BookReference)) && kw
	})
	return out, int64(len(out)), nil
}

type memPurchases struct{ m *memDB }

func (r memPurchases) Create(_ context.Context, p *model.Purchase) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failCreateP != nil {
		return r.m.failCreateP
	}
	for _, x := range r.m.purchases {
		if x.BuyerID == p.BuyerID && x.NoteID == p.NoteID {
			return repository.ErrDuplicate
		}
	}
	p.ID = r.m.next()
	r.m.purchases = append(r.m.purchases, *p)
	return nil
}

func (r memPurchases) Exists(_ context.Context, buyerID, noteID uint64) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, x := range r.m.purchases {
		if x.BuyerID == buyerID && x.NoteID == noteID {
			return true, nil
		}
	}
	return false, nil
}

func (r memPurchases) CountByBuyer(_ context.Context, buyerID uint64) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for _, x := range r.m.purchases {
		if x.BuyerID == buyerID {
			n++
		}
	}
	return n, nil
}

func (r memPurchases) amount(buyerID, noteID uint64) model.Cents {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, x := range r.m.purchases {
		if x.BuyerID == buyerID && x.NoteID == noteID {
			return x.AmountCents
		}
	}
	return -1
}

type memComments struct{ m *memDB }

func (r memComments) Create(_ context.Context, c *model.Comment) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c.ID = r.m.next()
	r.m.comments = append(r.m.comments, *c)
	return nil
}

func (r memComments) ListByNote(_ context.Context, noteID uint64) ([]model.Comment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []model.Comment{}
	for i := len(r.m.comments) - 1; i >= 0; i-- {
		if c := r.m.comments[i]; c.NoteID == noteID {
			c.AuthorName = r.m.users[c.AuthorID].Name
			out = append(out, c)
		}
	}
	return out, nil
}

type memLedger struct{ m *memDB }

func (r memLedger) Append(_ context.Context, e *model.LedgerEntry) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failLedger != nil {
		return r.m.failLedger
	}
	if e.AmountCents <= 0 {
		return errors.New("ledger amount must be positive")
	}
	e.ID = r.m.next()
	r.m.ledger = append(r.m.ledger, *e)
	return nil
}

func (r memLedger) Balance(_ context.Context, userID uint64) (model.Balance, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var b model.Balance
	for _, e := range r.m.ledger {
		if e.UserID == userID {
			b = b.Apply(e)
		}
	}
	return b, nil
}

func (r memLedger) CreateWithdrawal(_ context.Context, w *model.Withdrawal) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	w.ID = r.m.next()
	r.m.withdrawals = append(r.m.withdrawals, *w)
	return nil
}

// recordingGateway wraps the simulated gateway and counts calls.
type recordingGateway struct {
	*payment.Simulated
	mu      sync.Mutex
	charges int
	refunds int
	fail    error
}

func newGateway() *recordingGateway { return &recordingGateway{Simulated: payment.NewSimulated()} }

func (g *recordingGateway) Charge(ctx context.Context, req payment.ChargeRequest) (payment.Charge, error) {
	g.mu.Lock()
	g.charges++
	fail := g.fail
	g.mu.Unlock()
	if fail != nil {
		return payment.Charge{}, fail
	}
	return g.Simulated.Charge(ctx, req)
}

func (g *recordingGateway) Refund(ctx context.Context, ref string) error {
	g.mu.Lock()
	g.refunds++
	g.mu.Unlock()
	return g.Simulated.Refund(ctx, ref)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events map[string][]any
}

func (p *recordingPublisher) Publish(_ context.Context, queue string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.events == nil {
		p.events = map[string][]any{}
	}
	p.events[queue] = append(p.events[queue], event)
	return nil
}

func (p *recordingPublisher) count(queue string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events[queue])
}

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMemStore() *memStore { return &memStore{objects: map[string][]byte{}} }

func (s *memStore) Put(_ context.Context, key, _ string, body io.Reader, _ int64) error {
	if s.putErr != nil {
		return s.putErr
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = b
	return nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memStore) PresignGet(_ context.Context, key string) (string, error) {
	return "https://objects.test/" + key, nil
}

func (s *memStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

type countingInvalidator struct{ n int }

func (c *countingInvalidator) Invalidate(context.Context) error { c.n++; return nil }

type fixture struct {
	db     *memDB
	pay    *recordingGateway
	events *recordingPublisher
	store  *memStore
	search *countingInvalidator
	deps   Deps
}

func newFixture() *fixture {
	f := &fixture{
		db:     newMemDB(),
		pay:    newGateway(),
		events: &recordingPublisher{},
		store:  newMemStore(),
		search: &countingInvalidator{},
	}
	f.deps = Deps{
		Tx:       f.db,
		Repos:    f.db,
		Events:   f.events,
		Payments: f.pay,
		Store:    f.store,
		Search:   f.search,
		Auth:     AuthConfig{JWTSecret: "test", AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: 4},
	}
	return f
}
