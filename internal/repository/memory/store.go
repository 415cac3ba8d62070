// Package memory is an in-process Ledger for local runs and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"library-lending/internal/domain"
	"library-lending/internal/repository"
)

type state struct {
	items        map[int32]domain.Item
	people       map[int32]domain.Person
	records      []domain.BorrowRecord
	settlements  []domain.SettlementEntry
	nextItemID   int32
	nextPersonID int32
	nextRecordID int64
}

func (st *state) clone() state {
	c := state{
		items:        make(map[int32]domain.Item, len(st.items)),
		people:       make(map[int32]domain.Person, len(st.people)),
		records:      append([]domain.BorrowRecord(nil), st.records...),
		settlements:  append([]domain.SettlementEntry(nil), st.settlements...),
		nextItemID:   st.nextItemID,
		nextPersonID: st.nextPersonID,
		nextRecordID: st.nextRecordID,
	}
	for id, it := range st.items {
		c.items[id] = cloneItem(it)
	}
	for id, p := range st.people {
		c.people[id] = p
	}
	return c
}

func cloneItem(it domain.Item) domain.Item {
	if it.HolderID != nil {
		v := *it.HolderID
		it.HolderID = &v
	}
	if it.ReservedByID != nil {
		v := *it.ReservedByID
		it.ReservedByID = &v
	}
	if it.HeldSince != nil {
		v := *it.HeldSince
		it.HeldSince = &v
	}
	if it.PaymentDate != nil {
		v := *it.PaymentDate
		it.PaymentDate = &v
	}
	return it
}

// Store keeps the whole ledger behind one mutex. A transaction holds the
// mutex until it finishes, so callers inside WithinTx must use the ledger
// handed to fn, never the outer store.
type Store struct {
	mu   *sync.Mutex
	st   *state
	inTx bool
}

func NewStore() *Store {
	return &Store{
		mu: &sync.Mutex{},
		st: &state{
			items:  make(map[int32]domain.Item),
			people: make(map[int32]domain.Person),
		},
	}
}

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) Items() repository.ItemRepository    { return &itemRepository{s: s} }
func (s *Store) People() repository.PersonRepository { return &personRepository{s: s} }
func (s *Store) BorrowRecords() repository.BorrowRecordRepository {
	return &borrowRecordRepository{s: s}
}
func (s *Store) Settlements() repository.SettlementRepository { return &settlementRepository{s: s} }

func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Ledger) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	tx := &Store{mu: s.mu, st: s.st, inTx: true}
	if err := fn(tx); err != nil {
		*s.st = snapshot
		return err
	}
	return nil
}

type itemRepository struct {
	s *Store
}

func (r *itemRepository) Create(ctx context.Context, it *domain.Item) error {
	defer r.s.lock()()
	now := time.Now()
	r.s.st.nextItemID++
	it.ID = r.s.st.nextItemID
	it.Version = 1
	it.CreatedOn = now
	it.UpdatedOn = now
	r.s.st.items[it.ID] = cloneItem(*it)
	return nil
}

func (r *itemRepository) GetByID(ctx context.Context, id int32) (*domain.Item, error) {
	defer r.s.lock()()
	it, ok := r.s.st.items[id]
	if !ok {
		return nil, domain.ErrItemNotFound
	}
	c := cloneItem(it)
	return &c, nil
}

func (r *itemRepository) Update(ctx context.Context, it *domain.Item) error {
	defer r.s.lock()()
	stored, ok := r.s.st.items[it.ID]
	if !ok {
		return domain.ErrItemNotFound
	}
	if stored.Version != it.Version {
		return domain.ErrStaleItem
	}
	it.Version++
	it.UpdatedOn = time.Now()
	r.s.st.items[it.ID] = cloneItem(*it)
	return nil
}

func (r *itemRepository) Delete(ctx context.Context, id, version int32) error {
	defer r.s.lock()()
	stored, ok := r.s.st.items[id]
	if !ok {
		return domain.ErrItemNotFound
	}
	if stored.Version != version {
		return domain.ErrStaleItem
	}
	delete(r.s.st.items, id)
	return nil
}

// filter returns matching items in id order.
func (r *itemRepository) filter(match func(domain.Item) bool) []domain.Item {
	var out []domain.Item
	for _, it := range r.s.st.items {
		if match(it) {
			out = append(out, cloneItem(it))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func page(items []domain.Item, afterID int32, limit int) []domain.Item {
	var out []domain.Item
	for _, it := range items {
		if it.ID <= afterID {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, it)
	}
	return out
}

func (r *itemRepository) PageAll(ctx context.Context, afterID int32, limit int) ([]domain.Item, error) {
	defer r.s.lock()()
	return page(r.filter(func(domain.Item) bool { return true }), afterID, limit), nil
}

func (r *itemRepository) PageHeld(ctx context.Context, afterID int32, limit int) ([]domain.Item, error) {
	defer r.s.lock()()
	return page(r.filter(func(it domain.Item) bool { return it.IsHeld() }), afterID, limit), nil
}

func (r *itemRepository) PageOverdue(ctx context.Context, cutoff time.Time, afterID int32, limit int) ([]domain.Item, error) {
	defer r.s.lock()()
	overdue := r.filter(func(it domain.Item) bool {
		return it.IsHeld() && it.HeldSince != nil && it.HeldSince.Before(cutoff)
	})
	return page(overdue, afterID, limit), nil
}

func (r *itemRepository) ListByHolder(ctx context.Context, personID int32) ([]domain.Item, error) {
	defer r.s.lock()()
	return r.filter(func(it domain.Item) bool { return it.HolderID != nil && *it.HolderID == personID }), nil
}

func (r *itemRepository) ListByReserver(ctx context.Context, personID int32) ([]domain.Item, error) {
	defer r.s.lock()()
	return r.filter(func(it domain.Item) bool { return it.ReservedByID != nil && *it.ReservedByID == personID }), nil
}

func (r *itemRepository) ListAvailable(ctx context.Context, pageNum, pageSize int32) ([]domain.Item, int32, error) {
	defer r.s.lock()()
	free := r.filter(func(it domain.Item) bool { return !it.IsHeld() && !it.IsReserved() })
	total := int32(len(free))
	start := (pageNum - 1) * pageSize
	if start < 0 || start >= total {
		return nil, total, nil
	}
	end := min(start+pageSize, total)
	return free[start:end], total, nil
}

func (r *itemRepository) SearchByTitle(ctx context.Context, prefix string) ([]domain.Item, error) {
	defer r.s.lock()()
	prefix = strings.ToLower(prefix)
	return r.filter(func(it domain.Item) bool {
		return strings.HasPrefix(strings.ToLower(it.Title), prefix)
	}), nil
}

func (r *itemRepository) ClearReservationsBy(ctx context.Context, personID int32) (int64, error) {
	defer r.s.lock()()
	var n int64
	for id, it := range r.s.st.items {
		if it.ReservedByID != nil && *it.ReservedByID == personID {
			it.ReservedByID = nil
			it.Version++
			it.UpdatedOn = time.Now()
			r.s.st.items[id] = it
			n++
		}
	}
	return n, nil
}

type personRepository struct {
	s *Store
}

// emailTaken reports whether someone other than id already uses email.
func (r *personRepository) emailTaken(email string, id int32) bool {
	if email == "" {
		return false
	}
	for _, p := range r.s.st.people {
		if p.ID != id && strings.EqualFold(p.Email, email) {
			return true
		}
	}
	return false
}

func (r *personRepository) Create(ctx context.Context, p *domain.Person) error {
	defer r.s.lock()()
	if r.emailTaken(p.Email, 0) {
		return domain.ErrEmailTaken
	}
	r.s.st.nextPersonID++
	p.ID = r.s.st.nextPersonID
	p.CreatedOn = time.Now()
	r.s.st.people[p.ID] = *p
	return nil
}

func (r *personRepository) GetByID(ctx context.Context, id int32) (*domain.Person, error) {
	defer r.s.lock()()
	p, ok := r.s.st.people[id]
	if !ok {
		return nil, domain.ErrPersonNotFound
	}
	return &p, nil
}

func (r *personRepository) GetByEmail(ctx context.Context, email string) (*domain.Person, error) {
	defer r.s.lock()()
	for _, p := range r.s.st.people {
		if p.Email != "" && strings.EqualFold(p.Email, email) {
			return &p, nil
		}
	}
	return nil, domain.ErrPersonNotFound
}

func (r *personRepository) Update(ctx context.Context, p *domain.Person) error {
	defer r.s.lock()()
	stored, ok := r.s.st.people[p.ID]
	if !ok {
		return domain.ErrPersonNotFound
	}
	if r.emailTaken(p.Email, p.ID) {
		return domain.ErrEmailTaken
	}
	stored.FullName = p.FullName
	stored.Email = p.Email
	r.s.st.people[p.ID] = stored
	*p = stored
	return nil
}

func (r *personRepository) Delete(ctx context.Context, id int32) error {
	defer r.s.lock()()
	if _, ok := r.s.st.people[id]; !ok {
		return domain.ErrPersonNotFound
	}
	delete(r.s.st.people, id)
	return nil
}

type borrowRecordRepository struct {
	s *Store
}

func (r *borrowRecordRepository) Append(ctx context.Context, rec *domain.BorrowRecord) error {
	defer r.s.lock()()
	r.s.st.nextRecordID++
	rec.ID = r.s.st.nextRecordID
	r.s.st.records = append(r.s.st.records, *rec)
	return nil
}

func (r *borrowRecordRepository) list(match func(domain.BorrowRecord) bool) []domain.BorrowRecord {
	var out []domain.BorrowRecord
	for i := len(r.s.st.records) - 1; i >= 0; i-- {
		if match(r.s.st.records[i]) {
			out = append(out, r.s.st.records[i])
		}
	}
	return out
}

func (r *borrowRecordRepository) ListByPerson(ctx context.Context, personID int32) ([]domain.BorrowRecord, error) {
	defer r.s.lock()()
	return r.list(func(rec domain.BorrowRecord) bool { return rec.PersonID == personID }), nil
}

func (r *borrowRecordRepository) ListByItem(ctx context.Context, itemID int32) ([]domain.BorrowRecord, error) {
	defer r.s.lock()()
	return r.list(func(rec domain.BorrowRecord) bool { return rec.ItemID == itemID }), nil
}

type settlementRepository struct {
	s *Store
}

func (r *settlementRepository) Append(ctx context.Context, e *domain.SettlementEntry) error {
	defer r.s.lock()()
	for _, existing := range r.s.st.settlements {
		if existing.IntentRef == e.IntentRef {
			return domain.ErrIntentUsed
		}
	}
	r.s.st.settlements = append(r.s.st.settlements, *e)
	return nil
}

func (r *settlementRepository) ListByPerson(ctx context.Context, personID int32) ([]domain.SettlementEntry, error) {
	defer r.s.lock()()
	var out []domain.SettlementEntry
	for i := len(r.s.st.settlements) - 1; i >= 0; i-- {
		if r.s.st.settlements[i].PersonID == personID {
			out = append(out, r.s.st.settlements[i])
		}
	}
	return out, nil
}
