// Package staging holds normalized-but-unconfirmed receipt drafts between
// upload and commit. Each draft belongs to exactly one upload session and is
// discarded on cancel or after a successful commit.
package staging

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/finexhq/finex-server/internal/receipt"
	"github.com/finexhq/finex-server/internal/scanning"
)

var (
	// ErrNotFound is returned when no session exists for the given id
	ErrNotFound = errors.New("draft session not found")
	// ErrEditRequired is returned when confirming an unedited draft whose
	// extraction failed; the user must edit or cancel
	ErrEditRequired = errors.New("extraction failed: draft must be edited before confirming")
)

// DefaultTTL is how long an untouched draft session survives
const DefaultTTL = 2 * time.Hour

// Entry is the externally visible view of one draft session
type Entry struct {
	ID        string         `json:"id"`
	Draft     *receipt.Draft `json:"draft"`
	Edited    bool           `json:"edited"`
	CreatedAt time.Time      `json:"createdAt"`
}

// session owns one draft. working is what the user edits; snapshot is the
// last normalized (or reverted-to) state, used to discard unsaved edits.
type session struct {
	id        string
	working   *receipt.Draft
	snapshot  *receipt.Draft
	edited    bool
	createdAt time.Time
	expiresAt time.Time
	seq       int
}

// Store keeps in-flight draft sessions in memory. Sessions are listed in
// creation order so a batch upload presents its drafts sequentially. Expired
// sessions are swept on read rather than by a background task.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*session
	ttl      time.Duration
	nextSeq  int
}

// NewStore creates a Store with the default session TTL
func NewStore() *Store {
	return NewStoreWithTTL(DefaultTTL)
}

// NewStoreWithTTL creates a Store with a custom session TTL
func NewStoreWithTTL(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*session),
		ttl:      ttl,
	}
}

// sweep drops expired sessions. Callers must hold the lock.
func (s *Store) sweep(now time.Time) {
	for id, sess := range s.sessions {
		if now.After(sess.expiresAt) {
			delete(s.sessions, id)
		}
	}
}

// Put stages a draft and returns its new session id
func (s *Store) Put(draft *receipt.Draft) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.sweep(now)

	id := uuid.NewString()
	s.sessions[id] = &session{
		id:        id,
		working:   draft.Clone(),
		snapshot:  draft.Clone(),
		createdAt: now,
		expiresAt: now.Add(s.ttl),
		seq:       s.nextSeq,
	}
	s.nextSeq++

	return id
}

// Get returns the current state of one draft session
func (s *Store) Get(id string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep(time.Now())

	sess, ok := s.sessions[id]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return sess.entry(), nil
}

// List returns all live draft sessions in creation order
func (s *Store) List() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep(time.Now())

	ordered := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		ordered = append(ordered, sess)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].seq < ordered[j].seq
	})

	entries := make([]Entry, 0, len(ordered))
	for _, sess := range ordered {
		entries = append(entries, sess.entry())
	}
	return entries
}

func (sess *session) entry() Entry {
	return Entry{
		ID:        sess.id,
		Draft:     sess.working.Clone(),
		Edited:    sess.edited,
		CreatedAt: sess.createdAt,
	}
}

// SetField replaces one scalar field on the draft. There is no validation
// beyond type coercion: invalid numeric input becomes 0 so the form stays
// submittable. Unknown field names are ignored.
func (s *Store) SetField(id string, field string, value any) error {
	return s.edit(id, func(d *receipt.Draft) bool {
		switch field {
		case "storeName":
			d.StoreName = scanning.AsString(value)
		case "date":
			d.Date = scanning.AsString(value)
		case "totalAmount":
			d.TotalAmount = scanning.AsAmount(value)
		case "taxAmount":
			d.TaxAmount = scanning.AsAmount(value)
		case "category":
			if cat := scanning.AsString(value); receipt.ValidCategory(cat) {
				d.Category = cat
			} else {
				d.Category = receipt.CategoryOther
			}
		case "notes":
			d.Notes = scanning.AsString(value)
		default:
			slog.Warn("Ignoring edit to unknown draft field", "field", field)
			return false
		}
		return true
	})
}

// SetItemField mutates one field of one line item. An out-of-bounds index is
// a programming error on the caller's side, not user input, so it is a
// logged no-op rather than a failure.
func (s *Store) SetItemField(id string, index int, field string, value any) error {
	return s.edit(id, func(d *receipt.Draft) bool {
		if index < 0 || index >= len(d.Items) {
			slog.Warn("Draft item index out of bounds", "index", index, "items", len(d.Items))
			return false
		}
		item := &d.Items[index]
		switch field {
		case "name":
			item.Name = scanning.AsString(value)
		case "quantity":
			if qty := scanning.AsAmount(value); qty > 0 {
				item.Quantity = qty
			} else {
				item.Quantity = 1
			}
		case "price":
			item.Price = scanning.AsAmount(value)
		case "total":
			item.Total = scanning.AsAmount(value)
		case "category":
			if cat := scanning.AsString(value); receipt.ValidItemCategory(cat) {
				item.Category = cat
			} else {
				item.Category = receipt.ItemCategoryOther
			}
		default:
			slog.Warn("Ignoring edit to unknown item field", "field", field)
			return false
		}
		return true
	})
}

// AddItem appends a new line item with defaults
func (s *Store) AddItem(id string) error {
	return s.edit(id, func(d *receipt.Draft) bool {
		d.Items = append(d.Items, receipt.NewItem())
		return true
	})
}

// RemoveItem removes one line item, shifting later indices down. Emptying
// the list is allowed; zero items is a valid draft state.
func (s *Store) RemoveItem(id string, index int) error {
	return s.edit(id, func(d *receipt.Draft) bool {
		if index < 0 || index >= len(d.Items) {
			slog.Warn("Draft item index out of bounds", "index", index, "items", len(d.Items))
			return false
		}
		d.Items = append(d.Items[:index], d.Items[index+1:]...)
		return true
	})
}

// Revert discards in-memory edits back to the last snapshot, the behavior
// of leaving edit mode without saving
func (s *Store) Revert(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	sess.working = sess.snapshot.Clone()
	sess.edited = false
	return nil
}

// Take returns the draft for committing. The session survives: a failed
// commit leaves the draft staged unchanged so the user can retry, and only
// Discard (after success or on cancel) removes it.
func (s *Store) Take(id string) (*receipt.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep(time.Now())

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if sess.snapshot.OCRStatus == receipt.OCRError && !sess.edited {
		return nil, ErrEditRequired
	}
	return sess.working.Clone(), nil
}

// Discard removes a session. Discarding an already-gone session is a no-op.
func (s *Store) Discard(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len returns the number of live sessions
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep(time.Now())
	return len(s.sessions)
}

// edit runs fn against the working draft. The callback reports whether it
// actually changed anything; ignored edits must not flip the edited flag,
// or a bogus PATCH would open the confirm gate on an error-status draft.
func (s *Store) edit(id string, fn func(*receipt.Draft) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep(time.Now())

	sess, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if fn(sess.working) {
		sess.edited = true
	}
	return nil
}
