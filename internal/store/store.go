package store

import (
	"sort"
	"sync"
	"time"

	"tagbot/internal/transport"
	logx "tagbot/pkg/logx"
)

// Backend persists the full state record.
type Backend interface {
	// Load returns (nil, nil) when no prior state exists.
	Load() (*State, error)
	Save(*State) error
	Close() error
}

// Store is the process-wide state holder. It is mutex-guarded because
// command handlers run on a worker pool; there is a single active writer
// per operation, never concurrent unguarded mutation.
type Store struct {
	mu      sync.Mutex
	log     logx.Logger
	backend Backend // nil means in-memory only
	state   *State
}

// New wraps a backend, loading prior state. A missing or corrupt backing
// record degrades to the default empty state: the error is logged, not
// propagated, so a damaged file never prevents startup.
func New(backend Backend, log logx.Logger) *Store {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Store{log: log, backend: backend, state: NewState()}
	if backend != nil {
		st, err := backend.Load()
		switch {
		case err != nil:
			log.Error("state load failed; starting from empty state", logx.Err(err))
		case st != nil:
			st.normalize()
			s.state = st
		}
	}
	return s
}

func (s *Store) Close() error {
	if s.backend == nil {
		return nil
	}
	return s.backend.Close()
}

// flush writes the full record. Called with the lock held.
func (s *Store) flush() error {
	if s.backend == nil {
		return nil
	}
	if err := s.backend.Save(s.state); err != nil {
		s.log.Error("state flush failed; in-memory state retained", logx.Err(err))
		return err
	}
	return nil
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() *State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// ---- owner / admins ----

// SetOwner claims ownership. Only the first-ever claim succeeds; later
// claims are no-ops reported as claimed=false, even by the current owner.
func (s *Store) SetOwner(id int64) (claimed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.OwnerID != nil {
		return false, nil
	}
	s.state.OwnerID = &id
	return true, s.flush()
}

func (s *Store) Owner() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.OwnerID == nil {
		return 0, false
	}
	return *s.state.OwnerID, true
}

func (s *Store) IsOwner(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.OwnerID != nil && *s.state.OwnerID == id
}

func (s *Store) AddAdmin(id int64) (added bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.state.Admins {
		if a == id {
			return false, nil
		}
	}
	s.state.Admins = append(s.state.Admins, id)
	return true, s.flush()
}

func (s *Store) RemoveAdmin(id int64) (removed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range s.state.Admins {
		if a == id {
			s.state.Admins = append(s.state.Admins[:i], s.state.Admins[i+1:]...)
			return true, s.flush()
		}
	}
	return false, nil
}

func (s *Store) IsAdmin(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.state.Admins {
		if a == id {
			return true
		}
	}
	return false
}

func (s *Store) Admins() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64{}, s.state.Admins...)
}

// ---- users ----

// UpsertUser records an observation of a user: display name and last_seen
// are refreshed on every call. Users are never deleted.
func (s *Store) UpsertUser(id int64, username, firstName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := UserRecord{FirstName: firstName, LastSeen: time.Now()}
	if username != "" {
		rec.Username = &username
	}
	s.state.Users[key(id)] = rec
	return s.flush()
}

// User reconstructs the stored identity. The single transport.Identity type
// is used regardless of whether the record came from the API or the cache.
func (s *Store) User(id int64) (transport.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userLocked(id)
}

func (s *Store) userLocked(id int64) (transport.Identity, bool) {
	rec, ok := s.state.Users[key(id)]
	if !ok {
		return transport.Identity{}, false
	}
	ident := transport.Identity{ID: id, FirstName: rec.FirstName}
	if rec.Username != nil {
		ident.Username = *rec.Username
	}
	if ident.FirstName == "" {
		ident.FirstName = "User"
	}
	return ident, true
}

// UserByUsername resolves a stored user by username (case-insensitive match
// is deliberately NOT done; Telegram usernames are exposed as-is).
func (s *Store) UserByUsername(username string) (transport.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, rec := range s.state.Users {
		if rec.Username == nil || *rec.Username != username {
			continue
		}
		if id, ok := parseKey(k); ok {
			ident, _ := s.userLocked(id)
			return ident, true
		}
	}
	return transport.Identity{}, false
}

// AllUsers returns every known user id, sorted for deterministic sweeps.
func (s *Store) AllUsers() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, 0, len(s.state.Users))
	for k := range s.state.Users {
		if id, ok := parseKey(k); ok {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ---- groups ----

// UpsertGroup records group activity. The stored member set is preserved:
// it only ever grows (members are not evicted on departure).
func (s *Store) UpsertGroup(id int64, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(id)
	rec, ok := s.state.Groups[k]
	if !ok {
		rec = GroupRecord{Members: []int64{}}
	}
	if title != "" {
		rec.Title = &title
	}
	rec.LastActive = time.Now()
	s.state.Groups[k] = rec
	return s.flush()
}

// AddGroupMember adds a user to a group's stored member set. Idempotent;
// a no-op add does not flush.
func (s *Store) AddGroupMember(groupID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(groupID)
	rec, ok := s.state.Groups[k]
	if !ok {
		rec = GroupRecord{LastActive: time.Now(), Members: []int64{}}
	}
	for _, m := range rec.Members {
		if m == userID {
			return nil
		}
	}
	rec.Members = append(rec.Members, userID)
	s.state.Groups[k] = rec
	return s.flush()
}

// GroupMembers returns the stored member ids in insertion order.
func (s *Store) GroupMembers(groupID int64) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.state.Groups[key(groupID)]
	if !ok {
		return nil
	}
	return append([]int64{}, rec.Members...)
}

// AllGroups returns every known group id, sorted.
func (s *Store) AllGroups() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, 0, len(s.state.Groups))
	for k := range s.state.Groups {
		if id, ok := parseKey(k); ok {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ---- AFK ----

func (s *Store) SetAFK(id int64, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := AFKRecord{Since: time.Now()}
	if reason != "" {
		rec.Reason = &reason
	}
	s.state.AFKUsers[key(id)] = rec
	return s.flush()
}

// ClearAFK removes the AFK record. removed=false means the user was not
// AFK (the sole terminal transition already happened or never started).
func (s *Store) ClearAFK(id int64) (removed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.AFKUsers[key(id)]; !ok {
		return false, nil
	}
	delete(s.state.AFKUsers, key(id))
	return true, s.flush()
}

func (s *Store) AFK(id int64) (AFKRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.state.AFKUsers[key(id)]
	return rec, ok
}

func (s *Store) IsAFK(id int64) bool {
	_, ok := s.AFK(id)
	return ok
}

// ---- settings ----

func (s *Store) SetEmoji(emoji string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Settings.DefaultEmoji = emoji
	return s.flush()
}

func (s *Store) Emoji() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Settings.DefaultEmoji == "" {
		return DefaultEmoji
	}
	return s.state.Settings.DefaultEmoji
}

// Counts returns (users, groups) totals for the health surface.
func (s *Store) Counts() (users, groups int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.Users), len(s.state.Groups)
}
