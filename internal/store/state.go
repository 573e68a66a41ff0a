package store

import (
	"strconv"
	"time"
)

// State is the full persisted record. It round-trips through JSON exactly:
// optional fields serialize as null (not absent), ids are string-encoded
// map keys, timestamps are RFC 3339 strings.
type State struct {
	OwnerID  *int64                 `json:"owner_id"`
	Admins   []int64                `json:"admins"`
	Users    map[string]UserRecord  `json:"users"`
	Groups   map[string]GroupRecord `json:"groups"`
	AFKUsers map[string]AFKRecord   `json:"afk_users"`
	Settings Settings               `json:"settings"`
}

type UserRecord struct {
	Username  *string   `json:"username"`
	FirstName string    `json:"first_name"`
	LastSeen  time.Time `json:"last_seen"`
}

type GroupRecord struct {
	Title      *string   `json:"title"`
	LastActive time.Time `json:"last_active"`
	Members    []int64   `json:"members"`
}

type AFKRecord struct {
	Reason *string   `json:"reason"`
	Since  time.Time `json:"timestamp"`
}

type Settings struct {
	DefaultEmoji string `json:"default_emoji"`
}

const DefaultEmoji = "🔔"

// NewState returns the default empty state.
func NewState() *State {
	return &State{
		Admins:   []int64{},
		Users:    map[string]UserRecord{},
		Groups:   map[string]GroupRecord{},
		AFKUsers: map[string]AFKRecord{},
		Settings: Settings{DefaultEmoji: DefaultEmoji},
	}
}

// normalize repairs nil collections after decoding a sparse or legacy file.
func (s *State) normalize() {
	if s.Admins == nil {
		s.Admins = []int64{}
	}
	if s.Users == nil {
		s.Users = map[string]UserRecord{}
	}
	if s.Groups == nil {
		s.Groups = map[string]GroupRecord{}
	}
	if s.AFKUsers == nil {
		s.AFKUsers = map[string]AFKRecord{}
	}
	if s.Settings.DefaultEmoji == "" {
		s.Settings.DefaultEmoji = DefaultEmoji
	}
}

// clone returns a deep copy, safe to hand out while the original keeps
// mutating.
func (s *State) clone() *State {
	cp := &State{
		Admins:   append([]int64{}, s.Admins...),
		Users:    make(map[string]UserRecord, len(s.Users)),
		Groups:   make(map[string]GroupRecord, len(s.Groups)),
		AFKUsers: make(map[string]AFKRecord, len(s.AFKUsers)),
		Settings: s.Settings,
	}
	if s.OwnerID != nil {
		v := *s.OwnerID
		cp.OwnerID = &v
	}
	for k, u := range s.Users {
		if u.Username != nil {
			v := *u.Username
			u.Username = &v
		}
		cp.Users[k] = u
	}
	for k, g := range s.Groups {
		if g.Title != nil {
			v := *g.Title
			g.Title = &v
		}
		g.Members = append([]int64{}, g.Members...)
		cp.Groups[k] = g
	}
	for k, a := range s.AFKUsers {
		if a.Reason != nil {
			v := *a.Reason
			a.Reason = &v
		}
		cp.AFKUsers[k] = a
	}
	return cp
}

func key(id int64) string { return strconv.FormatInt(id, 10) }

func parseKey(k string) (int64, bool) {
	id, err := strconv.ParseInt(k, 10, 64)
	return id, err == nil
}
