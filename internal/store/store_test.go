package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	logx "tagbot/pkg/logx"
)

func newFileStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.json")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return st, path
}

func TestOwnerFirstClaimWins(t *testing.T) {
	t.Parallel()
	st := New(nil, logx.Nop())

	claimed, err := st.SetOwner(100)
	if err != nil || !claimed {
		t.Fatalf("first claim: claimed=%v err=%v", claimed, err)
	}
	for _, id := range []int64{200, 300, 100} {
		claimed, err := st.SetOwner(id)
		if err != nil {
			t.Fatalf("SetOwner(%d): %v", id, err)
		}
		if claimed {
			t.Fatalf("SetOwner(%d) claimed ownership after it was taken", id)
		}
	}

	if owner, ok := st.Owner(); !ok || owner != 100 {
		t.Fatalf("Owner() = %d, %v; want 100, true", owner, ok)
	}
	if !st.IsOwner(100) || st.IsOwner(200) {
		t.Fatalf("IsOwner misclassified after contested claims")
	}
}

func TestAdminAddRemove(t *testing.T) {
	t.Parallel()
	st := New(nil, logx.Nop())

	if added, _ := st.AddAdmin(7); !added {
		t.Fatal("first AddAdmin returned added=false")
	}
	if added, _ := st.AddAdmin(7); added {
		t.Fatal("duplicate AddAdmin returned added=true")
	}
	if !st.IsAdmin(7) {
		t.Fatal("IsAdmin(7) = false after add")
	}

	if removed, _ := st.RemoveAdmin(7); !removed {
		t.Fatal("RemoveAdmin returned removed=false")
	}
	if removed, _ := st.RemoveAdmin(7); removed {
		t.Fatal("second RemoveAdmin returned removed=true")
	}
	if st.IsAdmin(7) {
		t.Fatal("IsAdmin(7) = true after remove")
	}
}

func TestAFKLifecycle(t *testing.T) {
	t.Parallel()
	st := New(nil, logx.Nop())

	if err := st.SetAFK(1, "lunch"); err != nil {
		t.Fatalf("SetAFK: %v", err)
	}
	rec, ok := st.AFK(1)
	if !ok {
		t.Fatal("AFK(1) not found after SetAFK")
	}
	if rec.Reason == nil || *rec.Reason != "lunch" {
		t.Fatalf("reason = %v, want lunch", rec.Reason)
	}
	if rec.Since.IsZero() {
		t.Fatal("AFK timestamp is zero")
	}

	// Re-setting overwrites reason and timestamp.
	if err := st.SetAFK(1, ""); err != nil {
		t.Fatalf("SetAFK overwrite: %v", err)
	}
	if rec, _ := st.AFK(1); rec.Reason != nil {
		t.Fatalf("reason = %v after overwrite without reason, want nil", rec.Reason)
	}

	if removed, _ := st.ClearAFK(1); !removed {
		t.Fatal("ClearAFK returned removed=false for AFK user")
	}
	if removed, _ := st.ClearAFK(1); removed {
		t.Fatal("second ClearAFK returned removed=true")
	}
	if st.IsAFK(1) {
		t.Fatal("IsAFK(1) = true after clear")
	}
}

func TestUpsertGroupPreservesMembers(t *testing.T) {
	t.Parallel()
	st := New(nil, logx.Nop())

	if err := st.UpsertGroup(-100, "devs"); err != nil {
		t.Fatalf("UpsertGroup: %v", err)
	}
	for _, id := range []int64{1, 2, 3} {
		if err := st.AddGroupMember(-100, id); err != nil {
			t.Fatalf("AddGroupMember(%d): %v", id, err)
		}
	}

	// Activity refresh must not wipe the member set.
	if err := st.UpsertGroup(-100, "devs renamed"); err != nil {
		t.Fatalf("UpsertGroup refresh: %v", err)
	}
	got := st.GroupMembers(-100)
	if len(got) != 3 {
		t.Fatalf("GroupMembers = %v, want 3 entries", got)
	}

	// Idempotent add keeps insertion order.
	_ = st.AddGroupMember(-100, 2)
	got = st.GroupMembers(-100)
	want := []int64{1, 2, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("GroupMembers = %v, want %v", got, want)
		}
	}
}

func TestUserLookup(t *testing.T) {
	t.Parallel()
	st := New(nil, logx.Nop())

	if err := st.UpsertUser(42, "alice", "Alice"); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	if err := st.UpsertUser(43, "", ""); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}

	ident, ok := st.User(42)
	if !ok || ident.Username != "alice" || ident.FirstName != "Alice" {
		t.Fatalf("User(42) = %+v, %v", ident, ok)
	}

	// Missing first name falls back to a generic label.
	ident, ok = st.User(43)
	if !ok || ident.FirstName != "User" {
		t.Fatalf("User(43) = %+v, want FirstName fallback", ident)
	}

	if _, ok := st.UserByUsername("alice"); !ok {
		t.Fatal("UserByUsername(alice) not found")
	}
	if _, ok := st.UserByUsername("Alice"); ok {
		t.Fatal("UserByUsername is unexpectedly case-insensitive")
	}

	ids := st.AllUsers()
	if len(ids) != 2 || ids[0] != 42 || ids[1] != 43 {
		t.Fatalf("AllUsers = %v, want sorted [42 43]", ids)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	t.Parallel()
	st, path := newFileStore(t)

	if _, err := st.SetOwner(1); err != nil {
		t.Fatalf("SetOwner: %v", err)
	}
	if _, err := st.AddAdmin(2); err != nil {
		t.Fatalf("AddAdmin: %v", err)
	}
	if err := st.UpsertUser(3, "", "Carol"); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	if err := st.UpsertGroup(-500, "team"); err != nil {
		t.Fatalf("UpsertGroup: %v", err)
	}
	if err := st.AddGroupMember(-500, 3); err != nil {
		t.Fatalf("AddGroupMember: %v", err)
	}
	if err := st.SetAFK(3, ""); err != nil {
		t.Fatalf("SetAFK: %v", err)
	}
	if err := st.SetEmoji("🔥"); err != nil {
		t.Fatalf("SetEmoji: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Optional fields must serialize as explicit nulls.
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("state file is not valid JSON: %v", err)
	}
	var users map[string]map[string]json.RawMessage
	if err := json.Unmarshal(doc["users"], &users); err != nil {
		t.Fatalf("users: %v", err)
	}
	if string(users["3"]["username"]) != "null" {
		t.Fatalf("username = %s, want null", users["3"]["username"])
	}

	re, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer re.Close()

	if owner, ok := re.Owner(); !ok || owner != 1 {
		t.Fatalf("owner after reload = %d, %v", owner, ok)
	}
	if !re.IsAdmin(2) {
		t.Fatal("admin lost across reload")
	}
	if ident, ok := re.User(3); !ok || ident.FirstName != "Carol" {
		t.Fatalf("user after reload = %+v, %v", ident, ok)
	}
	members := re.GroupMembers(-500)
	if len(members) != 1 || members[0] != 3 {
		t.Fatalf("group members after reload = %v", members)
	}
	rec, ok := re.AFK(3)
	if !ok || rec.Reason != nil {
		t.Fatalf("afk after reload = %+v, %v", rec, ok)
	}
	if time.Since(rec.Since) > time.Minute {
		t.Fatalf("afk timestamp drifted across reload: %v", rec.Since)
	}
	if re.Emoji() != "🔥" {
		t.Fatalf("emoji after reload = %q", re.Emoji())
	}
}

func TestCorruptStateFileDegradesToEmpty(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open with corrupt file: %v", err)
	}
	defer st.Close()

	if _, ok := st.Owner(); ok {
		t.Fatal("corrupt file produced an owner")
	}
	if st.Emoji() != DefaultEmoji {
		t.Fatalf("emoji = %q, want default", st.Emoji())
	}
}

func TestBackupWritesSnapshot(t *testing.T) {
	t.Parallel()
	st, _ := newFileStore(t)
	defer st.Close()

	if _, err := st.SetOwner(9); err != nil {
		t.Fatalf("SetOwner: %v", err)
	}

	bak := filepath.Join(t.TempDir(), "state.bak")
	if err := st.Backup(bak); err != nil {
		t.Fatalf("Backup: %v", err)
	}

	raw, err := os.ReadFile(bak)
	if err != nil {
		t.Fatalf("ReadFile backup: %v", err)
	}
	var got State
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("backup not valid JSON: %v", err)
	}
	if got.OwnerID == nil || *got.OwnerID != 9 {
		t.Fatalf("backup owner = %v, want 9", got.OwnerID)
	}
}
