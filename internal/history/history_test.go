package history

import (
	"os"
	"path/filepath"
	"testing"
)

func TestManager_AddDedupAndCap(t *testing.T) {
	m := NewManager("", 3)

	m.Add("a")
	m.Add("a") // immediate duplicate, ignored
	m.Add("b")
	m.Add("c")
	m.Add("d") // exceeds capacity, evicts "a"

	got := m.GetHistory()
	want := []string{"b", "c", "d"}
	if len(got) != len(want) {
		t.Fatalf("GetHistory() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestManager_TrimAndEmptyDropped(t *testing.T) {
	m := NewManager("", 10)
	m.Add("  spaced  ")
	m.Add("")
	m.Add("   ")

	got := m.GetHistory()
	if len(got) != 1 || got[0] != "spaced" {
		t.Errorf("GetHistory() = %v", got)
	}
}

func TestManager_Navigation(t *testing.T) {
	m := NewManager("", 10)
	m.Add("one")
	m.Add("two")
	m.Add("three")

	if v, ok := m.Previous(); !ok || v != "three" {
		t.Fatalf("Previous() = %q, %v", v, ok)
	}
	if v, ok := m.Previous(); !ok || v != "two" {
		t.Fatalf("Previous() = %q, %v", v, ok)
	}
	if v, ok := m.Previous(); !ok || v != "one" {
		t.Fatalf("Previous() = %q, %v", v, ok)
	}
	// Clamped at oldest.
	if v, ok := m.Previous(); !ok || v != "one" {
		t.Fatalf("Previous() at boundary = %q, %v", v, ok)
	}
	if v, ok := m.Next(); !ok || v != "two" {
		t.Fatalf("Next() = %q, %v", v, ok)
	}
	if v, ok := m.Next(); !ok || v != "three" {
		t.Fatalf("Next() = %q, %v", v, ok)
	}
	if _, ok := m.Next(); ok {
		t.Fatal("Next() past end should report false")
	}

	// Add resets the cursor.
	m.Add("four")
	if _, ok := m.Next(); ok {
		t.Fatal("Next() right after Add should report false (cursor at end)")
	}
	if v, ok := m.Previous(); !ok || v != "four" {
		t.Fatalf("Previous() after Add = %q, %v", v, ok)
	}
}

func TestManager_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "history.log")

	m := NewManager(path, 5)
	m.Add("one")
	m.Add("two")
	m.Add("three")

	if err := m.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file mode = %v, want 0600", perm)
	}

	m2 := NewManager(path, 5)
	if err := m2.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	got := m2.GetHistory()
	want := []string{"one", "two", "three"}
	if len(got) != len(want) {
		t.Fatalf("GetHistory() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestManager_LoadMissingFileIsFine(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "nope.log"), 5)
	if err := m.Load(); err != nil {
		t.Fatalf("Load() of missing file should be nil, got %v", err)
	}
	if len(m.GetHistory()) != 0 {
		t.Fatalf("expected empty history")
	}
}

func TestManager_LoadCollapsesDuplicatesAndTruncates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.log")
	content := "a\na\nb\nc\nc\nc\nd\ne\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	m := NewManager(path, 3)
	if err := m.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	got := m.GetHistory()
	want := []string{"c", "d", "e"}
	if len(got) != len(want) {
		t.Fatalf("GetHistory() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %q, want %q", i, got[i], want[i])
		}
	}
}
