package shellstate

import (
	"path/filepath"
	"testing"
)

func TestState_ProcessInput_SingleLine(t *testing.T) {
	s := New("", "")
	cmd, ok := s.ProcessInput("status")
	if !ok || cmd != "status" {
		t.Fatalf("ProcessInput = %q, %v", cmd, ok)
	}
	if s.InMultiLine() {
		t.Fatal("expected no open buffer after a single-line command")
	}
}

func TestState_ProcessInput_Continuation(t *testing.T) {
	s := New("", "")

	if _, ok := s.ProcessInput(`SELECT *\`); ok {
		t.Fatal("continuation line should not yield a command")
	}
	if !s.InMultiLine() {
		t.Fatal("expected buffer to be open after a trailing backslash")
	}
	if _, ok := s.ProcessInput(`FROM users\`); ok {
		t.Fatal("second continuation line should not yield a command")
	}
	cmd, ok := s.ProcessInput("WHERE id = 1")
	if !ok {
		t.Fatal("final line should complete the command")
	}
	want := "SELECT * FROM users WHERE id = 1"
	if cmd != want {
		t.Errorf("completed command = %q, want %q", cmd, want)
	}
	if s.InMultiLine() {
		t.Fatal("buffer should be closed after completion")
	}
}

// TestState_ProcessInput_ContinuationTrimsSpaceBeforeBackslash exercises
// the canonical continuation style ("a \", "b \", "c" -> "a b c"), where
// the space preceding the backslash must not survive into the join.
func TestState_ProcessInput_ContinuationTrimsSpaceBeforeBackslash(t *testing.T) {
	s := New("", "")

	if _, ok := s.ProcessInput(`a \`); ok {
		t.Fatal("continuation line should not yield a command")
	}
	if _, ok := s.ProcessInput(`b \`); ok {
		t.Fatal("second continuation line should not yield a command")
	}
	cmd, ok := s.ProcessInput("c")
	if !ok {
		t.Fatal("final line should complete the command")
	}
	if want := "a b c"; cmd != want {
		t.Errorf("completed command = %q, want %q", cmd, want)
	}
}

func TestState_ProcessInput_EmptyLineClearsBuffer(t *testing.T) {
	s := New("", "")
	s.ProcessInput(`SELECT *\`)
	if !s.InMultiLine() {
		t.Fatal("expected open buffer")
	}
	cmd, ok := s.ProcessInput("")
	if ok || cmd != "" {
		t.Fatalf("empty line while open should clear without yielding a command, got %q, %v", cmd, ok)
	}
	if s.InMultiLine() {
		t.Fatal("buffer should be cleared")
	}
}

func TestState_ProcessInput_EmptyLineNotOpenIsNoop(t *testing.T) {
	s := New("", "")
	cmd, ok := s.ProcessInput("")
	if ok || cmd != "" {
		t.Fatalf("empty line with nothing open should yield nothing, got %q, %v", cmd, ok)
	}
}

func TestDefaultSession(t *testing.T) {
	s := New("", "unix:///tmp/x.sock")
	v, ok := s.Get("server_url")
	if !ok || v != "unix:///tmp/x.sock" {
		t.Errorf("server_url = %q, %v", v, ok)
	}
	if v, _ := s.Get("default_format"); v != "table" {
		t.Errorf("default_format = %q", v)
	}
	if v, _ := s.Get("prompt"); v != "shell> " {
		t.Errorf("prompt = %q", v)
	}
}

func TestState_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	s := New(path, "")
	s.Set("prompt", "custom> ")
	s.RecordCommand()
	s.RecordCommand()
	if err := s.SaveSession(); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}

	s2 := New(path, "")
	if err := s2.LoadSession(); err != nil {
		t.Fatalf("LoadSession() error = %v", err)
	}
	if v, _ := s2.Get("prompt"); v != "custom> " {
		t.Errorf("prompt after load = %q", v)
	}

	_, commandsThisRun, _ := s2.Snapshot()
	if commandsThisRun != 0 {
		t.Errorf("commandsThisRun on fresh load = %d, want 0", commandsThisRun)
	}

	s2.RecordCommand()
	if err := s2.SaveSession(); err != nil {
		t.Fatalf("second SaveSession() error = %v", err)
	}

	s3 := New(path, "")
	if err := s3.LoadSession(); err != nil {
		t.Fatalf("LoadSession() error = %v", err)
	}
	// total_commands_ever should accumulate across saves: 2 + 1 = 3.
	data := readSessionFile(t, path)
	if data.TotalCommandsEver != 3 {
		t.Errorf("TotalCommandsEver = %d, want 3", data.TotalCommandsEver)
	}
}

func TestState_LoadMissingFileUsesDefaults(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nope.json"), "srv")
	if err := s.LoadSession(); err != nil {
		t.Fatalf("LoadSession() of missing file should be nil, got %v", err)
	}
	if v, _ := s.Get("server_url"); v != "srv" {
		t.Errorf("server_url = %q, want default preserved", v)
	}
}

func readSessionFile(t *testing.T, path string) Session {
	t.Helper()
	s := New(path, "")
	if err := s.LoadSession(); err != nil {
		t.Fatalf("LoadSession() error = %v", err)
	}
	_, _, _ = s.Snapshot()
	return s.session
}
