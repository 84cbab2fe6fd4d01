package result

import "testing"

func TestOkAndFail(t *testing.T) {
	r := Ok(map[string]any{"x": 1})
	if !r.Success || r.Error != nil {
		t.Fatalf("Ok() = %+v", r)
	}

	f := Fail("boom")
	if f.Success || f.Error == nil || *f.Error != "boom" {
		t.Fatalf("Fail() = %+v", f)
	}
}

func TestFailWithMetadata(t *testing.T) {
	f := FailWithMetadata("nope", map[string]any{"available": []string{"a", "b"}})
	if f.Success {
		t.Fatal("expected failure")
	}
	if _, ok := f.Metadata["available"]; !ok {
		t.Fatalf("metadata = %+v", f.Metadata)
	}
}

func TestCommandResult_WithMetadataMerges(t *testing.T) {
	r := Ok("data").WithMetadata(map[string]any{"a": 1})
	r = r.WithMetadata(map[string]any{"b": 2})
	if r.Metadata["a"] != 1 || r.Metadata["b"] != 2 {
		t.Fatalf("metadata = %+v", r.Metadata)
	}
}

func TestMessageConstructors(t *testing.T) {
	d := DataMessage("topic1", 42)
	if d.Type != MessageData || d.Source != "topic1" || d.Timestamp.IsZero() {
		t.Fatalf("DataMessage() = %+v", d)
	}

	s := SystemMessage("connected")
	if s.Type != MessageSystem || s.Payload != "connected" {
		t.Fatalf("SystemMessage() = %+v", s)
	}

	e := ErrorMessage("bad frame")
	if e.Type != MessageError || e.Payload != "bad frame" {
		t.Fatalf("ErrorMessage() = %+v", e)
	}
}

func TestMessage_WithMetadataMerges(t *testing.T) {
	m := DataMessage("t", "p").WithMetadata(map[string]any{"a": 1})
	m = m.WithMetadata(map[string]any{"b": 2})
	if m.Metadata["a"] != 1 || m.Metadata["b"] != 2 {
		t.Fatalf("metadata = %+v", m.Metadata)
	}
}
