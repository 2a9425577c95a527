package realtime

import "testing"

func TestTranscript(t *testing.T) {
	t.Run("deltas accumulate", func(t *testing.T) {
		var tr transcript
		tr.beginTurn()
		tr.appendDelta("hel")
		tr.appendDelta("lo")

		if tr.text != "hello" {
			t.Errorf("text: got %q, want %q", tr.text, "hello")
		}
		if tr.version != 0 {
			t.Errorf("version should stay 0 until finalized, got %d", tr.version)
		}
	})

	t.Run("first terminal wins", func(t *testing.T) {
		var tr transcript
		tr.beginTurn()
		tr.appendDelta("a")

		if !tr.finalize("a") {
			t.Fatal("first finalize should succeed")
		}
		if tr.version != 1 {
			t.Errorf("version: got %d, want 1", tr.version)
		}

		// Later terminal shapes for the same turn are no-ops.
		if tr.finalize("a") {
			t.Error("second finalize should be ignored")
		}
		if tr.finalize("something else") {
			t.Error("third finalize should be ignored")
		}
		if tr.version != 1 {
			t.Errorf("version after duplicates: got %d, want 1", tr.version)
		}
		if tr.text != "a" {
			t.Errorf("text after duplicates: got %q, want %q", tr.text, "a")
		}
	})

	t.Run("empty terminal keeps accumulated text", func(t *testing.T) {
		var tr transcript
		tr.beginTurn()
		tr.appendDelta("hello ")
		tr.appendDelta("world")

		if !tr.finalize("") {
			t.Fatal("finalize should succeed")
		}
		if tr.text != "hello world" {
			t.Errorf("text: got %q, want %q", tr.text, "hello world")
		}
	})

	t.Run("non-empty terminal replaces accumulated text", func(t *testing.T) {
		var tr transcript
		tr.beginTurn()
		tr.appendDelta("helo wrld")

		tr.finalize("hello world")
		if tr.text != "hello world" {
			t.Errorf("text: got %q, want %q", tr.text, "hello world")
		}
	})

	t.Run("deltas after finalize are ignored", func(t *testing.T) {
		var tr transcript
		tr.beginTurn()
		tr.finalize("done")

		if tr.appendDelta("late") {
			t.Error("delta after finalize should be rejected")
		}
		if tr.text != "done" {
			t.Errorf("text: got %q, want %q", tr.text, "done")
		}
	})

	t.Run("begin turn re-arms without resetting version", func(t *testing.T) {
		var tr transcript
		tr.beginTurn()
		tr.finalize("one")
		if tr.version != 1 {
			t.Fatalf("version: got %d, want 1", tr.version)
		}

		tr.beginTurn()
		if tr.text != "" {
			t.Errorf("text should clear on new turn, got %q", tr.text)
		}
		if tr.version != 1 {
			t.Errorf("version must survive new turn, got %d", tr.version)
		}

		tr.finalize("two")
		if tr.version != 2 {
			t.Errorf("version: got %d, want 2", tr.version)
		}
	})
}
