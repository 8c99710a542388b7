package nav

import "testing"

type stubGuard struct {
	message string
	blocked bool
}

func (s *stubGuard) GuardNavigation() (string, bool) { return s.message, s.blocked }

func TestPushAndBack(t *testing.T) {
	h := NewHistory("/doc/a")
	h.Push("/doc/b")
	h.Push("/doc/c")

	if h.Current() != "/doc/c" {
		t.Fatalf("current = %q", h.Current())
	}
	if got := h.Back(); got != "/doc/b" {
		t.Fatalf("back = %q", got)
	}
	if h.Length() != 2 {
		t.Fatalf("length = %d", h.Length())
	}
}

func TestBackAtRootStaysPut(t *testing.T) {
	h := NewHistory("/doc/a")
	if got := h.Back(); got != "/doc/a" {
		t.Fatalf("back at root = %q", got)
	}
}

func TestReplaceDoesNotGrowStack(t *testing.T) {
	h := NewHistory("/doc/doc_1")
	h.Replace("/doc/launch-plan")
	if h.Current() != "/doc/launch-plan" {
		t.Fatalf("current = %q", h.Current())
	}
	if h.Length() != 1 {
		t.Fatalf("length = %d", h.Length())
	}
}

func TestGuardBlocksPush(t *testing.T) {
	h := NewHistory("/doc/a/edit")
	guard := &stubGuard{message: "You have unsaved changes.", blocked: true}
	h.SetGuard(guard, nil)

	h.Push("/doc/b")
	if h.Current() != "/doc/a/edit" {
		t.Fatalf("guarded push must not move, current = %q", h.Current())
	}

	guard.blocked = false
	h.Push("/doc/b")
	if h.Current() != "/doc/b" {
		t.Fatalf("unblocked push must move, current = %q", h.Current())
	}
}

func TestConfirmOverridesGuard(t *testing.T) {
	h := NewHistory("/doc/a/edit")
	var prompted string
	h.SetGuard(&stubGuard{message: "You have unsaved changes.", blocked: true}, func(message string) bool {
		prompted = message
		return true
	})

	h.Push("/doc/b")
	if h.Current() != "/doc/b" {
		t.Fatalf("confirmed push must move, current = %q", h.Current())
	}
	if prompted != "You have unsaved changes." {
		t.Fatalf("prompt = %q", prompted)
	}
}

func TestGuardBlocksBack(t *testing.T) {
	h := NewHistory("/doc/a")
	h.Push("/doc/b/edit")
	h.SetGuard(&stubGuard{message: "wait", blocked: true}, func(string) bool { return false })

	if got := h.Back(); got != "/doc/b/edit" {
		t.Fatalf("guarded back must stay, got %q", got)
	}
}

func TestJumpAndExternalBypassGuard(t *testing.T) {
	h := NewHistory("/doc/a/edit")
	h.SetGuard(&stubGuard{message: "wait", blocked: true}, nil)

	h.JumpTo("section-2")
	if h.Fragment() != "section-2" {
		t.Fatalf("fragment = %q", h.Fragment())
	}

	h.OpenExternal("https://example.com")
	if h.Current() != "/doc/a/edit" {
		t.Fatalf("external open must not move, current = %q", h.Current())
	}
}
