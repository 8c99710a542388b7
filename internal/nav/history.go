// Package nav provides an in-memory browsing history that plays the role of
// the client's location bar: pushes, replaces, and a guard hook that can veto
// leaving a page with unsaved work.
package nav

import "sync"

// Guard is consulted before a push. It returns a prompt message and whether
// the transition should be blocked pending confirmation.
type Guard interface {
	GuardNavigation() (message string, blocked bool)
}

// Confirm decides whether a guarded transition proceeds. The default declines.
type Confirm func(message string) bool

// History tracks the current location like a single-tab browser session.
type History struct {
	mu      sync.Mutex
	stack   []string
	guard   Guard
	confirm Confirm

	fragment  string
	externals []string
}

func NewHistory(start string) *History {
	return &History{stack: []string{start}}
}

// SetGuard installs the navigation guard. A nil guard allows everything.
func (h *History) SetGuard(guard Guard, confirm Confirm) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.guard = guard
	h.confirm = confirm
}

// Push appends a new location, consulting the guard first.
func (h *History) Push(url string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.allowLocked() {
		return
	}
	h.stack = append(h.stack, url)
	h.fragment = ""
}

// Replace swaps the current location without growing the stack. Replaces are
// not guarded: they rewrite the address of the page already shown.
func (h *History) Replace(url string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.stack) == 0 {
		h.stack = []string{url}
		return
	}
	h.stack[len(h.stack)-1] = url
}

// Back pops to the previous location, consulting the guard.
func (h *History) Back() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.stack) < 2 {
		return h.currentLocked()
	}
	if !h.allowLocked() {
		return h.currentLocked()
	}
	h.stack = h.stack[:len(h.stack)-1]
	h.fragment = ""
	return h.currentLocked()
}

// JumpTo scrolls to a fragment on the current page. Never guarded.
func (h *History) JumpTo(fragment string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fragment = fragment
}

// OpenExternal records an external link opened in a separate tab. The current
// page stays put, so the guard is not consulted.
func (h *History) OpenExternal(url string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.externals = append(h.externals, url)
}

// Current returns the active location.
func (h *History) Current() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.currentLocked()
}

// Fragment returns the active in-page anchor, if any.
func (h *History) Fragment() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fragment
}

// Length returns the stack depth.
func (h *History) Length() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.stack)
}

func (h *History) currentLocked() string {
	if len(h.stack) == 0 {
		return ""
	}
	return h.stack[len(h.stack)-1]
}

func (h *History) allowLocked() bool {
	if h.guard == nil {
		return true
	}
	message, blocked := h.guard.GuardNavigation()
	if !blocked {
		return true
	}
	if h.confirm == nil {
		return false
	}
	return h.confirm(message)
}
