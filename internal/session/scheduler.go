package session

import (
	"context"
	"log"
	"strings"
	"time"
)

// logf is swappable so tests can keep their output quiet.
var logf = log.Printf

// TextChanged is the editor's change event. It re-arms two independently
// debounced timers: a short one that recomputes the dirty flag, and a longer
// one that triggers an autosave. Each new edit cancels and reschedules only
// its own timer.
func (c *Controller) TextChanged() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.state.Document == nil {
		return
	}
	gen := c.gen

	if c.dirtyTimer != nil {
		c.dirtyTimer.Stop()
	}
	c.dirtyTimer = time.AfterFunc(c.opts.DirtyDebounce, func() {
		c.recomputeDirty(gen)
	})

	if c.autosaveTimer != nil {
		c.autosaveTimer.Stop()
	}
	c.autosaveTimer = time.AfterFunc(c.opts.AutosaveDebounce, func() {
		c.autosave(gen)
	})
}

// recomputeDirty compares the live editor text against the last-known stored
// text. Purely a read; persistence is the autosave timer's job.
func (c *Controller) recomputeDirty(gen int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.gen || c.state.Document == nil || c.editorText == nil {
		return
	}
	dirty := strings.TrimSpace(c.editorText()) != strings.TrimSpace(c.state.Document.Text)
	if dirty != c.state.IsDirty {
		c.state.IsDirty = dirty
		c.notifyLocked()
	}
}

func (c *Controller) autosave(gen int) {
	c.mu.Lock()
	stale := c.closed || gen != c.gen
	c.mu.Unlock()
	if stale {
		return
	}
	if err := c.Save(context.Background(), SaveOptions{Autosave: true}); err != nil {
		logf("session: autosave: %v", err)
	}
}
