// Package session implements the editing-session controller: the state
// machine that governs how a single document is loaded, edited, auto-saved,
// published, and abandoned. Rendering, transport, and persistence are
// collaborators injected through the interfaces in controller.go.
package session

import "inkwell/api/internal/store"

// Phase tracks session readiness. A session starts in PhaseLoading and moves
// to PhaseReady only once both the document and the editor text accessor are
// available.
type Phase int

const (
	PhaseLoading Phase = iota
	PhaseReady
)

func (p Phase) String() string {
	if p == PhaseReady {
		return "ready"
	}
	return "loading"
}

// State is the authoritative record of the session. It is replaced wholesale
// on document switch and only ever mutated through the controller's locked
// transition function, which keeps the flag invariants consistent:
//
//   - IsDirty is true only while a document is loaded, and is reset to false
//     after a fresh load and after every successful save.
//   - IsPublishing implies IsSaving for the duration of that save call; both
//     are cleared when the call resolves, success or not.
//   - NotFound and a non-nil Document are never both set.
type State struct {
	Document      *store.Document
	Phase         Phase
	EditMode      bool
	IsDirty       bool
	IsSaving      bool
	IsPublishing  bool
	IsUploading   bool
	NotFound      bool
	Offline       bool
	MoveModalOpen bool
}
