package session

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"inkwell/api/internal/store"
)

// DocumentStore is the persistence collaborator. *store.PostgresStore
// satisfies it in production.
type DocumentStore interface {
	FetchDocument(ctx context.Context, slugOrID, shareToken string) (store.Document, error)
	SaveDocument(ctx context.Context, doc store.Document, opts store.SaveOptions) (store.Document, error)
	MarkViewed(ctx context.Context, documentID string) error
	SearchDocuments(ctx context.Context, term string, limit int) ([]store.SearchHit, error)
}

// ActiveDocument is what the session publishes to the process-wide
// active-document slot.
type ActiveDocument struct {
	DocumentID string
	Title      string
	URL        string
}

// Registry is the shared active-document slot. The session sets it on load
// and save and clears it on teardown; it never assumes exclusive access, so
// another session overwriting the slot is fine.
type Registry interface {
	SetActive(ctx context.Context, doc ActiveDocument) error
	ClearActive(ctx context.Context) error
}

// Navigator is the routing collaborator. Push adds a history entry, Replace
// swaps the current one, JumpTo scrolls to an in-page fragment, and
// OpenExternal leaves the app entirely.
type Navigator interface {
	Push(url string)
	Replace(url string)
	JumpTo(fragment string)
	OpenExternal(url string)
}

// Uploader stores an image and returns its hosted URL.
type Uploader interface {
	Upload(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error)
}

// Options configures a Controller. Store is required; the other collaborators
// may be nil, in which case the corresponding side effects are skipped.
// OnChange receives a snapshot of the state after every transition and must
// not call back into the controller.
type Options struct {
	Store     DocumentStore
	Registry  Registry
	Navigator Navigator
	Uploader  Uploader

	// AppBaseURL decides which absolute link targets count as internal.
	AppBaseURL string

	DirtyDebounce    time.Duration
	AutosaveDebounce time.Duration
	MarkViewedDelay  time.Duration

	OnChange func(State)
}

// LoadRequest describes what the session should open.
type LoadRequest struct {
	IsNewDocument    bool
	CollectionID     string
	ParentDocumentID string
	SlugOrID         string
	ShareToken       string
	Authenticated    bool
	EditMode         bool
	Author           string
}

// key is the document identity the re-invocation rule compares. A new
// document is keyed by its collection so a re-render does not synthesize a
// second blank document.
func (r LoadRequest) key() string {
	if r.IsNewDocument {
		return "new:" + r.CollectionID
	}
	return r.SlugOrID
}

// SaveOptions are the session-level save flags. Done navigates to the
// document after saving, Publish stamps the publication timestamp, Autosave
// marks a machine-initiated save subject to the no-op guards.
type SaveOptions struct {
	Done     bool
	Publish  bool
	Autosave bool
}

var ErrClosed = errors.New("session closed")

// Controller coordinates the load sequencer, save pipeline, dirty/autosave
// scheduler, and navigation guard around one mutable State. All callbacks
// (timer fires, load completions) re-check the generation counter before
// touching state, so effects of a superseded load or a torn-down session are
// discarded.
type Controller struct {
	opts Options

	mu         sync.Mutex
	state      State
	gen        int
	currentKey string
	editorText func() string

	dirtyTimer    *time.Timer
	autosaveTimer *time.Timer
	viewTimer     *time.Timer

	saving  bool
	uploads int
	closed  bool
}

func New(opts Options) *Controller {
	if opts.DirtyDebounce <= 0 {
		opts.DirtyDebounce = 500 * time.Millisecond
	}
	if opts.AutosaveDebounce <= 0 {
		opts.AutosaveDebounce = 3 * time.Second
	}
	if opts.MarkViewedDelay <= 0 {
		opts.MarkViewedDelay = 3 * time.Second
	}
	return &Controller{opts: opts, state: State{Phase: PhaseLoading}}
}

// State returns a snapshot of the current session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Open runs the load sequencer. Re-invocations with an unchanged identifier
// are no-ops; a changed identifier supersedes any in-flight load, cancels
// pending timers, and replaces the state wholesale.
func (c *Controller) Open(ctx context.Context, req LoadRequest) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	key := req.key()
	if key != "" && key == c.currentKey {
		c.mu.Unlock()
		return nil
	}
	c.gen++
	gen := c.gen
	c.currentKey = key
	c.stopTimersLocked()
	c.saving = false
	c.editorText = nil
	c.state = State{Phase: PhaseLoading, EditMode: req.EditMode}
	c.notifyLocked()
	c.mu.Unlock()

	if req.IsNewDocument {
		doc := &store.Document{
			CollectionID: req.CollectionID,
			AllowSave:    true,
			CreatedBy:    req.Author,
		}
		if req.ParentDocumentID != "" {
			parent := req.ParentDocumentID
			doc.ParentDocumentID = &parent
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if gen != c.gen || c.closed {
			return nil
		}
		c.state.Document = doc
		c.state.IsDirty = false
		c.maybeReadyLocked()
		c.notifyLocked()
		return nil
	}

	doc, err := c.opts.Store.FetchDocument(ctx, req.SlugOrID, req.ShareToken)

	c.mu.Lock()
	if gen != c.gen || c.closed {
		c.mu.Unlock()
		return nil
	}
	if err != nil {
		if errors.Is(err, store.ErrOffline) {
			c.state.Offline = true
		} else {
			c.state.NotFound = true
		}
		c.notifyLocked()
		c.mu.Unlock()
		return err
	}

	c.state.Document = &doc
	c.state.IsDirty = false
	c.maybeReadyLocked()

	authedDirect := req.Authenticated && req.ShareToken == ""
	if authedDirect && !req.EditMode && !doc.IsDraft() {
		docID := doc.ID
		c.viewTimer = time.AfterFunc(c.opts.MarkViewedDelay, func() {
			c.fireMarkViewed(gen, docID)
		})
	}
	c.notifyLocked()
	c.mu.Unlock()

	c.setActive(ctx, doc)
	if authedDirect && c.opts.Navigator != nil {
		c.opts.Navigator.Replace(doc.URL())
	}
	return nil
}

// fireMarkViewed is the delayed "mark as viewed" notification. It is a no-op
// if the session has moved to another document or been torn down since it was
// armed.
func (c *Controller) fireMarkViewed(gen int, docID string) {
	c.mu.Lock()
	if gen != c.gen || c.closed {
		c.mu.Unlock()
		return
	}
	c.viewTimer = nil
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.opts.Store.MarkViewed(ctx, docID); err != nil {
		logf("session: mark viewed %s: %v", docID, err)
	}
}

// AttachEditor registers the editor's pull accessor for the current text.
// The session becomes Ready once both the document and the accessor exist.
func (c *Controller) AttachEditor(accessor func() string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.editorText = accessor
	c.maybeReadyLocked()
	c.notifyLocked()
}

// SetEditMode flips between read and edit presentation without reloading.
func (c *Controller) SetEditMode(edit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.state.EditMode == edit {
		return
	}
	c.state.EditMode = edit
	c.notifyLocked()
}

// Save runs the save pipeline. Racing invocations while a save round-trip is
// already in flight for this document silently no-op instead of issuing a
// second concurrent persistence call.
func (c *Controller) Save(ctx context.Context, opts SaveOptions) error {
	c.mu.Lock()
	doc := c.state.Document
	if doc == nil || c.closed {
		c.mu.Unlock()
		return nil
	}

	text := doc.Text
	if c.editorText != nil {
		text = c.editorText()
	}
	if opts.Autosave && strings.TrimSpace(text) == strings.TrimSpace(doc.Text) {
		c.mu.Unlock()
		return nil
	}
	doc.Text = text

	if !doc.AllowSave {
		c.mu.Unlock()
		return nil
	}
	if opts.Autosave && doc.Title == "" && doc.ID == "" {
		// never create blank documents from an autosave
		c.mu.Unlock()
		return nil
	}
	if c.saving {
		c.mu.Unlock()
		return nil
	}

	c.saving = true
	isNew := doc.ID == ""
	gen := c.gen
	snapshot := *doc
	c.state.IsSaving = true
	c.state.IsPublishing = opts.Publish
	c.notifyLocked()
	c.mu.Unlock()

	// Guarantee the in-flight flags clear even if the store call fails; the
	// success path below clears them itself as part of one transition.
	defer func() {
		c.mu.Lock()
		c.saving = false
		if gen == c.gen && !c.closed && (c.state.IsSaving || c.state.IsPublishing) {
			c.state.IsSaving = false
			c.state.IsPublishing = false
			c.notifyLocked()
		}
		c.mu.Unlock()
	}()

	saved, err := c.opts.Store.SaveDocument(ctx, snapshot, store.SaveOptions{
		Done:     opts.Done,
		Publish:  opts.Publish,
		Autosave: opts.Autosave,
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	if gen != c.gen || c.closed {
		c.mu.Unlock()
		return nil
	}
	c.state.Document = &saved
	c.state.IsDirty = false
	c.state.IsSaving = false
	c.state.IsPublishing = false
	c.currentKey = saved.Slug
	c.notifyLocked()
	c.mu.Unlock()

	if opts.Done {
		if c.opts.Navigator != nil {
			c.opts.Navigator.Push(saved.URL())
		}
		c.setActive(ctx, saved)
	} else if isNew {
		if c.opts.Navigator != nil {
			c.opts.Navigator.Push(saved.EditURL())
		}
		c.setActive(ctx, saved)
	}
	return nil
}

// OpenMoveModal and CloseMoveModal toggle the auxiliary move dialog flag,
// which is independent of the save/load lifecycle.
func (c *Controller) OpenMoveModal()  { c.setMoveModal(true) }
func (c *Controller) CloseMoveModal() { c.setMoveModal(false) }

func (c *Controller) setMoveModal(open bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.state.MoveModalOpen == open {
		return
	}
	c.state.MoveModalOpen = open
	c.notifyLocked()
}

// Close tears the session down: pending timers are cancelled, the active
// registry slot is cleared, and any late callbacks become no-ops.
func (c *Controller) Close(ctx context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.gen++
	c.stopTimersLocked()
	c.mu.Unlock()

	if c.opts.Registry != nil {
		if err := c.opts.Registry.ClearActive(ctx); err != nil {
			logf("session: clear active document: %v", err)
		}
	}
}

func (c *Controller) setActive(ctx context.Context, doc store.Document) {
	if c.opts.Registry == nil || doc.ID == "" {
		return
	}
	err := c.opts.Registry.SetActive(ctx, ActiveDocument{
		DocumentID: doc.ID,
		Title:      doc.Title,
		URL:        doc.URL(),
	})
	if err != nil {
		logf("session: set active document %s: %v", doc.ID, err)
	}
}

func (c *Controller) maybeReadyLocked() {
	if c.state.Phase == PhaseLoading && c.state.Document != nil && c.editorText != nil {
		c.state.Phase = PhaseReady
	}
}

func (c *Controller) stopTimersLocked() {
	for _, t := range []**time.Timer{&c.viewTimer, &c.dirtyTimer, &c.autosaveTimer} {
		if *t != nil {
			(*t).Stop()
			*t = nil
		}
	}
}

func (c *Controller) notifyLocked() {
	if c.opts.OnChange != nil {
		c.opts.OnChange(c.state)
	}
}
