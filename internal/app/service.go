// Package app exposes the editing sessions over a service facade and HTTP.
// Each connected editor gets one session, which owns a controller, a history,
// and the text buffer the controller reads from.
package app

import (
	"context"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"inkwell/api/internal/export"
	"inkwell/api/internal/nav"
	"inkwell/api/internal/registry"
	"inkwell/api/internal/revisions"
	"inkwell/api/internal/search"
	"inkwell/api/internal/session"
	"inkwell/api/internal/share"
	"inkwell/api/internal/store"
	"inkwell/api/internal/util"
)

// Store is what the app layer needs from persistence. *store.PostgresStore
// satisfies it.
type Store interface {
	FetchDocument(ctx context.Context, slugOrID, shareToken string) (store.Document, error)
	SaveDocument(ctx context.Context, doc store.Document, opts store.SaveOptions) (store.Document, error)
	MarkViewed(ctx context.Context, documentID string) error
	SearchDocuments(ctx context.Context, term string, limit int) ([]store.SearchHit, error)
	SetShareToken(ctx context.Context, documentID, token, passwordHash string) error
	SharePasswordHash(ctx context.Context, documentID string) (string, error)
	EnsureCollection(ctx context.Context, id, name string) error
	Ping(ctx context.Context) error
}

// RevisionLog records document snapshots. *revisions.Service satisfies it.
type RevisionLog interface {
	Snapshot(documentID string, content revisions.Content, author, message string) (store.RevisionMeta, error)
	History(documentID string, limit int) ([]store.RevisionMeta, error)
	ContentAt(documentID, hash string) (revisions.Content, error)
}

// Searcher is the full-text search facade. *search.Service satisfies it.
type Searcher interface {
	Search(ctx context.Context, q search.Query) search.Response
	IndexDocument(doc search.DocumentRecord)
	DeleteDocument(id string)
}

// Exporter prints documents to PDF. *export.Service satisfies it.
type Exporter interface {
	Available() bool
	ExportPDF(ctx context.Context, doc export.Document) (*export.Result, error)
}

// Options wires the service. Store is required; everything else degrades
// gracefully when nil.
type Options struct {
	Store     Store
	Registry  *registry.RedisRegistry
	Uploader  session.Uploader
	Search    Searcher
	Revisions RevisionLog
	Exporter  Exporter

	AppBaseURL  string
	ShareSecret []byte
	ShareTTL    time.Duration

	DirtyDebounce    time.Duration
	AutosaveDebounce time.Duration
	MarkViewedDelay  time.Duration
}

type Service struct {
	opts Options

	mu       sync.Mutex
	sessions map[string]*editSession
}

func NewService(opts Options) *Service {
	if opts.ShareTTL <= 0 {
		opts.ShareTTL = 30 * 24 * time.Hour
	}
	return &Service{
		opts:     opts,
		sessions: make(map[string]*editSession),
	}
}

// editSession is one editor's server-side state: the controller plus the text
// buffer it pulls from and the simulated location history it pushes to.
type editSession struct {
	id         string
	controller *session.Controller
	history    *nav.History

	mu    sync.Mutex
	text  string
	state session.State
}

func (es *editSession) setText(text string) {
	es.mu.Lock()
	es.text = text
	es.mu.Unlock()
}

func (es *editSession) currentText() string {
	es.mu.Lock()
	defer es.mu.Unlock()
	return es.text
}

func (es *editSession) snapshot(state session.State) {
	es.mu.Lock()
	es.state = state
	es.mu.Unlock()
}

// OpenRequest opens (or re-targets) an editing session.
type OpenRequest struct {
	SessionID        string
	IsNewDocument    bool
	CollectionID     string
	ParentDocumentID string
	SlugOrID         string
	ShareToken       string
	SharePassword    string
	Authenticated    bool
	EditMode         bool
	Author           string
}

// SessionView is the state snapshot returned to clients.
type SessionView struct {
	SessionID     string        `json:"sessionId"`
	Phase         string        `json:"phase"`
	EditMode      bool          `json:"editMode"`
	IsDirty       bool          `json:"isDirty"`
	IsSaving      bool          `json:"isSaving"`
	IsPublishing  bool          `json:"isPublishing"`
	IsUploading   bool          `json:"isUploading"`
	NotFound      bool          `json:"notFound"`
	Offline       bool          `json:"offline"`
	MoveModalOpen bool          `json:"moveModalOpen"`
	Location      string        `json:"location"`
	Document      *DocumentView `json:"document,omitempty"`
}

// DocumentView is the document summary embedded in a SessionView.
type DocumentView struct {
	ID          string `json:"id"`
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Emoji       string `json:"emoji,omitempty"`
	Text        string `json:"text"`
	URL         string `json:"url"`
	IsDraft     bool   `json:"isDraft"`
	AllowSave   bool   `json:"allowSave"`
	PublishedAt string `json:"publishedAt,omitempty"`
}

// OpenSession creates a session when the id is new, or re-runs the load
// sequencer on an existing one. Share tokens are verified before the store is
// consulted.
func (s *Service) OpenSession(ctx context.Context, req OpenRequest) (SessionView, error) {
	storeToken := ""
	if req.ShareToken != "" {
		claims, err := share.ParseToken(s.opts.ShareSecret, req.ShareToken)
		if err != nil {
			return SessionView{}, domainError(http.StatusUnauthorized, "INVALID_SHARE_TOKEN", "Share link is invalid or expired", nil)
		}
		hash, err := s.opts.Store.SharePasswordHash(ctx, claims.DocumentID)
		if err != nil {
			return SessionView{}, domainError(http.StatusNotFound, "NOT_FOUND", "Document not found", nil)
		}
		if err := share.CheckPassword(hash, req.SharePassword); err != nil {
			return SessionView{}, domainError(http.StatusForbidden, "SHARE_PASSWORD_REQUIRED", "Share link requires a password", nil)
		}
		storeToken = share.HashToken(req.ShareToken)
		if req.SlugOrID == "" {
			req.SlugOrID = claims.DocumentID
		}
		req.Authenticated = false
	}

	if req.IsNewDocument {
		if req.CollectionID == "" {
			req.CollectionID = "default"
		}
		if err := s.opts.Store.EnsureCollection(ctx, req.CollectionID, req.CollectionID); err != nil {
			return SessionView{}, err
		}
	}

	if req.SessionID == "" {
		req.SessionID = util.NewID("ses")
	}

	es := s.ensureSession(req.SessionID, req.Author)

	openErr := es.controller.Open(ctx, session.LoadRequest{
		IsNewDocument:    req.IsNewDocument,
		CollectionID:     req.CollectionID,
		ParentDocumentID: req.ParentDocumentID,
		SlugOrID:         req.SlugOrID,
		ShareToken:       storeToken,
		Authenticated:    req.Authenticated,
		EditMode:         req.EditMode,
		Author:           req.Author,
	})
	// Open resets the editor binding, so reattach the session's text buffer.
	es.controller.AttachEditor(es.currentText)
	if openErr != nil {
		return s.view(es), openErr
	}
	return s.view(es), nil
}

func (s *Service) ensureSession(sessionID, author string) *editSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	if es, ok := s.sessions[sessionID]; ok {
		return es
	}

	es := &editSession{id: sessionID}
	es.history = nav.NewHistory("/")

	var reg session.Registry
	if s.opts.Registry != nil {
		reg = registry.ForSession(s.opts.Registry, sessionID)
	}

	es.controller = session.New(session.Options{
		Store: &persistingStore{
			Store:     s.opts.Store,
			author:    author,
			revisions: s.opts.Revisions,
			search:    s.opts.Search,
		},
		Registry:         reg,
		Navigator:        es.history,
		Uploader:         s.opts.Uploader,
		AppBaseURL:       s.opts.AppBaseURL,
		DirtyDebounce:    s.opts.DirtyDebounce,
		AutosaveDebounce: s.opts.AutosaveDebounce,
		MarkViewedDelay:  s.opts.MarkViewedDelay,
		OnChange:         es.snapshot,
	})
	s.sessions[sessionID] = es
	return es
}

func (s *Service) session(sessionID string) (*editSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	es, ok := s.sessions[sessionID]
	if !ok {
		return nil, domainError(http.StatusNotFound, "SESSION_NOT_FOUND", "Unknown session", nil)
	}
	return es, nil
}

// SessionState returns the current snapshot for a session.
func (s *Service) SessionState(sessionID string) (SessionView, error) {
	es, err := s.session(sessionID)
	if err != nil {
		return SessionView{}, err
	}
	return s.view(es), nil
}

// TextChanged records the editor's latest text and kicks the debounced dirty
// check and autosave timers.
func (s *Service) TextChanged(sessionID, text string) error {
	es, err := s.session(sessionID)
	if err != nil {
		return err
	}
	es.setText(text)
	es.controller.TextChanged()
	return nil
}

// Save runs the save pipeline with the given flags.
func (s *Service) Save(ctx context.Context, sessionID string, opts session.SaveOptions) (SessionView, error) {
	es, err := s.session(sessionID)
	if err != nil {
		return SessionView{}, err
	}
	if err := es.controller.Save(ctx, opts); err != nil {
		return SessionView{}, err
	}
	return s.view(es), nil
}

// SetEditMode toggles between reading and editing.
func (s *Service) SetEditMode(sessionID string, edit bool) error {
	es, err := s.session(sessionID)
	if err != nil {
		return err
	}
	es.controller.SetEditMode(edit)
	return nil
}

// SetMoveModal opens or closes the move dialog.
func (s *Service) SetMoveModal(sessionID string, open bool) error {
	es, err := s.session(sessionID)
	if err != nil {
		return err
	}
	if open {
		es.controller.OpenMoveModal()
	} else {
		es.controller.CloseMoveModal()
	}
	return nil
}

// UploadImage stores an image via the configured uploader, keeping the
// session's uploading flag raised for the duration.
func (s *Service) UploadImage(ctx context.Context, sessionID, name string, r io.Reader, size int64, contentType string) (string, error) {
	es, err := s.session(sessionID)
	if err != nil {
		return "", err
	}
	url, err := es.controller.UploadImage(ctx, name, r, size, contentType)
	if err != nil {
		return "", err
	}
	return url, nil
}

// ClickLink routes an in-document link click.
func (s *Service) ClickLink(sessionID, href string) error {
	es, err := s.session(sessionID)
	if err != nil {
		return err
	}
	es.controller.ClickLink(href)
	return nil
}

// SearchLinks serves the editor's link autocomplete, preferring the search
// index over the plain store query.
func (s *Service) SearchLinks(ctx context.Context, sessionID, term string) ([]session.LinkResult, error) {
	es, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	if s.opts.Search != nil {
		resp := s.opts.Search.Search(ctx, search.Query{Text: term, Limit: 10})
		results := make([]session.LinkResult, 0, len(resp.Results))
		for _, hit := range resp.Results {
			results = append(results, session.LinkResult{Title: hit.Title, URL: hit.URL()})
		}
		return results, nil
	}
	return es.controller.SearchLinks(ctx, term)
}

// Navigate pushes a new location. A blocked guard returns a domain error
// carrying the confirmation prompt unless the client already confirmed.
func (s *Service) Navigate(sessionID, url string, confirmed bool) (SessionView, error) {
	es, err := s.session(sessionID)
	if err != nil {
		return SessionView{}, err
	}
	if message, blocked := es.controller.GuardNavigation(); blocked && !confirmed {
		return SessionView{}, domainError(http.StatusConflict, "NAVIGATION_BLOCKED", message, nil)
	}
	es.history.Replace(url)
	return s.view(es), nil
}

// GuardNavigation reports whether leaving the current page needs confirmation.
func (s *Service) GuardNavigation(sessionID string) (string, bool, error) {
	es, err := s.session(sessionID)
	if err != nil {
		return "", false, err
	}
	message, blocked := es.controller.GuardNavigation()
	return message, blocked, nil
}

// CloseSession tears a session down and forgets it.
func (s *Service) CloseSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	es, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	es.controller.Close(ctx)
	return nil
}

// RevisionHistory lists a document's saved revisions, newest first.
func (s *Service) RevisionHistory(documentID string, limit int) ([]store.RevisionMeta, error) {
	if s.opts.Revisions == nil {
		return []store.RevisionMeta{}, nil
	}
	return s.opts.Revisions.History(documentID, limit)
}

// RevisionContent returns the document content at a past revision.
func (s *Service) RevisionContent(documentID, hash string) (revisions.Content, error) {
	if s.opts.Revisions == nil {
		return revisions.Content{}, domainError(http.StatusNotFound, "NOT_FOUND", "Revisions not enabled", nil)
	}
	content, err := s.opts.Revisions.ContentAt(documentID, hash)
	if err != nil {
		return revisions.Content{}, domainError(http.StatusNotFound, "NOT_FOUND", "Revision not found", nil)
	}
	return content, nil
}

// ShareLink is a freshly issued share token and the URL embedding it.
type ShareLink struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

// CreateShareLink issues a signed share token for the document and stores its
// hash so the share fetch path can match it.
func (s *Service) CreateShareLink(ctx context.Context, documentID, password, author string) (ShareLink, error) {
	if len(s.opts.ShareSecret) == 0 {
		return ShareLink{}, domainError(http.StatusServiceUnavailable, "SHARING_UNAVAILABLE", "Sharing is not configured", nil)
	}

	token, err := share.IssueToken(s.opts.ShareSecret, documentID, author, s.opts.ShareTTL)
	if err != nil {
		return ShareLink{}, err
	}

	passwordHash := ""
	if password != "" {
		passwordHash, err = share.HashPassword(password)
		if err != nil {
			return ShareLink{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
		}
	}

	if err := s.opts.Store.SetShareToken(ctx, documentID, share.HashToken(token), passwordHash); err != nil {
		return ShareLink{}, err
	}

	base := strings.TrimRight(s.opts.AppBaseURL, "/")
	return ShareLink{Token: token, URL: base + "/share/" + token}, nil
}

// RevokeShareLink removes a document's share token.
func (s *Service) RevokeShareLink(ctx context.Context, documentID string) error {
	return s.opts.Store.SetShareToken(ctx, documentID, "", "")
}

// ExportPDF prints the session's current document to PDF.
func (s *Service) ExportPDF(ctx context.Context, sessionID string) (*export.Result, error) {
	es, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	if s.opts.Exporter == nil || !s.opts.Exporter.Available() {
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "PDF export is not configured", nil)
	}

	state := es.controller.State()
	if state.Document == nil {
		return nil, domainError(http.StatusConflict, "NO_DOCUMENT", "Session has no document loaded", nil)
	}
	doc := state.Document
	return s.opts.Exporter.ExportPDF(ctx, export.Document{
		Title:     doc.Title,
		Emoji:     doc.Emoji,
		Text:      doc.Text,
		Author:    doc.UpdatedBy,
		UpdatedAt: doc.UpdatedAt,
	})
}

// Ping checks the database connection.
func (s *Service) Ping(ctx context.Context) error {
	return s.opts.Store.Ping(ctx)
}

// Shutdown closes all live sessions.
func (s *Service) Shutdown(ctx context.Context) {
	s.mu.Lock()
	sessions := make([]*editSession, 0, len(s.sessions))
	for _, es := range s.sessions {
		sessions = append(sessions, es)
	}
	s.sessions = make(map[string]*editSession)
	s.mu.Unlock()

	for _, es := range sessions {
		es.controller.Close(ctx)
	}
}

func (s *Service) view(es *editSession) SessionView {
	state := es.controller.State()
	view := SessionView{
		SessionID:     es.id,
		Phase:         state.Phase.String(),
		EditMode:      state.EditMode,
		IsDirty:       state.IsDirty,
		IsSaving:      state.IsSaving,
		IsPublishing:  state.IsPublishing,
		IsUploading:   state.IsUploading,
		NotFound:      state.NotFound,
		Offline:       state.Offline,
		MoveModalOpen: state.MoveModalOpen,
		Location:      es.history.Current(),
	}
	if state.Document != nil {
		doc := state.Document
		dv := &DocumentView{
			ID:        doc.ID,
			Slug:      doc.Slug,
			Title:     doc.Title,
			Emoji:     doc.Emoji,
			Text:      doc.Text,
			URL:       doc.URL(),
			IsDraft:   doc.IsDraft(),
			AllowSave: doc.AllowSave,
		}
		if doc.PublishedAt != nil {
			dv.PublishedAt = doc.PublishedAt.UTC().Format(time.RFC3339)
		}
		view.Document = dv
	}
	return view
}

// persistingStore wraps the raw store so every successful save also lands in
// the revision log and the search index.
type persistingStore struct {
	Store
	author    string
	revisions RevisionLog
	search    Searcher
}

func (p *persistingStore) SaveDocument(ctx context.Context, doc store.Document, opts store.SaveOptions) (store.Document, error) {
	saved, err := p.Store.SaveDocument(ctx, doc, opts)
	if err != nil {
		return saved, err
	}

	if p.revisions != nil && !opts.Autosave {
		message := "Save document"
		if opts.Publish {
			message = "Publish document"
		}
		if _, err := p.revisions.Snapshot(saved.ID, revisions.Content{
			Title: saved.Title,
			Emoji: saved.Emoji,
			Text:  saved.Text,
		}, p.author, message); err != nil {
			log.Printf("app: revision snapshot %s: %v", saved.ID, err)
		}
	}

	if p.search != nil {
		p.search.IndexDocument(search.DocumentRecord{
			ID:           saved.ID,
			Slug:         saved.Slug,
			Title:        saved.Title,
			Body:         saved.Text,
			CollectionID: saved.CollectionID,
			Published:    saved.PublishedAt != nil,
		})
	}

	return saved, nil
}
