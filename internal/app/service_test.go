package app

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"inkwell/api/internal/revisions"
	"inkwell/api/internal/session"
	"inkwell/api/internal/store"
)

type memStore struct {
	mu             sync.Mutex
	docs           map[string]store.Document
	shareTokens    map[string]string
	passwordHashes map[string]string
	saveCalls      int
	nextID         int
}

func newMemStore(docs ...store.Document) *memStore {
	m := &memStore{
		docs:           make(map[string]store.Document),
		shareTokens:    make(map[string]string),
		passwordHashes: make(map[string]string),
	}
	for _, d := range docs {
		m.docs[d.ID] = d
	}
	return m
}

func (m *memStore) FetchDocument(ctx context.Context, slugOrID, shareToken string) (store.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.docs {
		if d.ID != slugOrID && d.Slug != slugOrID {
			continue
		}
		if token, shared := m.shareTokens[d.ID]; shared && shareToken != "" && token != shareToken {
			continue
		}
		return d, nil
	}
	return store.Document{}, store.ErrNotFound
}

func (m *memStore) SaveDocument(ctx context.Context, doc store.Document, opts store.SaveOptions) (store.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveCalls++
	now := time.Now().UTC()
	if doc.ID == "" {
		m.nextID++
		doc.ID = "doc_" + strings.Repeat("x", m.nextID)
		doc.Slug = "saved-doc"
		doc.AllowSave = true
		doc.CreatedAt = now
	}
	if opts.Publish && doc.PublishedAt == nil {
		doc.PublishedAt = &now
	}
	doc.UpdatedAt = now
	m.docs[doc.ID] = doc
	return doc, nil
}

func (m *memStore) MarkViewed(ctx context.Context, documentID string) error { return nil }

func (m *memStore) SearchDocuments(ctx context.Context, term string, limit int) ([]store.SearchHit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	hits := []store.SearchHit{}
	for _, d := range m.docs {
		if strings.Contains(strings.ToLower(d.Title), strings.ToLower(term)) {
			hits = append(hits, store.SearchHit{ID: d.ID, Slug: d.Slug, Title: d.Title})
		}
	}
	return hits, nil
}

func (m *memStore) SetShareToken(ctx context.Context, documentID, token, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if token == "" {
		delete(m.shareTokens, documentID)
		delete(m.passwordHashes, documentID)
		return nil
	}
	m.shareTokens[documentID] = token
	m.passwordHashes[documentID] = passwordHash
	return nil
}

func (m *memStore) SharePasswordHash(ctx context.Context, documentID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[documentID]; !ok {
		return "", store.ErrNotFound
	}
	return m.passwordHashes[documentID], nil
}

func (m *memStore) EnsureCollection(ctx context.Context, id, name string) error { return nil }

func (m *memStore) Ping(ctx context.Context) error { return nil }

func (m *memStore) saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveCalls
}

type fakeRevisions struct {
	mu        sync.Mutex
	snapshots []string
}

func (f *fakeRevisions) Snapshot(documentID string, content revisions.Content, author, message string) (store.RevisionMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots = append(f.snapshots, message)
	return store.RevisionMeta{Hash: "abc1234", Message: message, Author: author}, nil
}

func (f *fakeRevisions) History(documentID string, limit int) ([]store.RevisionMeta, error) {
	return []store.RevisionMeta{{Hash: "abc1234", Message: "Save document"}}, nil
}

func (f *fakeRevisions) ContentAt(documentID, hash string) (revisions.Content, error) {
	if hash != "abc1234" {
		return revisions.Content{}, errors.New("unknown revision")
	}
	return revisions.Content{Title: "Old", Text: "old text"}, nil
}

func (f *fakeRevisions) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.snapshots...)
}

func publishedDoc(id string) store.Document {
	published := time.Now().Add(-time.Hour)
	return store.Document{
		ID:          id,
		Slug:        id,
		Title:       "Doc " + id,
		Text:        "body of " + id,
		AllowSave:   true,
		PublishedAt: &published,
	}
}

func newTestService(st Store, revs RevisionLog) *Service {
	return NewService(Options{
		Store:            st,
		Revisions:        revs,
		AppBaseURL:       "http://app.test",
		ShareSecret:      []byte("test-secret"),
		DirtyDebounce:    20 * time.Millisecond,
		AutosaveDebounce: 10 * time.Second,
		MarkViewedDelay:  10 * time.Second,
	})
}

func TestOpenSessionLoadsDocument(t *testing.T) {
	svc := newTestService(newMemStore(publishedDoc("launch-plan")), nil)
	defer svc.Shutdown(context.Background())

	view, err := svc.OpenSession(context.Background(), OpenRequest{
		SlugOrID:      "launch-plan",
		Authenticated: true,
		Author:        "alice",
	})
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	if view.SessionID == "" {
		t.Fatal("expected a generated session id")
	}
	if view.Phase != "ready" {
		t.Fatalf("phase = %q", view.Phase)
	}
	if view.Document == nil || view.Document.Slug != "launch-plan" {
		t.Fatalf("document = %+v", view.Document)
	}
	if view.Location != "/doc/launch-plan" {
		t.Fatalf("location = %q, expected canonical URL rewrite", view.Location)
	}
}

func TestOpenNewDocumentSession(t *testing.T) {
	svc := newTestService(newMemStore(), nil)
	defer svc.Shutdown(context.Background())

	view, err := svc.OpenSession(context.Background(), OpenRequest{
		IsNewDocument: true,
		Authenticated: true,
		EditMode:      true,
		Author:        "alice",
	})
	if err != nil {
		t.Fatalf("open new document: %v", err)
	}
	if view.Document == nil || view.Document.ID != "" {
		t.Fatalf("new document must stay unsaved until first save: %+v", view.Document)
	}
	if !view.Document.IsDraft {
		t.Fatal("new document must be a draft")
	}
	if view.Document.URL != "/doc/new" {
		t.Fatalf("url = %q", view.Document.URL)
	}
}

func TestOpenSessionNotFound(t *testing.T) {
	svc := newTestService(newMemStore(), nil)
	defer svc.Shutdown(context.Background())

	view, err := svc.OpenSession(context.Background(), OpenRequest{
		SlugOrID:      "nope",
		Authenticated: true,
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if !view.NotFound {
		t.Fatal("view must carry the not-found flag")
	}
}

func TestTextChangeAndManualSave(t *testing.T) {
	st := newMemStore(publishedDoc("abc"))
	revs := &fakeRevisions{}
	svc := newTestService(st, revs)
	defer svc.Shutdown(context.Background())

	view, err := svc.OpenSession(context.Background(), OpenRequest{
		SlugOrID:      "abc",
		Authenticated: true,
		EditMode:      true,
		Author:        "alice",
	})
	if err != nil {
		t.Fatalf("open session: %v", err)
	}

	if err := svc.TextChanged(view.SessionID, "rewritten body"); err != nil {
		t.Fatalf("text changed: %v", err)
	}

	saved, err := svc.Save(context.Background(), view.SessionID, session.SaveOptions{})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.IsDirty || saved.IsSaving {
		t.Fatalf("flags must clear after save: %+v", saved)
	}
	if saved.Document.Text != "rewritten body" {
		t.Fatalf("document text = %q", saved.Document.Text)
	}
	if st.saves() != 1 {
		t.Fatalf("store saves = %d", st.saves())
	}
	if got := revs.messages(); len(got) != 1 || got[0] != "Save document" {
		t.Fatalf("revision snapshots = %v", got)
	}
}

func TestAutosaveSkipsRevisionSnapshot(t *testing.T) {
	st := newMemStore(publishedDoc("abc"))
	revs := &fakeRevisions{}
	svc := newTestService(st, revs)
	defer svc.Shutdown(context.Background())

	view, err := svc.OpenSession(context.Background(), OpenRequest{
		SlugOrID:      "abc",
		Authenticated: true,
		EditMode:      true,
	})
	if err != nil {
		t.Fatalf("open session: %v", err)
	}

	if err := svc.TextChanged(view.SessionID, "autosaved body"); err != nil {
		t.Fatalf("text changed: %v", err)
	}
	if _, err := svc.Save(context.Background(), view.SessionID, session.SaveOptions{Autosave: true}); err != nil {
		t.Fatalf("autosave: %v", err)
	}
	if st.saves() != 1 {
		t.Fatalf("store saves = %d", st.saves())
	}
	if got := revs.messages(); len(got) != 0 {
		t.Fatalf("autosave must not snapshot, got %v", got)
	}
}

func TestPublishSaveUsesPublishMessage(t *testing.T) {
	revs := &fakeRevisions{}
	svc := newTestService(newMemStore(publishedDoc("abc")), revs)
	defer svc.Shutdown(context.Background())

	view, err := svc.OpenSession(context.Background(), OpenRequest{
		SlugOrID:      "abc",
		Authenticated: true,
		EditMode:      true,
	})
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	if err := svc.TextChanged(view.SessionID, "published body"); err != nil {
		t.Fatalf("text changed: %v", err)
	}
	if _, err := svc.Save(context.Background(), view.SessionID, session.SaveOptions{Publish: true}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got := revs.messages(); len(got) != 1 || got[0] != "Publish document" {
		t.Fatalf("revision snapshots = %v", got)
	}
}

func TestNavigateBlockedByGuard(t *testing.T) {
	svc := newTestService(newMemStore(publishedDoc("abc")), nil)
	defer svc.Shutdown(context.Background())

	view, err := svc.OpenSession(context.Background(), OpenRequest{
		SlugOrID:      "abc",
		Authenticated: true,
		EditMode:      true,
	})
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	if err := svc.TextChanged(view.SessionID, "unsaved edit"); err != nil {
		t.Fatalf("text changed: %v", err)
	}
	time.Sleep(40 * time.Millisecond)

	_, err = svc.Navigate(view.SessionID, "/doc/other", false)
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != http.StatusConflict {
		t.Fatalf("expected NAVIGATION_BLOCKED conflict, got %v", err)
	}

	moved, err := svc.Navigate(view.SessionID, "/doc/other", true)
	if err != nil {
		t.Fatalf("confirmed navigate: %v", err)
	}
	if moved.Location != "/doc/other" {
		t.Fatalf("location = %q", moved.Location)
	}
}

func TestShareLinkRoundTrip(t *testing.T) {
	st := newMemStore(publishedDoc("abc"))
	svc := newTestService(st, nil)
	defer svc.Shutdown(context.Background())

	link, err := svc.CreateShareLink(context.Background(), "abc", "", "alice")
	if err != nil {
		t.Fatalf("create share link: %v", err)
	}
	if !strings.HasPrefix(link.URL, "http://app.test/share/") {
		t.Fatalf("share url = %q", link.URL)
	}

	view, err := svc.OpenSession(context.Background(), OpenRequest{ShareToken: link.Token})
	if err != nil {
		t.Fatalf("open via share link: %v", err)
	}
	if view.Document == nil || view.Document.ID != "abc" {
		t.Fatalf("document = %+v", view.Document)
	}
	if view.Location != "/" {
		t.Fatalf("share visits must not rewrite the location, got %q", view.Location)
	}
}

func TestShareLinkPasswordProtected(t *testing.T) {
	svc := newTestService(newMemStore(publishedDoc("abc")), nil)
	defer svc.Shutdown(context.Background())

	link, err := svc.CreateShareLink(context.Background(), "abc", "hunter2", "alice")
	if err != nil {
		t.Fatalf("create share link: %v", err)
	}

	_, err = svc.OpenSession(context.Background(), OpenRequest{ShareToken: link.Token})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "SHARE_PASSWORD_REQUIRED" {
		t.Fatalf("expected password rejection, got %v", err)
	}

	if _, err := svc.OpenSession(context.Background(), OpenRequest{
		ShareToken:    link.Token,
		SharePassword: "hunter2",
	}); err != nil {
		t.Fatalf("open with password: %v", err)
	}
}

func TestShareLinkRejectsGarbageToken(t *testing.T) {
	svc := newTestService(newMemStore(publishedDoc("abc")), nil)
	defer svc.Shutdown(context.Background())

	_, err := svc.OpenSession(context.Background(), OpenRequest{ShareToken: "not-a-token"})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestCloseSessionForgetsIt(t *testing.T) {
	svc := newTestService(newMemStore(publishedDoc("abc")), nil)

	view, err := svc.OpenSession(context.Background(), OpenRequest{
		SlugOrID:      "abc",
		Authenticated: true,
	})
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	if err := svc.CloseSession(context.Background(), view.SessionID); err != nil {
		t.Fatalf("close session: %v", err)
	}
	if _, err := svc.SessionState(view.SessionID); err == nil {
		t.Fatal("closed session must be forgotten")
	}
}

func TestRevisionContentMapsUnknownHash(t *testing.T) {
	svc := newTestService(newMemStore(), &fakeRevisions{})

	if _, err := svc.RevisionContent("doc", "abc1234"); err != nil {
		t.Fatalf("known revision: %v", err)
	}
	_, err := svc.RevisionContent("doc", "zzzzzzz")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != http.StatusNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSearchLinksFallsBackToStore(t *testing.T) {
	svc := newTestService(newMemStore(publishedDoc("abc")), nil)
	defer svc.Shutdown(context.Background())

	view, err := svc.OpenSession(context.Background(), OpenRequest{
		SlugOrID:      "abc",
		Authenticated: true,
	})
	if err != nil {
		t.Fatalf("open session: %v", err)
	}

	results, err := svc.SearchLinks(context.Background(), view.SessionID, "Doc abc")
	if err != nil {
		t.Fatalf("search links: %v", err)
	}
	if len(results) != 1 || results[0].URL != "/doc/abc" {
		t.Fatalf("results = %+v", results)
	}
}
