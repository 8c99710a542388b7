// Package revisions keeps a git-backed snapshot history per document. Every
// successful manual save and publish commits the document content, giving the
// product a revision timeline without a bespoke versioning store.
package revisions

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"inkwell/api/internal/store"
)

// Content is the snapshot payload committed for each revision.
type Content struct {
	Title string `json:"title"`
	Emoji string `json:"emoji,omitempty"`
	Text  string `json:"text"`
}

const snapshotFile = "document.json"

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Snapshot commits the content to the document's repo, initializing the repo
// on first use. Identical consecutive snapshots are skipped.
func (s *Service) Snapshot(documentID string, content Content, author, message string) (store.RevisionMeta, error) {
	lock := s.documentLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	repo, fresh, err := s.ensureRepo(documentID)
	if err != nil {
		return store.RevisionMeta{}, err
	}

	if !fresh {
		if head, err := s.headContent(repo); err == nil && head == content {
			meta, err := s.headMeta(repo)
			if err == nil {
				return meta, nil
			}
		}
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return store.RevisionMeta{}, fmt.Errorf("open worktree: %w", err)
	}

	payload, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return store.RevisionMeta{}, fmt.Errorf("marshal snapshot: %w", err)
	}
	repoRoot := worktree.Filesystem.Root()
	if err := os.WriteFile(filepath.Join(repoRoot, snapshotFile), append(payload, '\n'), 0o644); err != nil {
		return store.RevisionMeta{}, fmt.Errorf("write snapshot: %w", err)
	}
	if _, err := worktree.Add(snapshotFile); err != nil {
		return store.RevisionMeta{}, fmt.Errorf("git add snapshot: %w", err)
	}

	if message == "" {
		message = "Save document"
	}
	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: signature(author),
	})
	if err != nil {
		return store.RevisionMeta{}, fmt.Errorf("commit snapshot: %w", err)
	}

	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return store.RevisionMeta{}, fmt.Errorf("read commit object: %w", err)
	}
	return toMeta(commitObj), nil
}

// History returns revision metadata, newest first.
func (s *Service) History(documentID string, limit int) ([]store.RevisionMeta, error) {
	lock := s.documentLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(documentID))
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return []store.RevisionMeta{}, nil
		}
		return nil, fmt.Errorf("open repo: %w", err)
	}

	ref, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolve head: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]store.RevisionMeta, 0, limit)
	count := 0
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toMeta(commitObj))
		count++
		if limit > 0 && count >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// ContentAt returns the snapshot recorded at the given revision hash.
func (s *Service) ContentAt(documentID, hash string) (Content, error) {
	lock := s.documentLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(documentID))
	if err != nil {
		return Content{}, fmt.Errorf("open repo: %w", err)
	}

	resolved, err := resolveHash(repo, hash)
	if err != nil {
		return Content{}, err
	}
	commitObj, err := repo.CommitObject(resolved)
	if err != nil {
		return Content{}, fmt.Errorf("read commit %s: %w", hash, err)
	}
	return readContent(commitObj)
}

func (s *Service) ensureRepo(documentID string) (*git.Repository, bool, error) {
	path := s.repoPath(documentID)
	repo, err := git.PlainOpen(path)
	if err == nil {
		return repo, false, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, false, fmt.Errorf("open repo: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, false, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInit(path, false)
	if err != nil {
		return nil, false, fmt.Errorf("init repo: %w", err)
	}
	return repo, true, nil
}

func (s *Service) headContent(repo *git.Repository) (Content, error) {
	ref, err := repo.Head()
	if err != nil {
		return Content{}, err
	}
	commitObj, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return Content{}, err
	}
	return readContent(commitObj)
}

func (s *Service) headMeta(repo *git.Repository) (store.RevisionMeta, error) {
	ref, err := repo.Head()
	if err != nil {
		return store.RevisionMeta{}, err
	}
	commitObj, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return store.RevisionMeta{}, err
	}
	return toMeta(commitObj), nil
}

func (s *Service) repoPath(documentID string) string {
	return filepath.Join(s.baseDir, documentID)
}

func (s *Service) documentLock(documentID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[documentID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[documentID] = lock
	return lock
}

func signature(author string) *object.Signature {
	if author == "" {
		author = "inkwell"
	}
	return &object.Signature{
		Name:  author,
		Email: fmt.Sprintf("%s@local.inkwell.dev", sanitizeEmail(author)),
		When:  time.Now(),
	}
}

func readContent(commitObj *object.Commit) (Content, error) {
	file, err := commitObj.File(snapshotFile)
	if err != nil {
		return Content{}, fmt.Errorf("load snapshot from commit: %w", err)
	}
	reader, err := file.Reader()
	if err != nil {
		return Content{}, fmt.Errorf("open snapshot reader: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return Content{}, fmt.Errorf("read snapshot bytes: %w", err)
	}

	var content Content
	if err := json.Unmarshal(data, &content); err != nil {
		return Content{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return content, nil
}

func toMeta(commitObj *object.Commit) store.RevisionMeta {
	return store.RevisionMeta{
		Hash:      commitObj.Hash.String()[:7],
		Message:   commitObj.Message,
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "user"
	}
	return string(out)
}

func resolveHash(repo *git.Repository, hash string) (plumbing.Hash, error) {
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve hash %s: %w", hash, err)
	}
	return *resolved, nil
}
