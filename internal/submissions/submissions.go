// Package submissions persists accepted contact form messages as a JSON log.
package submissions

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultFilePath is where submissions are stored.
	DefaultFilePath = "data/submissions.json"
)

// ErrNotFound is returned when a submission ID cannot be located.
var ErrNotFound = errors.New("submission not found")

// File represents the on-disk submissions format.
type File struct {
	SchemaRef   string       `json:"$schema,omitempty"`
	Submissions []Submission `json:"submissions"`
}

// Submission is one accepted contact form message.
type Submission struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone,omitempty"`
	Message     string    `json:"message"`
	Files       []string  `json:"files,omitempty"`
	SubmittedAt time.Time `json:"submittedAt"`
	RemoteAddr  string    `json:"remoteAddr,omitempty"`
}

// Store reads and writes the submissions file.
type Store struct {
	path  string
	mu    sync.Mutex
	now   func() time.Time
	newID func() string
}

// Option customises a Store.
type Option func(*Store)

// WithNow overrides the clock used for SubmittedAt.
func WithNow(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides how IDs are minted.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewStore returns a Store backed by path.
func NewStore(path string, opts ...Option) *Store {
	if path == "" {
		path = DefaultFilePath
	}
	s := &Store{
		path:  path,
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return "sub_" + uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the file backing the store.
func (s *Store) Path() string {
	return s.path
}

// List returns every submission, newest first.
func (s *Store) List() ([]Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	file, err := s.read()
	if err != nil {
		return nil, err
	}
	out := make([]Submission, len(file.Submissions))
	copy(out, file.Submissions)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	return out, nil
}

// Get returns the submission with id.
func (s *Store) Get(id string) (Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	file, err := s.read()
	if err != nil {
		return Submission{}, err
	}
	for _, sub := range file.Submissions {
		if sub.ID == id {
			return sub, nil
		}
	}
	return Submission{}, ErrNotFound
}

// Append stores a new submission, filling ID and SubmittedAt when unset.
func (s *Store) Append(submission Submission) (Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.read()
	if err != nil {
		return Submission{}, err
	}
	saved := submission
	if saved.ID == "" {
		saved.ID = s.newID()
	}
	if saved.SubmittedAt.IsZero() {
		saved.SubmittedAt = s.now()
	}
	file.Submissions = append(file.Submissions, saved)
	if err := s.write(file); err != nil {
		return Submission{}, err
	}
	return saved, nil
}

// Remove deletes the submission with id and returns it.
func (s *Store) Remove(id string) (Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.read()
	if err != nil {
		return Submission{}, err
	}
	idx := -1
	for i, sub := range file.Submissions {
		if sub.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return Submission{}, ErrNotFound
	}
	removed := file.Submissions[idx]
	file.Submissions = append(file.Submissions[:idx], file.Submissions[idx+1:]...)
	if err := s.write(file); err != nil {
		return Submission{}, err
	}
	return removed, nil
}

func (s *Store) read() (File, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return File{Submissions: []Submission{}}, nil
		}
		return File{}, err
	}
	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		return File{}, fmt.Errorf("decode submissions file: %w", err)
	}
	if file.Submissions == nil {
		file.Submissions = []Submission{}
	}
	return file, nil
}

func (s *Store) write(file File) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create submissions dir: %w", err)
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("encode submissions file: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write submissions file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace submissions file: %w", err)
	}
	return nil
}
