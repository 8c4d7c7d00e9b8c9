package memory

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/entrhq/forge-memory/pkg/logging"
)

const (
	// HistoryFileName is the append-only history log under the store root.
	HistoryFileName = "HISTORY.md"
	// MemoryFileName is the long-term memory document under the store root.
	MemoryFileName = "MEMORY.md"

	// entrySeparator terminates every history entry, leaving a blank line
	// between entries.
	entrySeparator = "\n\n"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("memory")
	if err != nil {
		debugLog.Warnf("Failed to initialize memory logger, using stderr fallback: %v", err)
	}
}

// Store persists an agent's history log and long-term memory document under
// a single root directory. Nothing is read or written until an operation is
// called; the directory and files are created on first write.
//
// Calls through one Store are serialized. Independent Stores (or processes)
// sharing a root must be coordinated by the caller.
type Store struct {
	root        string
	historyFile string
	memoryFile  string
	mu          sync.Mutex
}

// NewStore returns a Store rooted at root. The directory does not need to
// exist. An empty root means the current directory.
func NewStore(root string) *Store {
	if root == "" {
		root = "."
	}
	return &Store{
		root:        root,
		historyFile: filepath.Join(root, HistoryFileName),
		memoryFile:  filepath.Join(root, MemoryFileName),
	}
}

// WorkspaceDir returns the conventional memory root inside an agent workspace.
func WorkspaceDir(workspace string) string {
	return filepath.Join(workspace, "memory")
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

// HistoryFile returns the path of the history log.
func (s *Store) HistoryFile() string { return s.historyFile }

// MemoryFile returns the path of the long-term memory document.
func (s *Store) MemoryFile() string { return s.memoryFile }

// AppendHistory normalizes value and appends it to the history log as a new
// entry. Existing entries are never modified.
func (s *Store) AppendHistory(value any) error {
	entry, err := normalizeFor("history entry", value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureRoot(); err != nil {
		return err
	}

	f, err := os.OpenFile(s.historyFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("memory: open %s: %w", s.historyFile, err)
	}
	if _, err := f.WriteString(strings.TrimRight(entry, "\n") + entrySeparator); err != nil {
		_ = f.Close()
		return fmt.Errorf("memory: append %s: %w", s.historyFile, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("memory: close %s: %w", s.historyFile, err)
	}

	debugLog.Debugf("Appended %d bytes to %s", len(entry), s.historyFile)
	return nil
}

// WriteLongTerm normalizes value and replaces the long-term memory document
// with it. The new file is written to a temporary path and renamed into
// place, so readers see either the old or the new document.
func (s *Store) WriteLongTerm(value any) error {
	content, err := normalizeFor("memory update", value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureRoot(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.root, "."+MemoryFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("memory: create temp file in %s: %w", s.root, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("memory: write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("memory: close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, s.memoryFile); err != nil {
		_ = os.Remove(tmpName) // best-effort cleanup
		return fmt.Errorf("memory: atomic rename %s: %w", s.memoryFile, err)
	}

	debugLog.Debugf("Wrote %d bytes to %s", len(content), s.memoryFile)
	return nil
}

// ReadLongTerm returns the long-term memory document, or "" if nothing has
// been written yet.
func (s *Store) ReadLongTerm() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLongTerm()
}

func (s *Store) readLongTerm() (string, error) {
	b, err := os.ReadFile(s.memoryFile)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("memory: read %s: %w", s.memoryFile, err)
	}
	return string(b), nil
}

func (s *Store) ensureRoot() error {
	if err := os.MkdirAll(s.root, 0o750); err != nil {
		return fmt.Errorf("memory: init directory %s: %w", s.root, err)
	}
	return nil
}

func normalizeFor(what string, value any) (string, error) {
	text, err := Normalize(value)
	if err != nil {
		debugLog.Errorf("Rejected %s of type %T: %v", what, value, err)
		return "", err
	}
	if _, isText := value.(string); !isText {
		debugLog.Warnf("Received %s as %T, stored as JSON text", what, value)
	}
	return text, nil
}
