package memory

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/gobwas/glob"
)

// ErrInvalidPattern is returned by SearchHistory for patterns that do not compile.
var ErrInvalidPattern = errors.New("memory: invalid history search pattern")

// ReadHistory returns the history entries in the order they were appended.
// A missing history log yields no entries. Entries are delimited by blank
// lines, so an entry that itself contains a blank line is returned in parts.
func (s *Store) ReadHistory() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readHistory()
}

func (s *Store) readHistory() ([]string, error) {
	b, err := os.ReadFile(s.historyFile)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("memory: read %s: %w", s.historyFile, err)
	}
	return splitEntries(string(b)), nil
}

func splitEntries(content string) []string {
	if content == "" {
		return []string{}
	}
	parts := strings.Split(content, entrySeparator)
	// The log ends with a separator, leaving one empty tail element.
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

// SearchHistory returns the history entries matching pattern, in log order.
// The pattern is a case-insensitive glob (*, ?, [...], {a,b}); a pattern
// without wildcards matches entries containing it.
func (s *Store) SearchHistory(pattern string) ([]string, error) {
	g, err := compileSearchPattern(pattern)
	if err != nil {
		return nil, err
	}

	entries, err := s.ReadHistory()
	if err != nil {
		return nil, err
	}

	matches := []string{}
	for _, e := range entries {
		if g.Match(strings.ToLower(e)) {
			matches = append(matches, e)
		}
	}
	return matches, nil
}

func compileSearchPattern(pattern string) (glob.Glob, error) {
	p := strings.ToLower(strings.TrimSpace(pattern))
	if p == "" {
		return nil, fmt.Errorf("%w: empty pattern", ErrInvalidPattern)
	}
	if !strings.ContainsAny(p, "*?[{") {
		p = "*" + p + "*"
	}
	g, err := glob.Compile(p)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidPattern, pattern, err)
	}
	return g, nil
}
