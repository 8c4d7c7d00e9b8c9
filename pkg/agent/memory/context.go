package memory

import (
	"strings"
)

const (
	contextHeader   = "## Long-term Memory\n"
	truncatedMarker = "…(truncated)"
)

// TokenCounter counts model tokens in a piece of text.
type TokenCounter interface {
	CountTokens(text string) int
}

// Stats summarises what the store currently holds.
type Stats struct {
	HistoryEntries int
	LongTermBytes  int
	LongTermTokens int
}

// GetMemoryContext renders the long-term memory for inclusion in a system
// prompt. It returns "" when nothing has been consolidated yet.
func (s *Store) GetMemoryContext() (string, error) {
	return s.BuildContext(nil, 0)
}

// BuildContext renders the long-term memory like GetMemoryContext, dropping
// trailing lines until the result fits in budget tokens. A nil counter or a
// budget <= 0 disables trimming. If not even the first line fits, "" is returned.
func (s *Store) BuildContext(counter TokenCounter, budget int) (string, error) {
	content, err := s.ReadLongTerm()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(content) == "" {
		return "", nil
	}

	full := contextHeader + content
	if counter == nil || budget <= 0 || counter.CountTokens(full) <= budget {
		return full, nil
	}

	lines := strings.Split(content, "\n")
	render := func(n int) string {
		return contextHeader + strings.Join(lines[:n], "\n") + "\n" + truncatedMarker
	}

	// Binary search for the largest prefix of lines that fits.
	lo, hi, best := 1, len(lines)-1, 0
	for lo <= hi {
		mid := (lo + hi) / 2
		if counter.CountTokens(render(mid)) <= budget {
			best = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	if best == 0 {
		debugLog.Warnf("Long-term memory does not fit a %d token budget", budget)
		return "", nil
	}
	debugLog.Debugf("Trimmed long-term memory context to %d of %d lines", best, len(lines))
	return render(best), nil
}

// Stats reports the number of history entries and the size of the long-term
// document. Tokens are only counted when counter is non-nil.
func (s *Store) Stats(counter TokenCounter) (Stats, error) {
	s.mu.Lock()
	entries, err := s.readHistory()
	if err != nil {
		s.mu.Unlock()
		return Stats{}, err
	}
	content, err := s.readLongTerm()
	s.mu.Unlock()
	if err != nil {
		return Stats{}, err
	}

	st := Stats{
		HistoryEntries: len(entries),
		LongTermBytes:  len(content),
	}
	if counter != nil {
		st.LongTermTokens = counter.CountTokens(content)
	}
	return st, nil
}
