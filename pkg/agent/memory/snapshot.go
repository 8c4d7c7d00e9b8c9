package memory

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Snapshot is a point-in-time copy of everything a Store holds.
type Snapshot struct {
	Root     string   `yaml:"root"`
	LongTerm string   `yaml:"long_term"`
	History  []string `yaml:"history"`
}

// Export reads the long-term document and history log under one lock.
func (s *Store) Export() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	longTerm, err := s.readLongTerm()
	if err != nil {
		return nil, err
	}
	history, err := s.readHistory()
	if err != nil {
		return nil, err
	}
	return &Snapshot{Root: s.root, LongTerm: longTerm, History: history}, nil
}

// YAML renders the snapshot as a YAML document.
func (sn *Snapshot) YAML() ([]byte, error) {
	b, err := yaml.Marshal(sn)
	if err != nil {
		return nil, fmt.Errorf("memory: serialize snapshot: %w", err)
	}
	return b, nil
}

// ParseSnapshot decodes a document produced by Snapshot.YAML.
func ParseSnapshot(raw []byte) (*Snapshot, error) {
	var sn Snapshot
	if err := yaml.Unmarshal(raw, &sn); err != nil {
		return nil, fmt.Errorf("memory: snapshot parse error: %w", err)
	}
	if sn.History == nil {
		sn.History = []string{}
	}
	return &sn, nil
}
