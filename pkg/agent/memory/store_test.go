package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestNewStore_DoesNoIO(t *testing.T) {
	root := filepath.Join(t.TempDir(), "does", "not", "exist")
	store := NewStore(root)

	assert.Equal(t, root, store.Root())
	assert.Equal(t, filepath.Join(root, HistoryFileName), store.HistoryFile())
	assert.Equal(t, filepath.Join(root, MemoryFileName), store.MemoryFile())

	_, err := os.Stat(root)
	assert.True(t, os.IsNotExist(err), "constructor must not create the root")
}

func TestNewStore_EmptyRoot(t *testing.T) {
	store := NewStore("")
	assert.Equal(t, ".", store.Root())
	assert.Equal(t, HistoryFileName, store.HistoryFile())
}

func TestWorkspaceDir(t *testing.T) {
	assert.Equal(t, filepath.Join("ws", "memory"), WorkspaceDir("ws"))
}

func TestAppendHistory_AcceptsString(t *testing.T) {
	store := NewStore(t.TempDir())

	require.NoError(t, store.AppendHistory("[2026-02-14] Test entry"))

	content := readFile(t, store.HistoryFile())
	assert.Contains(t, content, "Test entry")
	assert.Equal(t, "[2026-02-14] Test entry\n\n", content)
}

func TestAppendHistory_StructuredEntryIsOneJSONLine(t *testing.T) {
	store := NewStore(t.TempDir())

	require.NoError(t, store.AppendHistory(orderedEntry()))

	lines := strings.Split(readFile(t, store.HistoryFile()), "\n")
	assert.Contains(t, lines, `{"timestamp": "2026-02-14", "summary": "test"}`)
}

func TestAppendHistory_NeverRejectsJSONShapes(t *testing.T) {
	store := NewStore(t.TempDir())

	values := []any{
		"text",
		map[string]any{"timestamp": "2026-02-14", "summary": "User asked about..."},
		[]any{"item1", "item2"},
		map[string]any{"nested": map[string]any{"list": []any{1, []any{2, 3}}}},
		[]any{map[string]any{"a": nil}},
		7,
		-1.5,
		false,
		nil,
		json.RawMessage(`{"raw": ["json"]}`),
	}
	for _, v := range values {
		require.NoError(t, store.AppendHistory(v), "value %#v", v)
	}

	entries, err := store.ReadHistory()
	require.NoError(t, err)
	assert.Len(t, entries, len(values))
}

func TestAppendHistory_PreservesCallOrder(t *testing.T) {
	store := NewStore(t.TempDir())

	var want []string
	for i := 0; i < 25; i++ {
		var v any = fmt.Sprintf("[entry %d] plain text", i)
		if i%3 == 0 {
			v = map[string]any{"index": i, "kind": "structured"}
		}
		require.NoError(t, store.AppendHistory(v))

		text, err := Normalize(v)
		require.NoError(t, err)
		want = append(want, text)
	}

	got, err := store.ReadHistory()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestAppendHistory_KeepsExistingContent(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)
	require.NoError(t, os.WriteFile(store.HistoryFile(), []byte("[2026-01-01] earlier session\n\n"), 0o600))

	require.NoError(t, store.AppendHistory("[2026-02-14] new entry"))

	assert.Equal(t, "[2026-01-01] earlier session\n\n[2026-02-14] new entry\n\n", readFile(t, store.HistoryFile()))
}

func TestAppendHistory_TrimsTrailingNewlines(t *testing.T) {
	store := NewStore(t.TempDir())

	require.NoError(t, store.AppendHistory("line one\n\n\n"))
	require.NoError(t, store.AppendHistory("line two"))

	entries, err := store.ReadHistory()
	require.NoError(t, err)
	assert.Equal(t, []string{"line one", "line two"}, entries)
}

func TestAppendHistory_CreatesNestedRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "workspace", "memory")
	store := NewStore(root)

	require.NoError(t, store.AppendHistory("first"))

	info, err := os.Stat(root)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestAppendHistory_ConcurrentCallsDoNotInterleave(t *testing.T) {
	store := NewStore(t.TempDir())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, store.AppendHistory(map[string]any{"worker": i, "note": strings.Repeat("x", 512)}))
		}(i)
	}
	wg.Wait()

	entries, err := store.ReadHistory()
	require.NoError(t, err)
	require.Len(t, entries, 20)
	for _, e := range entries {
		var parsed map[string]any
		assert.NoError(t, json.Unmarshal([]byte(e), &parsed), "entry corrupted: %q", e)
	}
}

func TestAppendHistory_NotSerializable(t *testing.T) {
	store := NewStore(t.TempDir())

	err := store.AppendHistory(map[string]any{"callback": func() {}})
	assert.ErrorIs(t, err, ErrNotSerializable)

	_, statErr := os.Stat(store.HistoryFile())
	assert.True(t, os.IsNotExist(statErr), "nothing should be written for rejected input")
}

func TestAppendHistory_IOErrorPropagates(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("file"), 0o600))
	store := NewStore(filepath.Join(blocker, "memory"))

	err := store.AppendHistory("entry")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotSerializable)

	err = store.WriteLongTerm("doc")
	require.Error(t, err)
}

func TestWriteLongTerm_AcceptsString(t *testing.T) {
	store := NewStore(t.TempDir())

	require.NoError(t, store.WriteLongTerm("- Fact 1\n- Fact 2"))

	content, err := store.ReadLongTerm()
	require.NoError(t, err)
	assert.Equal(t, "- Fact 1\n- Fact 2", content)
}

func TestWriteLongTerm_StructuredFacts(t *testing.T) {
	store := NewStore(t.TempDir())

	require.NoError(t, store.WriteLongTerm(map[string]any{"facts": []any{"Location: Beijing", "Skill: Python"}}))

	content, err := store.ReadLongTerm()
	require.NoError(t, err)
	assert.Contains(t, content, `"facts"`)
	assert.Contains(t, content, "Location: Beijing")
	assert.Contains(t, content, "Skill: Python")
	assert.Equal(t, `{"facts": ["Location: Beijing", "Skill: Python"]}`, content)
}

func TestWriteLongTerm_FullyReplaces(t *testing.T) {
	store := NewStore(t.TempDir())

	require.NoError(t, store.WriteLongTerm("- old fact that is quite long\n- another old fact"))
	require.NoError(t, store.WriteLongTerm([]any{"new"}))

	content, err := store.ReadLongTerm()
	require.NoError(t, err)
	assert.Equal(t, `["new"]`, content)
	assert.NotContains(t, content, "old fact")
}

func TestWriteLongTerm_LeavesNoTempFiles(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)

	for i := 0; i < 3; i++ {
		require.NoError(t, store.WriteLongTerm(fmt.Sprintf("version %d", i)))
	}

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, MemoryFileName, entries[0].Name())
}

func TestReadLongTerm_MissingDocument(t *testing.T) {
	root := filepath.Join(t.TempDir(), "fresh")
	store := NewStore(root)

	content, err := store.ReadLongTerm()
	require.NoError(t, err)
	assert.Empty(t, content)

	_, statErr := os.Stat(root)
	assert.True(t, os.IsNotExist(statErr), "reading must not create the root")
}

func TestReadHistory_MissingLog(t *testing.T) {
	store := NewStore(t.TempDir())

	entries, err := store.ReadHistory()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_ReopenFindsSameFiles(t *testing.T) {
	root := t.TempDir()
	first := NewStore(root)
	require.NoError(t, first.AppendHistory("[2026-02-14] session one"))
	require.NoError(t, first.WriteLongTerm("- remembers things"))

	second := NewStore(root)
	content, err := second.ReadLongTerm()
	require.NoError(t, err)
	assert.Equal(t, "- remembers things", content)

	entries, err := second.ReadHistory()
	require.NoError(t, err)
	assert.Equal(t, []string{"[2026-02-14] session one"}, entries)
}
