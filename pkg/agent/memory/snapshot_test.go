package memory

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportSnapshot(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, store.AppendHistory("[2026-02-14] Test entry"))
	require.NoError(t, store.AppendHistory(orderedEntry()))
	require.NoError(t, store.WriteLongTerm("- Fact 1\n- Fact 2"))

	sn, err := store.Export()
	require.NoError(t, err)
	assert.Equal(t, store.Root(), sn.Root)
	assert.Equal(t, "- Fact 1\n- Fact 2", sn.LongTerm)
	assert.Equal(t, []string{
		"[2026-02-14] Test entry",
		`{"timestamp": "2026-02-14", "summary": "test"}`,
	}, sn.History)

	raw, err := sn.YAML()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "root: "), "unexpected YAML: %s", raw)

	parsed, err := ParseSnapshot(raw)
	require.NoError(t, err)
	assert.Equal(t, sn, parsed)
}

func TestExportSnapshot_EmptyStore(t *testing.T) {
	store := NewStore(t.TempDir())

	sn, err := store.Export()
	require.NoError(t, err)
	assert.Empty(t, sn.LongTerm)
	assert.Empty(t, sn.History)

	raw, err := sn.YAML()
	require.NoError(t, err)
	parsed, err := ParseSnapshot(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{}, parsed.History)
}

func TestParseSnapshot_Invalid(t *testing.T) {
	_, err := ParseSnapshot([]byte("history: [unterminated"))
	assert.Error(t, err)
}
