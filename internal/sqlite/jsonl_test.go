// Tests for JSONL persistence.
package sqlite

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadJSONLSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mixed.jsonl")
	writeLines(t, path, `{"a":1}`, `not json`, ``, `{"a":2}`)

	lines, err := readJSONL(path)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"a":1}`, string(lines[0]))
	assert.JSONEq(t, `{"a":2}`, string(lines[1]))
}

func TestReadJSONLMissingFile(t *testing.T) {
	_, err := readJSONL(filepath.Join(t.TempDir(), "absent.jsonl"))
	assert.Error(t, err)
}

func TestWriteJSONLAtomicReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.jsonl")
	writeLines(t, path, `{"old":true}`)

	require.NoError(t, writeJSONL(path, []json.RawMessage{
		json.RawMessage(`{"n":1}`),
		json.RawMessage(`{"n":2}`),
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\"n\":1}\n{\"n\":2}\n", string(data))

	// No temp files are left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "leftover %s", e.Name())
	}
}

func TestJSONLFilesInitializedEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, initJSONLFiles(dir))

	for _, name := range jsonlFiles {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Zero(t, info.Size(), "%s should start empty", name)
	}
}

func TestInitJSONLFilesKeepsContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, recordsJSONL)
	writeLines(t, path, `{"record_id":"a"}`)

	require.NoError(t, initJSONLFiles(dir))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"record_id":"a"`)
}

func TestSavePersistsJSONL(t *testing.T) {
	b, dir := setupBackend(t)
	require.NoError(t, b.Save(context.Background(), sampleSnapshot(2)))

	lines, err := readJSONL(filepath.Join(dir, recordsJSONL))
	require.NoError(t, err)
	require.Len(t, lines, 3)

	byID := map[string]recordJSON{}
	for _, l := range lines {
		var rj recordJSON
		require.NoError(t, json.Unmarshal(l, &rj))
		byID[rj.RecordID] = rj
	}
	assert.Equal(t, "nuevo", byID["task-3"].BucketID)
	assert.Equal(t, 0, byID["task-3"].Position)
	assert.Equal(t, 1, byID["task-2"].Position)
	assert.Equal(t, []string{"Olla", "Sartén"}, byID["task-1"].Products)
	assert.Equal(t, "evt-1", byID["task-2"].EventID)

	meta, err := readJSONL(filepath.Join(dir, metaJSONL))
	require.NoError(t, err)
	require.Len(t, meta, 1)
	assert.JSONEq(t, `{"key":"revision","value":"2"}`, string(meta[0]))
}
