package generator

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"novel-runtime/shared/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func readEntries(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []map[string]interface{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		out = append(out, entry)
	}
	return out
}

func TestFileAttemptLog_DailyFiles(t *testing.T) {
	dir := t.TempDir()
	day := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)

	l := NewFileAttemptLog(dir, false, zap.NewNop())
	l.now = func() time.Time { return day }

	l.Record(models.AttemptRecord{Kind: models.AttemptRequest, StoryID: "harbor", SliceID: "act-1/entry", SessionID: "s1",
		Stage: models.StageStructured, SystemPrompt: "sys", UserPrompt: "usr"})
	l.Record(models.AttemptRecord{Kind: models.AttemptResponse, StoryID: "harbor", SliceID: "act-1/entry", SessionID: "s1",
		Stage: models.StageStructured, Response: "intro:x;", Error: "boom"})

	day = day.Add(2 * time.Minute)
	l.Record(models.AttemptRecord{Kind: models.AttemptRequest, StoryID: "harbor", SliceID: "act-1/next"})
	require.NoError(t, l.Close())

	first := readEntries(t, filepath.Join(dir, "runtime-20260301.log"))
	require.Len(t, first, 2)
	assert.Equal(t, "request", first[0]["kind"])
	assert.Equal(t, "usr", first[0]["userPrompt"])
	assert.Equal(t, "intro:x;", first[1]["response"])
	assert.Equal(t, "boom", first[1]["error"])
	assert.Equal(t, "s1", first[1]["sessionID"])

	second := readEntries(t, filepath.Join(dir, "runtime-20260302.log"))
	require.Len(t, second, 1)
	assert.Equal(t, "act-1/next", second[0]["sliceID"])
}

func TestFileAttemptLog_TruncatesOncePerProcess(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runtime-20260301.log")
	require.NoError(t, os.WriteFile(path, []byte("{\"old\":true}\n"), 0o644))
	now := func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }

	l := NewFileAttemptLog(dir, false, zap.NewNop())
	l.now = now
	l.Record(models.AttemptRecord{Kind: models.AttemptRequest, SliceID: "a"})
	require.NoError(t, l.Close())
	// повторное открытие тем же процессом дописывает
	l.Record(models.AttemptRecord{Kind: models.AttemptRequest, SliceID: "b"})
	require.NoError(t, l.Close())

	entries := readEntries(t, path)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0]["sliceID"])

	appending := NewFileAttemptLog(dir, true, zap.NewNop())
	appending.now = now
	appending.Record(models.AttemptRecord{Kind: models.AttemptRequest, SliceID: "c"})
	require.NoError(t, appending.Close())
	assert.Len(t, readEntries(t, path), 3)
}
