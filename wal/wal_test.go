package wal

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndReplay(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, DefaultConfig())
	require.NoError(t, err)

	require.NoError(t, w.Append(EntryObserved, "", map[string]int{"aps": 3}))
	require.NoError(t, w.Append(EntryChange, "AA:BB:CC:DD:EE:FF", map[string]string{"kind": "new_ap"}))
	require.NoError(t, w.AppendError(EntrySkipped, "", nil, errors.New("scan timed out")))
	require.NoError(t, w.Close())

	var entries []*Entry
	err = Replay(dir, DefaultConfig(), time.Time{}, func(e *Entry) error {
		entries = append(entries, e)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, entries, 3)
	assert.Equal(t, EntryObserved, entries[0].Type)
	assert.Equal(t, int64(1), entries[0].Sequence)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", entries[1].BSSID)
	assert.Equal(t, "scan timed out", entries[2].Error)

	var data map[string]int
	require.NoError(t, json.Unmarshal(entries[0].Data, &data))
	assert.Equal(t, 3, data["aps"])
}

func TestSequenceContinuesAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	w1, err := Open(dir, DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, w1.Append(EntryObserved, "", nil))
	require.NoError(t, w1.Append(EntryObserved, "", nil))
	require.NoError(t, w1.Append(EntryObserved, "", nil))
	require.NoError(t, w1.Close())

	w2, err := Open(dir, DefaultConfig())
	require.NoError(t, err)
	defer func() { require.NoError(t, w2.Close()) }()

	require.NoError(t, w2.Append(EntryObserved, "", nil))

	var last int64
	err = Replay(dir, DefaultConfig(), time.Time{}, func(e *Entry) error {
		if e.Sequence > last {
			last = e.Sequence
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), last)
}

func TestRotationOnSizeLimit(t *testing.T) {
	dir := t.TempDir()
	config := DefaultConfig()
	config.MaxFileSize = 128 // tiny, force rotation quickly

	w, err := Open(dir, config)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		require.NoError(t, w.Append(EntryVerdict, "AA:BB:CC:DD:EE:FF", map[string]string{"rule": "evil_twin"}))
	}
	require.NoError(t, w.Close())

	files, err := filepath.Glob(filepath.Join(dir, "apwatch-*.wal"))
	require.NoError(t, err)
	assert.Greater(t, len(files), 1, "expected rotation to create multiple files")
}

func TestReplaySince(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, w.Append(EntryObserved, "", nil))
	require.NoError(t, w.Close())

	count := 0
	err = Replay(dir, DefaultConfig(), time.Now().Add(time.Hour), func(e *Entry) error {
		count++
		return nil
	})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestReaderSkipsToEOF(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, w.Append(EntryObserved, "", nil))
	require.NoError(t, w.Close())

	files, err := filepath.Glob(filepath.Join(dir, "apwatch-*.wal"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	r, err := NewReader(files[0])
	require.NoError(t, err)
	defer func() { require.NoError(t, r.Close()) }()

	_, err = r.Next()
	require.NoError(t, err)
	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestCleanupRemovesOldFiles(t *testing.T) {
	dir := t.TempDir()
	config := DefaultConfig()
	config.RetentionDays = 7

	old := filepath.Join(dir, "apwatch-20200101-000000.000000000.wal")
	require.NoError(t, os.WriteFile(old, []byte("{}\n"), 0644))
	oldTime := time.Now().AddDate(0, 0, -30)
	require.NoError(t, os.Chtimes(old, oldTime, oldTime))

	fresh := filepath.Join(dir, "apwatch-20990101-000000.000000000.wal")
	require.NoError(t, os.WriteFile(fresh, []byte("{}\n"), 0644))

	stats, err := CleanupWithStats(dir, config)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesRemoved)

	_, err = os.Stat(fresh)
	assert.NoError(t, err)
	_, err = os.Stat(old)
	assert.True(t, os.IsNotExist(err))
}
