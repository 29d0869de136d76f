package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apwatch/apwatch/types"
)

func newTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	return s
}

func obsAt(bssid, ssid string, enc types.Encryption, signal int, at time.Time) types.Observation {
	return types.Observation{
		BSSID:      bssid,
		SSID:       ssid,
		SignalDBM:  signal,
		Encryption: enc,
		ObservedAt: at,
	}
}

func TestUpsertFirstSeenIsTrusted(t *testing.T) {
	s := newTestStore(t, DefaultOptions())
	now := time.Now()

	rec, created, err := s.Upsert(obsAt("AA:BB:CC:DD:EE:FF", "HomeNet", types.EncryptionWPA2, -50, now))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "HomeNet", rec.BaselineSSID)
	assert.Equal(t, types.EncryptionWPA2, rec.BaselineEncryption)
	assert.Equal(t, now.Unix(), rec.FirstSeen.Unix())

	// A later observation with a different SSID must not touch the baseline.
	rec, created, err = s.Upsert(obsAt("AA:BB:CC:DD:EE:FF", "EvilNet", types.EncryptionOpen, -50, now.Add(time.Minute)))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "HomeNet", rec.BaselineSSID)
	assert.Equal(t, types.EncryptionWPA2, rec.BaselineEncryption)
	assert.Len(t, rec.Recent, 2)
}

func TestHistoryWindowBound(t *testing.T) {
	opts := DefaultOptions()
	opts.HistoryWindow = 5
	s := newTestStore(t, opts)

	now := time.Now()
	for i := 0; i < 20; i++ {
		_, _, err := s.Upsert(obsAt("AA:BB:CC:DD:EE:FF", "HomeNet", types.EncryptionWPA2, -50-i, now.Add(time.Duration(i)*time.Second)))
		require.NoError(t, err)
	}

	rec, found := s.Get("AA:BB:CC:DD:EE:FF")
	require.True(t, found)
	assert.Len(t, rec.Recent, 5)
	// Oldest evicted, newest kept.
	assert.Equal(t, -65, rec.Recent[0].SignalDBM)
	assert.Equal(t, -69, rec.Recent[4].SignalDBM)
}

func TestMarkAbsentStaleTransition(t *testing.T) {
	opts := DefaultOptions()
	opts.StaleAfter = 2 * time.Minute
	s := newTestStore(t, opts)

	start := time.Now()
	_, _, err := s.Upsert(obsAt("AA:BB:CC:DD:EE:FF", "HomeNet", types.EncryptionWPA2, -50, start))
	require.NoError(t, err)

	// One missed scan: not yet stale.
	became, err := s.MarkAbsent("AA:BB:CC:DD:EE:FF", start.Add(30*time.Second))
	require.NoError(t, err)
	assert.False(t, became)

	// Past the threshold: transitions exactly once.
	became, err = s.MarkAbsent("AA:BB:CC:DD:EE:FF", start.Add(3*time.Minute))
	require.NoError(t, err)
	assert.True(t, became)

	became, err = s.MarkAbsent("AA:BB:CC:DD:EE:FF", start.Add(4*time.Minute))
	require.NoError(t, err)
	assert.False(t, became)

	rec, _ := s.Get("AA:BB:CC:DD:EE:FF")
	assert.True(t, rec.Stale)
}

func TestReappearanceClearsStale(t *testing.T) {
	opts := DefaultOptions()
	opts.StaleAfter = time.Minute
	s := newTestStore(t, opts)

	start := time.Now()
	_, _, err := s.Upsert(obsAt("AA:BB:CC:DD:EE:FF", "HomeNet", types.EncryptionWPA2, -50, start))
	require.NoError(t, err)
	_, err = s.MarkAbsent("AA:BB:CC:DD:EE:FF", start.Add(2*time.Minute))
	require.NoError(t, err)

	_, created, err := s.Upsert(obsAt("AA:BB:CC:DD:EE:FF", "HomeNet", types.EncryptionWPA2, -52, start.Add(5*time.Minute)))
	require.NoError(t, err)
	assert.False(t, created)

	rec, _ := s.Get("AA:BB:CC:DD:EE:FF")
	assert.False(t, rec.Stale)
}

func TestEvictExpired(t *testing.T) {
	opts := DefaultOptions()
	opts.StaleAfter = time.Minute
	opts.RetainFor = 10 * time.Minute
	s := newTestStore(t, opts)

	start := time.Now()
	_, _, err := s.Upsert(obsAt("AA:BB:CC:DD:EE:FF", "HomeNet", types.EncryptionWPA2, -50, start))
	require.NoError(t, err)
	_, err = s.MarkAbsent("AA:BB:CC:DD:EE:FF", start.Add(2*time.Minute))
	require.NoError(t, err)

	// Stale but within retention: kept.
	evicted, err := s.EvictExpired(start.Add(5 * time.Minute))
	require.NoError(t, err)
	assert.Empty(t, evicted)
	assert.Equal(t, 1, s.Count())

	// Past retention: evicted.
	evicted, err = s.EvictExpired(start.Add(11 * time.Minute))
	require.NoError(t, err)
	require.Len(t, evicted, 1)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", evicted[0].BSSID)
	assert.Equal(t, 0, s.Count())
}

func TestEvictExpiredReportsUnresolvedAlert(t *testing.T) {
	opts := DefaultOptions()
	opts.StaleAfter = time.Minute
	opts.RetainFor = 10 * time.Minute
	s := newTestStore(t, opts)

	start := time.Now()
	_, _, err := s.Upsert(obsAt("AA:BB:CC:DD:EE:FF", "HomeNet", types.EncryptionWPA2, -50, start))
	require.NoError(t, err)
	require.NoError(t, s.SetAlertState("AA:BB:CC:DD:EE:FF", types.AlertState{
		Classification: types.ClassRogue,
		Severity:       types.SeverityCritical,
	}))
	_, err = s.MarkAbsent("AA:BB:CC:DD:EE:FF", start.Add(2*time.Minute))
	require.NoError(t, err)

	evicted, err := s.EvictExpired(start.Add(11 * time.Minute))
	require.NoError(t, err)
	require.Len(t, evicted, 1)
	assert.True(t, evicted[0].AlertState.Unresolved())
}

func TestRebaseline(t *testing.T) {
	s := newTestStore(t, DefaultOptions())
	now := time.Now()

	_, _, err := s.Upsert(obsAt("AA:BB:CC:DD:EE:FF", "HomeNet", types.EncryptionWPA2, -50, now))
	require.NoError(t, err)
	_, _, err = s.Upsert(obsAt("AA:BB:CC:DD:EE:FF", "HomeNet-5G", types.EncryptionWPA3, -52, now.Add(time.Minute)))
	require.NoError(t, err)
	require.NoError(t, s.SetAlertState("AA:BB:CC:DD:EE:FF", types.AlertState{
		Classification: types.ClassSuspicious,
		Severity:       types.SeverityWarning,
	}))

	rec, err := s.Rebaseline("AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)
	assert.Equal(t, "HomeNet-5G", rec.BaselineSSID)
	assert.Equal(t, types.EncryptionWPA3, rec.BaselineEncryption)
	assert.Nil(t, rec.AlertState)
	assert.Zero(t, rec.AnomalyStreak)
}

func TestRebaselineUnknownBSSID(t *testing.T) {
	s := newTestStore(t, DefaultOptions())
	_, err := s.Rebaseline("00:00:00:00:00:00")
	require.Error(t, err)
}

func TestNoteAnomalyStreak(t *testing.T) {
	s := newTestStore(t, DefaultOptions())
	now := time.Now()
	_, _, err := s.Upsert(obsAt("AA:BB:CC:DD:EE:FF", "HomeNet", types.EncryptionWPA2, -50, now))
	require.NoError(t, err)

	for want := 1; want <= 3; want++ {
		streak, err := s.NoteAnomaly("AA:BB:CC:DD:EE:FF", true)
		require.NoError(t, err)
		assert.Equal(t, want, streak)
	}

	streak, err := s.NoteAnomaly("AA:BB:CC:DD:EE:FF", false)
	require.NoError(t, err)
	assert.Zero(t, streak)
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultOptions()

	s, err := Open(dir, opts)
	require.NoError(t, err)

	now := time.Now()
	_, _, err = s.Upsert(obsAt("AA:BB:CC:DD:EE:FF", "HomeNet", types.EncryptionWPA2, -50, now))
	require.NoError(t, err)
	firstRev := s.CurrentRevision()
	require.NoError(t, s.Close())

	s2, err := Open(dir, opts)
	require.NoError(t, err)
	defer func() { require.NoError(t, s2.Close()) }()

	rec, found := s2.Get("AA:BB:CC:DD:EE:FF")
	require.True(t, found)
	assert.Equal(t, "HomeNet", rec.BaselineSSID)
	assert.Equal(t, firstRev, s2.CurrentRevision())
}

func TestMeanSignal(t *testing.T) {
	rec := Record{}
	_, ok := rec.MeanSignal()
	assert.False(t, ok)

	rec.Recent = []types.Observation{
		{SignalDBM: -40},
		{SignalDBM: -60},
	}
	mean, ok := rec.MeanSignal()
	require.True(t, ok)
	assert.InDelta(t, -50.0, mean, 0.001)
}
