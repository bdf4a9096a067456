package pipeline

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := OpenLedger(filepath.Join(t.TempDir(), "posts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLedgerPutGet(t *testing.T) {
	l := openTestLedger(t)
	now := time.Date(2025, 1, 16, 9, 0, 0, 0, time.UTC)

	_, ok, err := l.Get("2501.00001")
	require.NoError(t, err)
	assert.False(t, ok)

	rec := PostRecord{ArxivID: "2501.00001", PostID: 42, PostURL: "https://blog.example.com/?p=42", Transport: "rest", PublishedAt: now, UpdatedAt: now}
	require.NoError(t, l.Put(rec))

	got, ok, err := l.Get("2501.00001")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 42, got.PostID)
	assert.True(t, now.Equal(got.PublishedAt))
	assert.Equal(t, "rest", got.Transport)
}

func TestLedgerPutRequiresID(t *testing.T) {
	l := openTestLedger(t)
	assert.Error(t, l.Put(PostRecord{PostID: 1}))
}

func TestLedgerListNewestFirst(t *testing.T) {
	l := openTestLedger(t)
	base := time.Date(2025, 1, 16, 9, 0, 0, 0, time.UTC)

	require.NoError(t, l.Put(PostRecord{ArxivID: "a", PostID: 1, UpdatedAt: base}))
	require.NoError(t, l.Put(PostRecord{ArxivID: "b", PostID: 2, UpdatedAt: base.Add(2 * time.Hour)}))
	require.NoError(t, l.Put(PostRecord{ArxivID: "c", PostID: 3, UpdatedAt: base.Add(time.Hour)}))
	require.NoError(t, l.Put(PostRecord{ArxivID: "a", PostID: 4, UpdatedAt: base.Add(3 * time.Hour)}))

	recs, err := l.List()
	require.NoError(t, err)
	got := make([]string, 0, len(recs))
	for _, r := range recs {
		got = append(got, r.ArxivID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, 4, recs[0].PostID)
}

func TestLedgerReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.db")
	l, err := OpenLedger(path)
	require.NoError(t, err)
	require.NoError(t, l.Put(PostRecord{ArxivID: "a", PostID: 7}))
	require.NoError(t, l.Close())

	l, err = OpenLedger(path)
	require.NoError(t, err)
	defer l.Close()
	rec, ok, err := l.Get("a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 7, rec.PostID)
}
