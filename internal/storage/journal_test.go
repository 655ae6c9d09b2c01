package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowsniffer/pkg/model"
)

func openJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.sqlite3"), "test_", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournalRecordAndLatest(t *testing.T) {
	j := openJournal(t)
	ctx := context.Background()

	require.NoError(t, j.Record(ctx, model.Update{
		Session: "s1", Target: "T1", Field: "secondaryUrl",
		SecondaryURL: "https://h/b.m3u8",
		Command:      "flowdownloader -s -u https://h/b.m3u8",
		Timestamp:    1700000000000,
	}))
	j.Publish(model.Update{
		Session: "s1", Field: "key", Key: "a2V5Ynl0ZXM=", SecondaryURL: "https://h/b.m3u8",
		Command: `flowdownloader -k "a2V5Ynl0ZXM=" -s -u https://h/b.m3u8`,
	})
	j.Publish(model.Update{Session: "s2", Field: "primaryUrl", PrimaryURL: "https://h/a.m3u8", Command: "flowdownloader -u https://h/a.m3u8"})

	all, err := j.Latest(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "s2", all[0].SessionID)

	s1, err := j.Latest(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, s1, 2)
	assert.Equal(t, `flowdownloader -k "a2V5Ynl0ZXM=" -s -u https://h/b.m3u8`, s1[0].Command)
	assert.Equal(t, "T1", s1[1].TargetID)
	assert.Equal(t, int64(1700000000000), s1[1].CreatedAt.UnixMilli())
}

func TestJournalTablePrefix(t *testing.T) {
	j := openJournal(t)
	assert.True(t, j.db.Migrator().HasTable("test_captures"))
}
