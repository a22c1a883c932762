package store

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"hnsaved/internal/scrapers/hackernews"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func testDataset() hackernews.Dataset {
	link := "https://example.com/a"
	return hackernews.Dataset{
		"12345": {
			Id:           "12345",
			Url:          &link,
			Title:        "A",
			CommentsUrl:  "https://news.ycombinator.com/item?id=12345",
			Submitter:    "alice",
			SubmitterUrl: "https://news.ycombinator.com/user?id=alice",
			SubmittedAt:  hackernews.Instant(time.Date(2024, 1, 1, 11, 13, 0, 0, time.UTC)),
		},
		"99": {
			Id:           "99",
			Title:        "dead",
			CommentsUrl:  "https://news.ycombinator.com/item?id=99",
			Submitter:    "bob",
			SubmitterUrl: "https://news.ycombinator.com/user?id=bob",
			SubmittedAt:  hackernews.Date(2023, time.December, 30),
		},
		"7": {
			Id:           "7",
			Title:        "unknown time",
			CommentsUrl:  "https://news.ycombinator.com/item?id=7",
			Submitter:    "pg",
			SubmitterUrl: "https://news.ycombinator.com/user?id=pg",
			SubmittedAt:  hackernews.Unresolved(),
		},
	}
}

func testRun(id string) Run {
	return Run{
		Id:         id,
		StartedAt:  time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2024, 1, 1, 12, 0, 5, 0, time.UTC),
		Fetched:    3,
		Added:      3,
	}
}

func TestOpenPicksStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(ctx, "-", nil)
	require.NoError(t, err)
	require.IsType(t, JSONStore{}, s)

	s, err = Open(ctx, filepath.Join(dir, "data.json"), nil)
	require.NoError(t, err)
	require.IsType(t, JSONStore{}, s)

	s, err = Open(ctx, filepath.Join(dir, "data.db"), nil)
	require.NoError(t, err)
	require.IsType(t, SQLStore{}, s)
	require.NoError(t, s.Close())
}

func TestJSONStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "data.json")
	s := NewJSONStore(path, nil)

	empty, err := s.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, empty)

	require.NoError(t, s.Save(ctx, testDataset(), testRun("run")))

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	diff := cmp.Diff(testDataset(), loaded)
	if diff != "" {
		t.Fatal(diff)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary file left behind")
}

func TestJSONStoreLegacyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	legacy := `{"7": {"url": "https://example.com", "title": "t", "comments": "https://news.ycombinator.com/item?id=7", "submitter": "pg", "submitter_link": "https://news.ycombinator.com/user?id=pg", "submitted_at": "2013-02-10 18:01:33"}}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0644))

	loaded, err := NewJSONStore(path, nil).Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "7", loaded["7"].Id)
	require.Equal(t, hackernews.Instant(time.Date(2013, 2, 10, 18, 1, 33, 0, time.UTC)), loaded["7"].SubmittedAt)
}

func TestJSONStoreStdout(t *testing.T) {
	ctx := context.Background()
	var out bytes.Buffer
	s := NewJSONStore(StdoutPath, &out)

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, loaded)

	require.NoError(t, s.Save(ctx, testDataset(), testRun("run")))
	require.Contains(t, out.String(), `"12345"`)
	require.Contains(t, out.String(), `"submitted_at": "2023-12-30"`)
}

func TestSqliteStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data.sqlite")

	s, err := OpenSqlite(ctx, path)
	require.NoError(t, err)

	empty, err := s.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, empty)

	require.NoError(t, s.Save(ctx, testDataset(), testRun("first")))

	// stored records are never overwritten
	changed := testDataset()
	record := changed["12345"]
	record.Title = "changed"
	changed["12345"] = record
	second := testRun("second")
	second.StartedAt = second.StartedAt.Add(time.Hour)
	second.Added = 0
	require.NoError(t, s.Save(ctx, changed, second))
	require.NoError(t, s.Close())

	// reopening runs the migrations again, which must be a no-op
	s, err = OpenSqlite(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	diff := cmp.Diff(testDataset(), loaded)
	if diff != "" {
		t.Fatal(diff)
	}

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, "second", runs[0].Id)
	require.Equal(t, 0, runs[0].Added)
	require.Equal(t, testRun("first"), runs[1])
}
