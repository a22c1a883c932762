package archive

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"hnsaved/internal/components/chrono"
	"hnsaved/internal/components/telemetry"
	"hnsaved/internal/scrapers/hackernews"
	"hnsaved/internal/store"
	"hnsaved/lib/testutil"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestMerge(t *testing.T) {
	existing := hackernews.Dataset{
		"1": {Id: "1", Title: "original"},
		"2": {Id: "2", Title: "two"},
	}
	fetched := hackernews.Dataset{
		"1": {Id: "1", Title: "retitled"},
		"3": {Id: "3", Title: "three"},
		"10": {Id: "10", Title: "ten"},
	}

	added := Merge(existing, fetched)
	require.Equal(t, []string{"10", "3"}, added)
	require.Len(t, existing, 4)
	// first seen wins
	require.Equal(t, "original", existing["1"].Title)

	require.Empty(t, Merge(existing, fetched))
}

func TestStopStrategies(t *testing.T) {
	known := hackernews.Dataset{"100": {}, "50": {}}

	testCases := []struct {
		strategy Strategy
		page     hackernews.Dataset
		expected bool
	}{
		{strategy: STOP_KNOWN, page: hackernews.Dataset{"200": {}, "50": {}}, expected: true},
		{strategy: STOP_KNOWN, page: hackernews.Dataset{"200": {}}, expected: false},
		{strategy: STOP_NEWEST, page: hackernews.Dataset{"200": {}, "50": {}}, expected: false},
		{strategy: STOP_NEWEST, page: hackernews.Dataset{"100": {}}, expected: true},
	}
	for _, test := range testCases {
		require.Equal(t, test.expected, test.strategy.StopFunc(known)(test.page), "%s %v", test.strategy, test.page.SortedIds())
	}

	require.False(t, STOP_KNOWN.StopFunc(hackernews.Dataset{})(hackernews.Dataset{"1": {}}))
	require.False(t, STOP_NEWEST.StopFunc(hackernews.Dataset{})(hackernews.Dataset{"1": {}}))
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("")
	require.NoError(t, err)
	require.Equal(t, STOP_KNOWN, s)

	s, err = ParseStrategy("newest")
	require.NoError(t, err)
	require.Equal(t, STOP_NEWEST, s)

	_, err = ParseStrategy("oldest")
	require.Error(t, err)
}

func listing() [][]testutil.Story {
	return [][]testutil.Story{
		{
			{Id: 6, Title: "six", Url: "https://six.example", Submitter: "a", Age: "5 minutes ago"},
			{Id: 5, Title: "five", Url: "https://five.example", Submitter: "b", Age: "2 hours ago"},
		},
		{
			{Id: 4, Title: "four", Url: "https://four.example", Submitter: "c", Age: "1 day ago"},
			{Id: 3, Title: "three", Url: "https://three.example", Submitter: "d", Age: "3 days ago"},
		},
		{
			{Id: 2, Title: "two", Url: "https://two.example", Submitter: "e", Age: "4 days ago"},
			{Id: 1, Title: "one", Url: "https://one.example", Submitter: "f", Age: "5 days ago"},
		},
	}
}

func newSession(t testing.TB, hn *testutil.HackerNews) *hackernews.Session {
	opts := hackernews.DefaultSessionOptions()
	opts.BaseUrl = hn.URL
	opts.RetryDelay = 10 * time.Millisecond
	opts.RequestsPerSecond = 0
	opts.CloudflareBypass = false
	session, err := hackernews.NewSession(opts, telemetry.NewTestAPI(t))
	require.NoError(t, err)
	return session
}

func TestRunIncremental(t *testing.T) {
	ctx := context.Background()
	hn := testutil.NewHackerNews(t, "alice", "hunter2", listing())
	path := filepath.Join(t.TempDir(), "data.json")
	st := store.NewJSONStore(path, nil)
	clock := chrono.FixedImpl{At: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	opts := Options{Username: "alice", Password: "hunter2", Strategy: STOP_KNOWN}

	first, err := New(st, newSession(t, hn), telemetry.NewTestAPI(t), clock).Run(ctx, opts)
	require.NoError(t, err)
	require.Equal(t, []string{"6", "5", "4", "3", "2", "1"}, first.Added)
	require.Equal(t, 6, first.Total)
	require.NotEmpty(t, first.Run.Id)
	require.Equal(t, 3, hn.Hits("/upvoted"))

	// two new stories get saved on top of the listing
	hn.SetPages([][]testutil.Story{
		{
			{Id: 8, Title: "eight", Url: "https://eight.example", Submitter: "g", Age: "1 minute ago"},
			{Id: 7, Title: "seven", Url: "https://seven.example", Submitter: "h", Age: "2 minutes ago"},
		},
		{
			{Id: 6, Title: "six (edited)", Url: "https://six.example", Submitter: "a", Age: "6 minutes ago"},
			{Id: 5, Title: "five", Url: "https://five.example", Submitter: "b", Age: "2 hours ago"},
		},
		listing()[1],
		listing()[2],
	})

	second, err := New(st, newSession(t, hn), telemetry.NewTestAPI(t), clock).Run(ctx, opts)
	require.NoError(t, err)
	require.Equal(t, []string{"8", "7"}, second.Added)
	require.Equal(t, 4, second.Run.Fetched)
	require.Equal(t, 8, second.Total)
	require.NotEqual(t, first.Run.Id, second.Run.Id)
	// page 1 and 2 of the second run
	require.Equal(t, 5, hn.Hits("/upvoted"))

	loaded, err := st.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 8)
	require.Equal(t, "six", loaded["6"].Title)
}

func TestRunMaxPages(t *testing.T) {
	hn := testutil.NewHackerNews(t, "alice", "hunter2", listing())
	st := store.NewJSONStore(filepath.Join(t.TempDir(), "data.json"), nil)

	result, err := New(st, newSession(t, hn), telemetry.NewTestAPI(t), nil).Run(context.Background(), Options{
		Username: "alice",
		Password: "hunter2",
		MaxPages: 1,
	})
	require.NoError(t, err)
	diff := cmp.Diff([]string{"6", "5"}, result.Added)
	if diff != "" {
		t.Fatal(diff)
	}
}

func TestRunDoesNotPersistOnFailure(t *testing.T) {
	ctx := context.Background()
	hn := testutil.NewHackerNews(t, "alice", "hunter2", listing())
	path := filepath.Join(t.TempDir(), "data.json")
	before := []byte(`{"1": {"url": null, "title": "one", "comments": "x", "submitter": "f", "submitter_link": "y", "submitted_at": null}}`)
	require.NoError(t, os.WriteFile(path, before, 0644))
	st := store.NewJSONStore(path, nil)

	_, err := New(st, newSession(t, hn), telemetry.NewTestAPI(t), nil).Run(ctx, Options{Username: "alice", Password: "wrong"})
	var authErr *hackernews.AuthError
	require.True(t, errors.As(err, &authErr))

	hn.Fail("/upvoted", 500, 500, 500)
	tel := telemetry.NewTestAPI(t)
	_, err = New(st, newSession(t, hn), tel, nil).Run(ctx, Options{Username: "alice", Password: "hunter2"})
	var pageErr *hackernews.PageError
	require.True(t, errors.As(err, &pageErr))
	require.Contains(t, tel.Broken(), "archive: "+report_archive_crawl)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, before, after)
}
