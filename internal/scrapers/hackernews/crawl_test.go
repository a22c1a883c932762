package hackernews

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"hnsaved/internal/components/telemetry"
	"hnsaved/lib/testutil"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func threePages() [][]testutil.Story {
	return [][]testutil.Story{
		{
			{Id: 600, Title: "six", Url: "https://six.example", Submitter: "a", Age: "5 minutes ago"},
			{Id: 500, Title: "five", Url: "https://five.example", Submitter: "b", Age: "2 hours ago", Flag: true},
		},
		{
			{Id: 400, Title: "four", Url: "https://four.example", Submitter: "c", Age: "1 day ago"},
			{Id: 300, Title: "three", Submitter: "d", Age: "3 days ago"},
		},
		{
			{Id: 200, Title: "two", Url: "https://two.example", Submitter: "e", Age: "4 days ago"},
			{Id: 100, Title: "one", Url: "https://one.example", Submitter: "f", Age: "5 days ago"},
		},
	}
}

func loggedInSession(t testing.TB, hn *testutil.HackerNews) *Session {
	t.Helper()
	session, _ := newTestSession(t, hn)
	require.NoError(t, session.Login(context.Background(), hn.Username, hn.Password))
	return session
}

func TestCrawlAllPages(t *testing.T) {
	hn := testutil.NewHackerNews(t, "alice", "hunter2", threePages())
	session := loggedInSession(t, hn)
	tel := telemetry.NewTestAPI(t)

	dataset, err := Crawl(context.Background(), session, CrawlOptions{
		StartUrl: session.SavedStoriesUrl(),
	}, tel)
	require.NoError(t, err)

	diff := cmp.Diff([]string{"600", "500", "400", "300", "200", "100"}, dataset.SortedIds())
	if diff != "" {
		t.Fatal(diff)
	}
	require.Equal(t, 3, hn.Hits("/upvoted"))
	require.Equal(t, int64(6), tel.Count("hackernews: "+report_crawl_records))
	require.Nil(t, dataset["300"].Url)
	require.Equal(t, hn.URL+"/item?id=500", dataset["500"].CommentsUrl)
}

func TestCrawlStopsEarly(t *testing.T) {
	hn := testutil.NewHackerNews(t, "alice", "hunter2", threePages())
	session := loggedInSession(t, hn)

	known := Dataset{"300": {}}
	var seen []int
	dataset, err := Crawl(context.Background(), session, CrawlOptions{
		StartUrl: session.SavedStoriesUrl(),
		Stop: func(page Dataset) bool {
			seen = append(seen, len(page))
			for id := range page {
				if known.Has(id) {
					return true
				}
			}
			return false
		},
	}, telemetry.NewTestAPI(t))
	require.NoError(t, err)

	// the predicate only ever sees one page at a time
	require.Equal(t, []int{2, 2}, seen)
	require.Equal(t, 2, hn.Hits("/upvoted"))
	require.Len(t, dataset, 4)
	require.False(t, dataset.Has("200"))
}

func TestCrawlMaxPages(t *testing.T) {
	hn := testutil.NewHackerNews(t, "alice", "hunter2", threePages())
	session := loggedInSession(t, hn)

	dataset, err := Crawl(context.Background(), session, CrawlOptions{
		StartUrl: session.SavedStoriesUrl(),
		MaxPages: 1,
	}, telemetry.NewTestAPI(t))
	require.NoError(t, err)
	require.Len(t, dataset, 2)
	require.Equal(t, 1, hn.Hits("/upvoted"))
}

func TestCrawlIdempotent(t *testing.T) {
	hn := testutil.NewHackerNews(t, "alice", "hunter2", threePages())
	session := loggedInSession(t, hn)

	stopAt := func(page Dataset) bool {
		return page.Has("400")
	}
	opts := CrawlOptions{StartUrl: session.SavedStoriesUrl(), Stop: stopAt}

	first, err := Crawl(context.Background(), session, opts, telemetry.NewTestAPI(t))
	require.NoError(t, err)
	second, err := Crawl(context.Background(), session, opts, telemetry.NewTestAPI(t))
	require.NoError(t, err)

	diff := cmp.Diff(first, second)
	if diff != "" {
		t.Fatal(diff)
	}
}

func TestCrawlFetchFailure(t *testing.T) {
	hn := testutil.NewHackerNews(t, "alice", "hunter2", threePages())
	session := loggedInSession(t, hn)
	hn.Fail("/upvoted", http.StatusInternalServerError, http.StatusInternalServerError, http.StatusInternalServerError)
	tel := telemetry.NewTestAPI(t)

	_, err := Crawl(context.Background(), session, CrawlOptions{StartUrl: session.SavedStoriesUrl()}, tel)

	var pageErr *PageError
	require.True(t, errors.As(err, &pageErr), "expected PageError, got %v", err)
	require.Equal(t, 1, pageErr.Page)
	require.Contains(t, string(pageErr.Body), http.StatusText(http.StatusInternalServerError))

	var exhausted *FetchExhaustedError
	require.True(t, errors.As(err, &exhausted))
	require.Contains(t, tel.Broken(), "hackernews: "+report_crawl_page)
}

type cannedFetcher struct {
	pages map[string]Page
	hits  []string
}

func (f *cannedFetcher) Get(ctx context.Context, url string) (Page, error) {
	f.hits = append(f.hits, url)
	page, ok := f.pages[url]
	if !ok {
		return Page{}, &FetchExhaustedError{Url: url, Attempts: 1, StatusCode: http.StatusNotFound}
	}
	return page, nil
}

func cannedPage(t testing.TB, rawUrl, markup string) Page {
	return Page{
		Url:        mustParseUrl(t, rawUrl),
		Time:       testAnchor,
		StatusCode: http.StatusOK,
		Body:       []byte(markup),
	}
}

func TestCrawlParseFailureKeepsMarkup(t *testing.T) {
	first := "https://news.ycombinator.com/upvoted?id=alice"
	second := "https://news.ycombinator.com/upvoted?id=alice&p=2"
	broken := strings.ReplaceAll(
		testutil.RenderListing([]testutil.Story{{Id: 3, Title: "x", Url: "https://x.example", Submitter: "a", Age: "1 hour ago"}}, 3, ""),
		"item?id=3", "item?id=oops",
	)
	fetcher := &cannedFetcher{pages: map[string]Page{
		first: cannedPage(t, first, testutil.RenderListing([]testutil.Story{
			{Id: 1, Title: "a", Url: "https://a.example", Submitter: "a", Age: "1 hour ago"},
		}, 1, "upvoted?id=alice&p=2")),
		second: cannedPage(t, second, broken),
	}}

	_, err := Crawl(context.Background(), fetcher, CrawlOptions{StartUrl: first}, telemetry.NewTestAPI(t))

	var pageErr *PageError
	require.True(t, errors.As(err, &pageErr))
	require.Equal(t, 2, pageErr.Page)
	require.Equal(t, second, pageErr.Url)
	require.Equal(t, broken, string(pageErr.Body))

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	require.Equal(t, []string{first, second}, fetcher.hits)
}

func TestCrawlCancelledDuringDelay(t *testing.T) {
	first := "https://news.ycombinator.com/upvoted?id=alice"
	fetcher := &cannedFetcher{pages: map[string]Page{
		first: cannedPage(t, first, testutil.RenderListing([]testutil.Story{
			{Id: 1, Title: "a", Url: "https://a.example", Submitter: "a", Age: "1 hour ago"},
		}, 1, "upvoted?id=alice&p=2")),
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := Crawl(ctx, fetcher, CrawlOptions{StartUrl: first, PageDelay: time.Hour}, telemetry.NewTestAPI(t))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Len(t, fetcher.hits, 1)
}
