package hackernews

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"hnsaved/internal/components/assert"
	"hnsaved/internal/components/telemetry"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// StopFunc is evaluated after every page with only that page's records, returning
// true ends the crawl after the page.
type StopFunc func(page Dataset) bool

// Fetcher is the part of Session the crawl needs.
type Fetcher interface {
	Get(ctx context.Context, url string) (Page, error)
}

type CrawlOptions struct {
	StartUrl string
	// MaxPages <= 0 means no limit.
	MaxPages int
	// PageDelay is slept between pages, never after the last one.
	PageDelay time.Duration
	// Stop may be nil.
	Stop StopFunc
}

func DefaultCrawlOptions() CrawlOptions {
	return CrawlOptions{PageDelay: time.Second}
}

// Crawl walks the listing starting at opts.StartUrl following the "More" links until
// there are none left, opts.Stop fires or opts.MaxPages pages have been read.
//
// Pages are read strictly one after the other. Any failure aborts the crawl and is returned
// as a *PageError holding whatever markup the failing page had.
func Crawl(ctx context.Context, fetcher Fetcher, opts CrawlOptions, tel telemetry.API) (Dataset, error) {
	assert.NotNil(fetcher)
	assert.NotNil(tel)
	assert.NotEmptyStr(opts.StartUrl)
	tel = telemetry.NewScopedAPI("hackernews", tel)

	ctx, span := tracer.Start(ctx, "Crawl")
	defer span.End()

	result := Dataset{}
	pageUrl := opts.StartUrl
	for pageNumber := 1; ; pageNumber++ {
		page, err := crawlPage(ctx, fetcher, pageUrl, pageNumber)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "crawl failed")
			tel.ReportBroken(report_crawl_page, err)
			return nil, err
		}

		for id, record := range page.Records {
			result[id] = record
		}
		pageCounter.Add(ctx, 1)
		recordCounter.Add(ctx, int64(len(page.Records)))
		tel.ReportCount(report_crawl_records, int64(len(result)))
		tel.ReportDebug("crawled page", pageNumber, pageUrl, len(page.Records))

		if opts.Stop != nil && opts.Stop(page.Records) {
			tel.ReportDebug("stop condition reached", pageNumber)
			break
		}
		if page.Next == nil {
			break
		}
		if opts.MaxPages > 0 && pageNumber >= opts.MaxPages {
			tel.ReportDebug("page limit reached", pageNumber)
			break
		}

		if err := sleep(ctx, opts.PageDelay); err != nil {
			return nil, err
		}
		pageUrl = page.Next.String()
	}

	span.SetAttributes(attribute.Int("records", len(result)))
	return result, nil
}

func crawlPage(ctx context.Context, fetcher Fetcher, pageUrl string, pageNumber int) (PageResult, error) {
	ctx, span := tracer.Start(ctx, "crawlPage")
	defer span.End()
	span.SetAttributes(
		attribute.Int("page", pageNumber),
		attribute.String("url", pageUrl),
	)

	page, err := fetcher.Get(ctx, pageUrl)
	if err != nil {
		if ctx.Err() != nil {
			return PageResult{}, err
		}
		pageErr := &PageError{Page: pageNumber, Url: pageUrl, Err: err}
		var exhausted *FetchExhaustedError
		if errors.As(err, &exhausted) {
			pageErr.Body = exhausted.Body
		}
		return PageResult{}, pageErr
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return PageResult{}, &PageError{
			Page: pageNumber,
			Url:  pageUrl,
			Body: page.Body,
			Err:  &ParseError{Reason: "read document", Fragment: -1, Err: err},
		}
	}

	pageUrlParsed := page.Url
	if pageUrlParsed == nil {
		return PageResult{}, &PageError{
			Page: pageNumber,
			Url:  pageUrl,
			Body: page.Body,
			Err:  fmt.Errorf("fetcher returned no page url"),
		}
	}

	result, err := ExtractDocument(doc, pageUrlParsed, page.Time)
	if err != nil {
		return PageResult{}, &PageError{Page: pageNumber, Url: pageUrl, Body: page.Body, Err: err}
	}
	span.SetAttributes(attribute.Int("records", len(result.Records)))
	return result, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
