package hackernews

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	report_session_get           = "session.get"
	report_session_login         = "session.login"
	report_session_response_time = "session.response-time"
	report_crawl_page            = "crawl.page"
	report_crawl_records         = "crawl.records"
)

var tracer = otel.Tracer("hnsaved.scrapers.hackernews")
var meter = otel.Meter("hnsaved.scrapers.hackernews")

var retryCounter, _ = meter.Int64Counter(
	"hackernews.http_retries",
	metric.WithDescription("Page requests retried after a transient failure."),
)
var pageCounter, _ = meter.Int64Counter(
	"hackernews.pages_crawled",
	metric.WithUnit("{page}"),
)
var recordCounter, _ = meter.Int64Counter(
	"hackernews.records_extracted",
	metric.WithUnit("{record}"),
)
