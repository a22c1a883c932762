package archive

import (
	"context"
	"fmt"
	"time"

	"hnsaved/internal/components/assert"
	"hnsaved/internal/components/chrono"
	"hnsaved/internal/components/telemetry"
	"hnsaved/internal/scrapers/hackernews"
	"hnsaved/internal/store"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	report_archive_load  = "archive.load"
	report_archive_login = "archive.login"
	report_archive_crawl = "archive.crawl"
	report_archive_save  = "archive.save"
	report_archive_added = "archive.added"
)

var tracer = otel.Tracer("hnsaved.archive")

// Session is what an archiving run needs from *hackernews.Session.
type Session interface {
	hackernews.Fetcher
	Login(ctx context.Context, username, password string) error
	SavedStoriesUrl() string
}

type Options struct {
	Username string
	Password string
	// StartUrl defaults to the user's saved stories.
	StartUrl string
	// MaxPages <= 0 crawls until the stop strategy fires or the listing ends.
	MaxPages  int
	PageDelay time.Duration
	Strategy  Strategy
}

type Result struct {
	Run store.Run
	// Added are the new ids, newest first.
	Added []string
	// Total is the size of the dataset after merging.
	Total int
}

// Archiver runs incremental archiving passes: load what is archived, log in,
// crawl until caught up, merge the new records and persist.
type Archiver struct {
	store   store.Store
	session Session
	tel     telemetry.API
	clock   chrono.API
}

func New(st store.Store, session Session, tel telemetry.API, clock chrono.API) Archiver {
	assert.NotNil(st)
	assert.NotNil(session)
	assert.NotNil(tel)
	if clock == nil {
		clock = chrono.NewStandardImpl()
	}
	return Archiver{
		store:   st,
		session: session,
		tel:     telemetry.NewScopedAPI("archive", tel),
		clock:   clock,
	}
}

// Run performs one pass. Nothing is persisted unless every step succeeds.
func (a Archiver) Run(ctx context.Context, opts Options) (Result, error) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()

	fail := func(id string, err error) (Result, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, id)
		a.tel.ReportBroken(id, err)
		return Result{}, err
	}

	run := store.Run{
		Id:        uuid.NewString(),
		StartedAt: a.clock.Now(),
	}
	span.SetAttributes(attribute.String("run_id", run.Id))
	a.tel.ReportDebug("starting run", run.Id)

	dataset, err := a.store.Load(ctx)
	if err != nil {
		return fail(report_archive_load, fmt.Errorf("load dataset: %w", err))
	}
	a.tel.ReportDebug("loaded dataset", len(dataset))

	err = a.session.Login(ctx, opts.Username, opts.Password)
	if err != nil {
		return fail(report_archive_login, err)
	}

	startUrl := opts.StartUrl
	if startUrl == "" {
		startUrl = a.session.SavedStoriesUrl()
	}
	fetched, err := hackernews.Crawl(ctx, a.session, hackernews.CrawlOptions{
		StartUrl:  startUrl,
		MaxPages:  opts.MaxPages,
		PageDelay: opts.PageDelay,
		Stop:      opts.Strategy.StopFunc(dataset),
	}, a.tel)
	if err != nil {
		return fail(report_archive_crawl, err)
	}

	added := Merge(dataset, fetched)
	run.Fetched = len(fetched)
	run.Added = len(added)
	run.FinishedAt = a.clock.Now()
	a.tel.ReportCount(report_archive_added, int64(len(added)))

	err = a.store.Save(ctx, dataset, run)
	if err != nil {
		return fail(report_archive_save, fmt.Errorf("save dataset: %w", err))
	}

	span.SetAttributes(
		attribute.Int("fetched", run.Fetched),
		attribute.Int("added", run.Added),
	)
	return Result{Run: run, Added: added, Total: len(dataset)}, nil
}
