package store

import (
	"context"
	"io"
	"strings"
	"time"

	"hnsaved/internal/scrapers/hackernews"
)

// Run describes one archiving pass, SQL stores keep a row per run.
type Run struct {
	Id         string
	StartedAt  time.Time
	FinishedAt time.Time
	// Fetched is how many records the crawl returned, Added how many of those were new.
	Fetched int
	Added   int
}

// Store persists a Dataset between runs.
type Store interface {
	// Load returns the persisted dataset, an empty one if nothing was persisted yet.
	Load(ctx context.Context) (hackernews.Dataset, error)
	// Save persists the full merged dataset.
	Save(ctx context.Context, dataset hackernews.Dataset, run Run) error
	Close() error
}

// StdoutPath makes Open return a store that starts empty and writes to stdout.
const StdoutPath = "-"

func isRemote(path string) bool {
	for _, scheme := range []string{"libsql://", "http://", "https://", "ws://", "wss://"} {
		if strings.HasPrefix(path, scheme) {
			return true
		}
	}
	return false
}

func isSqlite(path string) bool {
	if path == ":memory:" {
		return true
	}
	for _, ext := range []string{".db", ".sqlite", ".sqlite3"} {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// Open picks the store from the shape of path:
//
//   - "-" is JSON written to stdout
//   - libsql:// (or http(s)/ws(s)) urls are a remote libSQL database
//   - .db, .sqlite, .sqlite3 and :memory: are a local SQLite database
//   - anything else is a JSON file
func Open(ctx context.Context, path string, stdout io.Writer) (Store, error) {
	switch {
	case path == StdoutPath:
		return NewJSONStore(path, stdout), nil
	case isRemote(path):
		return OpenLibsql(ctx, path)
	case isSqlite(path):
		return OpenSqlite(ctx, path)
	default:
		return NewJSONStore(path, stdout), nil
	}
}

func unixUtc(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
