package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"hnsaved/internal/scrapers/hackernews"
	"hnsaved/internal/store/migrations"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// SQLStore keeps records and the history of runs in a SQLite or libSQL database.
type SQLStore struct {
	db *sql.DB
}

// OpenSqlite opens (creating if needed) a local database file.
func OpenSqlite(ctx context.Context, path string) (SQLStore, error) {
	if path != ":memory:" {
		err := os.MkdirAll(filepath.Dir(path), 0755)
		if err != nil {
			return SQLStore{}, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return SQLStore{}, err
	}
	// see this stackoverflow post for information on why the following
	// lines exist: https://stackoverflow.com/questions/35804884/sqlite-concurrent-writing-performance
	db.SetMaxOpenConns(1)
	_, err = db.ExecContext(ctx, "PRAGMA journal_mode=WAL")
	if err != nil {
		db.Close()
		return SQLStore{}, err
	}

	err = migrations.Run(db, "sqlite3")
	if err != nil {
		db.Close()
		return SQLStore{}, err
	}
	return SQLStore{db: db}, nil
}

// OpenLibsql connects to a remote libSQL database, the auth token goes into the url (?authToken=...).
func OpenLibsql(ctx context.Context, url string) (SQLStore, error) {
	db, err := sql.Open("libsql", url)
	if err != nil {
		return SQLStore{}, err
	}
	err = db.PingContext(ctx)
	if err != nil {
		db.Close()
		return SQLStore{}, fmt.Errorf("connect to %s: %w", url, err)
	}
	err = migrations.Run(db, "turso")
	if err != nil {
		db.Close()
		return SQLStore{}, err
	}
	return SQLStore{db: db}, nil
}

func (s SQLStore) Load(ctx context.Context) (hackernews.Dataset, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, url, title, comments_url, submitter, submitter_url, submitted_at
		from records`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	dataset := hackernews.Dataset{}
	for rows.Next() {
		var record hackernews.Record
		var link, submittedAt sql.NullString
		err := rows.Scan(
			&record.Id,
			&link,
			&record.Title,
			&record.CommentsUrl,
			&record.Submitter,
			&record.SubmitterUrl,
			&submittedAt,
		)
		if err != nil {
			return nil, err
		}
		if link.Valid {
			record.Url = &link.String
		}
		record.SubmittedAt, err = hackernews.ParseSubmittedAt(submittedAt.String)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", record.Id, err)
		}
		dataset[record.Id] = record
	}
	return dataset, rows.Err()
}

// Save inserts the records that are not stored yet, stored records are never updated.
func (s SQLStore) Save(ctx context.Context, dataset hackernews.Dataset, run Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	insert, err := tx.PrepareContext(ctx, `
		insert into records(id, url, title, comments_url, submitter, submitter_url, submitted_at, run_id)
		values (?, ?, ?, ?, ?, ?, ?, ?)
		on conflict (id) do nothing`,
	)
	if err != nil {
		return err
	}
	defer insert.Close()

	for _, id := range dataset.SortedIds() {
		record := dataset[id]
		var link sql.NullString
		if record.Url != nil {
			link = sql.NullString{String: *record.Url, Valid: true}
		}
		var submittedAt sql.NullString
		if text, ok := record.SubmittedAt.Format(); ok {
			submittedAt = sql.NullString{String: text, Valid: true}
		}

		_, err := insert.ExecContext(
			ctx,
			id,
			link,
			record.Title,
			record.CommentsUrl,
			record.Submitter,
			record.SubmitterUrl,
			submittedAt,
			run.Id,
		)
		if err != nil {
			return fmt.Errorf("insert record %s: %w", id, err)
		}
	}

	_, err = tx.ExecContext(
		ctx,
		"insert into runs(id, started_at, finished_at, fetched, added) values (?, ?, ?, ?, ?)",
		run.Id,
		run.StartedAt.Unix(),
		run.FinishedAt.Unix(),
		run.Fetched,
		run.Added,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	return tx.Commit()
}

// Runs lists the recorded runs, most recent first.
func (s SQLStore) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, started_at, finished_at, fetched, added
		from runs
		order by started_at desc`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var started, finished int64
		err := rows.Scan(&run.Id, &started, &finished, &run.Fetched, &run.Added)
		if err != nil {
			return nil, err
		}
		run.StartedAt = unixUtc(started)
		run.FinishedAt = unixUtc(finished)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s SQLStore) Close() error {
	return s.db.Close()
}
