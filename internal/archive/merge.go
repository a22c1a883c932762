package archive

import (
	"fmt"

	"hnsaved/internal/scrapers/hackernews"
)

// Merge adds the records of fetched whose ids are missing from existing and returns
// those ids, newest first. Records already in existing are kept as they are.
func Merge(existing, fetched hackernews.Dataset) []string {
	added := hackernews.Dataset{}
	for id, record := range fetched {
		if existing.Has(id) {
			continue
		}
		existing[id] = record
		added[id] = record
	}
	return added.SortedIds()
}

// Strategy decides when an incremental crawl has caught up with what is already archived.
type Strategy string

const (
	// STOP_KNOWN stops on the first page holding any archived id.
	STOP_KNOWN Strategy = "known"
	// STOP_NEWEST stops on the page holding the numerically largest archived id.
	STOP_NEWEST Strategy = "newest"
)

func ParseStrategy(text string) (Strategy, error) {
	switch Strategy(text) {
	case STOP_KNOWN, "":
		return STOP_KNOWN, nil
	case STOP_NEWEST:
		return STOP_NEWEST, nil
	}
	return "", fmt.Errorf("unknown stop strategy %q (expected %q or %q)", text, STOP_KNOWN, STOP_NEWEST)
}

// StopFunc builds the crawl's stop predicate out of the archived dataset.
func (s Strategy) StopFunc(known hackernews.Dataset) hackernews.StopFunc {
	if s == STOP_NEWEST {
		return StopAtNewest(known)
	}
	return StopAtKnown(known)
}

// StopAtKnown never fires for an empty dataset.
func StopAtKnown(known hackernews.Dataset) hackernews.StopFunc {
	return func(page hackernews.Dataset) bool {
		for id := range page {
			if known.Has(id) {
				return true
			}
		}
		return false
	}
}

// StopAtNewest never fires for an empty dataset. It misses its mark when the newest
// archived story has been unsaved since, the crawl then runs until MaxPages.
func StopAtNewest(known hackernews.Dataset) hackernews.StopFunc {
	ids := known.SortedIds()
	if len(ids) == 0 {
		return func(hackernews.Dataset) bool { return false }
	}
	newest := ids[0]
	return func(page hackernews.Dataset) bool {
		return page.Has(newest)
	}
}
