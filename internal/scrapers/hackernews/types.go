package hackernews

import (
	"bytes"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

type TimeKind int

const (
	// TIME_UNRESOLVED means the phrase on the page could not be turned into a time.
	TIME_UNRESOLVED TimeKind = iota
	// TIME_INSTANT is an exact point in time.
	TIME_INSTANT
	// TIME_DATE is a calendar date, the time of day is unknown.
	TIME_DATE
)

const dateLayout = "2006-01-02"

// SubmittedAt is when a story was submitted, at whatever precision the listing gave away.
type SubmittedAt struct {
	Kind TimeKind
	// Time is in UTC, for TIME_DATE it is midnight of that date.
	Time time.Time
}

func Unresolved() SubmittedAt {
	return SubmittedAt{Kind: TIME_UNRESOLVED}
}

func Instant(t time.Time) SubmittedAt {
	return SubmittedAt{Kind: TIME_INSTANT, Time: t.UTC()}
}

func Date(year int, month time.Month, day int) SubmittedAt {
	return SubmittedAt{Kind: TIME_DATE, Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (s SubmittedAt) Resolved() bool {
	return s.Kind != TIME_UNRESOLVED
}

// Format renders the value the way it is persisted, ok is false for unresolved values.
func (s SubmittedAt) Format() (text string, ok bool) {
	switch s.Kind {
	case TIME_INSTANT:
		return s.Time.UTC().Format(time.RFC3339), true
	case TIME_DATE:
		return s.Time.UTC().Format(dateLayout), true
	default:
		return "", false
	}
}

func (s SubmittedAt) String() string {
	text, ok := s.Format()
	if !ok {
		return "unknown"
	}
	return text
}

// legacy layouts are what python's str() produced for datetime and date values
var instantLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
}

// ParseSubmittedAt is the inverse of Format. It also understands "None", which is how
// unresolved times used to be written out.
func ParseSubmittedAt(text string) (SubmittedAt, error) {
	if text == "" || text == "None" {
		return Unresolved(), nil
	}
	for _, layout := range instantLayouts {
		t, err := time.Parse(layout, text)
		if err == nil {
			return Instant(t), nil
		}
	}
	t, err := time.Parse(dateLayout, text)
	if err == nil {
		return Date(t.Year(), t.Month(), t.Day()), nil
	}
	return Unresolved(), fmt.Errorf("unrecognized submitted_at value %q", text)
}

func (s SubmittedAt) MarshalJSON() ([]byte, error) {
	text, ok := s.Format()
	if !ok {
		return []byte("null"), nil
	}
	return json.Marshal(text)
}

func (s *SubmittedAt) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*s = Unresolved()
		return nil
	}
	var text string
	err := json.Unmarshal(data, &text)
	if err != nil {
		return err
	}
	parsed, err := ParseSubmittedAt(text)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Record is one saved story.
type Record struct {
	// Id is derived from CommentsUrl, it is the key of the Dataset and not serialized inside the record.
	Id string `json:"-"`
	// Url is nil for dead stories that lost their outbound link.
	Url          *string     `json:"url"`
	Title        string      `json:"title"`
	CommentsUrl  string      `json:"comments"`
	Submitter    string      `json:"submitter"`
	SubmitterUrl string      `json:"submitter_link"`
	SubmittedAt  SubmittedAt `json:"submitted_at"`
}

// Dataset maps record id to record.
type Dataset map[string]Record

func (d Dataset) Has(id string) bool {
	_, ok := d[id]
	return ok
}

// SortedIds returns the ids newest first, ids are compared as numbers.
func (d Dataset) SortedIds() []string {
	ids := make([]string, 0, len(d))
	for id := range d {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, compareIdsDesc)
	return ids
}

func compareIdsDesc(a, b string) int {
	an, aerr := strconv.ParseUint(a, 10, 64)
	bn, berr := strconv.ParseUint(b, 10, 64)
	if aerr != nil || berr != nil {
		switch {
		case a > b:
			return -1
		case a < b:
			return 1
		}
		return 0
	}
	switch {
	case an > bn:
		return -1
	case an < bn:
		return 1
	}
	return 0
}

// FillIds sets Record.Id from the map keys, needed after decoding a dataset.
func (d Dataset) FillIds() {
	for id, record := range d {
		record.Id = id
		d[id] = record
	}
}
