package telemetry

import (
	"fmt"
	"sync"
	"testing"
)

// TestAPI forwards every report to the test log and remembers broken and warning ids
// so a test can assert that a component complained (or didn't).
type TestAPI struct {
	t testing.TB

	mutex    sync.Mutex
	broken   []string
	warnings []string
	counts   map[string]int64
}

func NewTestAPI(t testing.TB) *TestAPI {
	return &TestAPI{t: t, counts: map[string]int64{}}
}

func (a *TestAPI) ReportBroken(id string, params ...any) {
	a.mutex.Lock()
	a.broken = append(a.broken, id)
	a.mutex.Unlock()
	a.t.Log("[broken]", id, fmt.Sprint(params...))
}

func (a *TestAPI) ReportWarning(id string, params ...any) {
	a.mutex.Lock()
	a.warnings = append(a.warnings, id)
	a.mutex.Unlock()
	a.t.Log("[warning]", id, fmt.Sprint(params...))
}

func (a *TestAPI) ReportDebug(msg string, params ...any) {
	a.t.Log("[debug]", msg, fmt.Sprint(params...))
}

func (a *TestAPI) ReportCount(id string, count int64) {
	a.mutex.Lock()
	a.counts[id] = count
	a.mutex.Unlock()
}

// Broken returns the ids passed to ReportBroken, in order.
func (a *TestAPI) Broken() []string {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return append([]string(nil), a.broken...)
}

// Warnings returns the ids passed to ReportWarning, in order.
func (a *TestAPI) Warnings() []string {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return append([]string(nil), a.warnings...)
}

// Count returns the last value reported for id.
func (a *TestAPI) Count(id string) int64 {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.counts[id]
}
