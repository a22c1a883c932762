package telemetry

import (
	"fmt"
)

// API is the observer every scraping component reports through. Nothing in the
// scraping code talks to a logger directly, so tests can swap in a recorder and
// the CLI can decide where reports end up.
//
// note: fault injection point
type API interface {
	// ReportBroken reports a component that failed in a way that aborts the work it was doing.
	//
	// The `id` identifies the **component** that broke, not the line of code that broke. If you saw the
	// report on its own, you should be able to find the method it came from.
	//
	// ex. A page request in the hacker news session fails after all retries, the id should be `session.get`,
	// not `session.get-resty-retry-3`. Extra detail (url, attempt count) goes into params or into the wrapped
	// error.
	//
	// Formatting rules:
	// 1) all lowercase
	// 2) use underscores for large components
	// 3) use dashes for methods part of a larger component
	//
	// Use ScopedAPI to add the package level prefix instead of spelling it out in every id.
	ReportBroken(id string, params ...any)

	// ReportWarning reports a scenario that does not abort anything but may be worth a look,
	// like a retried request or a page without a Date header.
	//
	// For what value to provide as `id` refer to ReportBroken.
	ReportWarning(id string, params ...any)

	// ReportDebug reports progress information that is hidden unless debugging.
	ReportDebug(msg string, params ...any)

	// ReportCount reports the current count of a specific event, these counts should
	// not be summed but interpreted as points of data over time.
	//
	// For what value to provide as `id` refer to ReportBroken.
	ReportCount(id string, count int64)
}

// ScopedAPI is a telemetry API that attaches a namespace to every report, kind of like creating a
// "sub" logger with a prefix.
type ScopedAPI struct {
	namespace string
	inner     API
}

// NewScopedAPI creates a ScopedAPI out of a given namespace and another api.
func NewScopedAPI(namespace string, inner API) ScopedAPI {
	return ScopedAPI{namespace: namespace, inner: inner}
}

func (s ScopedAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(fmt.Sprintf("%s: %s", s.namespace, id), params...)
}

func (s ScopedAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(fmt.Sprintf("%s: %s", s.namespace, id), params...)
}

func (s ScopedAPI) ReportDebug(msg string, params ...any) {
	s.inner.ReportDebug(fmt.Sprintf("%s: %s", s.namespace, msg), params...)
}

func (s ScopedAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(fmt.Sprintf("%s: %s", s.namespace, id), count)
}
