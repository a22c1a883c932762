package hackernews

import (
	"fmt"
)

// AuthError means the session could not log in, either the login page was unreachable
// or the credentials were rejected.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("hackernews: login failed: %s", e.Reason)
	}
	return fmt.Sprintf("hackernews: login failed: %s: %s", e.Reason, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// TransientFetchError is one failed attempt of a GET, it is retried.
type TransientFetchError struct {
	Url        string
	Attempt    int
	StatusCode int
	Err        error
}

func (e *TransientFetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("GET %s (attempt %d): %s", e.Url, e.Attempt, e.Err)
	}
	return fmt.Sprintf("GET %s (attempt %d): status %d", e.Url, e.Attempt, e.StatusCode)
}

func (e *TransientFetchError) Unwrap() error {
	return e.Err
}

// FetchExhaustedError is returned once every retry of a GET has failed.
type FetchExhaustedError struct {
	Url      string
	Attempts int
	// StatusCode is 0 when the last attempt never got a response.
	StatusCode int
	// Body of the last response, if there was one.
	Body []byte
	Err  error
}

func (e *FetchExhaustedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("hackernews: GET %s failed after %d attempts: %s", e.Url, e.Attempts, e.Err)
	}
	return fmt.Sprintf("hackernews: GET %s failed after %d attempts: status %d", e.Url, e.Attempts, e.StatusCode)
}

func (e *FetchExhaustedError) Unwrap() error {
	return e.Err
}

// ParseError means a page did not have the expected shape.
type ParseError struct {
	Reason string
	// Fragment is the index of the story on the page, -1 when the whole page is at fault.
	Fragment int
	Err      error
}

func (e *ParseError) Error() string {
	prefix := "hackernews: parse page"
	if e.Fragment >= 0 {
		prefix = fmt.Sprintf("hackernews: parse story %d", e.Fragment)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", prefix, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// PageError wraps whatever stopped a crawl together with the page it happened on.
// Body holds the raw markup (or error response) of that page when there was one, so it can be dumped.
type PageError struct {
	Page int
	Url  string
	Body []byte
	Err  error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page %d (%s): %s", e.Page, e.Url, e.Err)
}

func (e *PageError) Unwrap() error {
	return e.Err
}
