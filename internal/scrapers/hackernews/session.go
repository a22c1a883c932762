package hackernews

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"hnsaved/internal/components/assert"
	"hnsaved/internal/components/chrono"
	"hnsaved/internal/components/telemetry"
	"hnsaved/lib/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

const DefaultBaseUrl = "https://news.ycombinator.com"

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

type SessionOptions struct {
	// BaseUrl is what relative links resolve against before the first response arrives.
	BaseUrl string
	// LoginPath is the page holding the login form.
	LoginPath string
	// LoginSubmitPath overrides where the form is posted, by default the form's own action is used.
	LoginSubmitPath string
	UsernameField   string
	PasswordField   string

	// Timeout applies to every single request.
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	// RequestsPerSecond caps the request rate across the session, 0 disables the cap.
	RequestsPerSecond float64

	UserAgent        string
	CloudflareBypass bool

	// Clock is used when a response has no usable Date header, defaults to the system clock.
	Clock chrono.API
	// Dump receives every HTTP exchange when set.
	Dump restyutil.InstrumentOutput
}

func DefaultSessionOptions() SessionOptions {
	return SessionOptions{
		BaseUrl:           DefaultBaseUrl,
		LoginPath:         "/login",
		UsernameField:     "acct",
		PasswordField:     "pw",
		Timeout:           10 * time.Second,
		MaxRetries:        2,
		RetryDelay:        2 * time.Second,
		RequestsPerSecond: 2,
		UserAgent:         defaultUserAgent,
		CloudflareBypass:  true,
	}
}

// Page is a successful response.
type Page struct {
	// Url is the final url after redirects.
	Url        *url.URL
	Time       time.Time
	StatusCode int
	Body       []byte
}

// Session is a logged in, cookie carrying client. It remembers the url and server time of
// the last response, relative links and relative times are resolved against those.
//
// A Session is not safe for concurrent use.
type Session struct {
	http    *resty.Client
	opts    SessionOptions
	baseUrl *url.URL
	tel     telemetry.API
	clock   chrono.API

	username string
	lastUrl  *url.URL
	lastTime time.Time
}

func NewSession(opts SessionOptions, tel telemetry.API) (*Session, error) {
	assert.NotNil(tel)
	tel = telemetry.NewScopedAPI("hackernews", tel)

	defaults := DefaultSessionOptions()
	if opts.BaseUrl == "" {
		opts.BaseUrl = defaults.BaseUrl
	}
	if opts.LoginPath == "" {
		opts.LoginPath = defaults.LoginPath
	}
	if opts.UsernameField == "" {
		opts.UsernameField = defaults.UsernameField
	}
	if opts.PasswordField == "" {
		opts.PasswordField = defaults.PasswordField
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaults.UserAgent
	}
	if opts.Clock == nil {
		opts.Clock = chrono.NewStandardImpl()
	}

	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	s := &Session{
		opts:    opts,
		baseUrl: baseUrl,
		tel:     tel,
		clock:   opts.Clock,
	}

	httpClient := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	httpClient.SetCookieJar(jar)
	if opts.CloudflareBypass {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}

	httpClient.SetHeader("user-agent", opts.UserAgent)
	httpClient.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	httpClient.SetTimeout(opts.Timeout)

	// the delay is fixed: with wait == max wait the jittered backoff always lands on wait
	httpClient.SetRetryCount(opts.MaxRetries)
	httpClient.SetRetryWaitTime(opts.RetryDelay)
	httpClient.SetRetryMaxWaitTime(opts.RetryDelay)
	httpClient.AddRetryCondition(shouldRetry)
	httpClient.AddRetryHook(s.onRetry)

	if opts.RequestsPerSecond > 0 {
		// max burst >= 1 just means that no requests will be dropped
		rateLimiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), max(1, int(opts.RequestsPerSecond)))
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return rateLimiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(httpClient, tel, opts.Dump)

	s.http = httpClient
	return s, nil
}

// only GETs are retried, a login POST is sent exactly once
func shouldRetry(res *resty.Response, err error) bool {
	if res != nil && res.Request != nil && res.Request.Method != http.MethodGet {
		return false
	}
	if err != nil {
		return !errors.Is(err, context.Canceled)
	}
	return res != nil && !res.IsSuccess()
}

func (s *Session) onRetry(res *resty.Response, err error) {
	transient := &TransientFetchError{Err: err}
	ctx := context.Background()
	if res != nil {
		transient.StatusCode = res.StatusCode()
		if res.Request != nil {
			transient.Url = res.Request.URL
			transient.Attempt = res.Request.Attempt
			ctx = res.Request.Context()
		}
	}
	retryCounter.Add(ctx, 1)
	s.tel.ReportWarning(report_session_get, transient)
}

// Username is empty until Login succeeds.
func (s *Session) Username() string {
	return s.username
}

// LastResponseUrl is nil before the first response.
func (s *Session) LastResponseUrl() *url.URL {
	return s.lastUrl
}

// LastResponseTime is the server time of the last response, zero before the first response.
func (s *Session) LastResponseTime() time.Time {
	return s.lastTime
}

// Resolve resolves a possibly relative link against the last response, or the base url
// when nothing has been fetched yet.
func (s *Session) Resolve(ref string) (*url.URL, error) {
	parsed, err := url.Parse(ref)
	if err != nil {
		return nil, err
	}
	base := s.baseUrl
	if s.lastUrl != nil {
		base = s.lastUrl
	}
	return base.ResolveReference(parsed), nil
}

// SavedStoriesUrl is the first page of the logged in user's upvoted ("saved") stories.
func (s *Session) SavedStoriesUrl() string {
	query := url.Values{"id": {s.username}}
	return s.baseUrl.ResolveReference(&url.URL{Path: "upvoted", RawQuery: query.Encode()}).String()
}

func attempts(res *resty.Response, fallback int) int {
	if res != nil && res.Request != nil && res.Request.Attempt > 0 {
		return res.Request.Attempt
	}
	return fallback
}

// Get fetches ref (resolved with Resolve). Transport errors and non 2xx statuses are retried
// MaxRetries times, after that a *FetchExhaustedError is returned.
func (s *Session) Get(ctx context.Context, ref string) (Page, error) {
	ctx, span := tracer.Start(ctx, "session:Get")
	defer span.End()

	target, err := s.Resolve(ref)
	if err != nil {
		span.SetStatus(codes.Error, "resolve url")
		return Page{}, fmt.Errorf("resolve %q: %w", ref, err)
	}
	endpoint := target.String()

	res, err := s.http.R().
		SetContext(ctx).
		Get(endpoint)
	if err != nil {
		if ctx.Err() != nil {
			return Page{}, fmt.Errorf("GET %s: %w", endpoint, ctx.Err())
		}
		exhausted := &FetchExhaustedError{
			Url:      endpoint,
			Attempts: attempts(res, s.opts.MaxRetries+1),
			Err:      err,
		}
		span.RecordError(exhausted)
		span.SetStatus(codes.Error, "fetch exhausted")
		s.tel.ReportBroken(report_session_get, exhausted)
		return Page{}, exhausted
	}
	if !res.IsSuccess() {
		exhausted := &FetchExhaustedError{
			Url:        endpoint,
			Attempts:   attempts(res, s.opts.MaxRetries+1),
			StatusCode: res.StatusCode(),
			Body:       res.Body(),
		}
		span.RecordError(exhausted)
		span.SetStatus(codes.Error, "fetch exhausted")
		s.tel.ReportBroken(report_session_get, exhausted)
		return Page{}, exhausted
	}

	s.record(res)
	return Page{
		Url:        s.lastUrl,
		Time:       s.lastTime,
		StatusCode: res.StatusCode(),
		Body:       res.Body(),
	}, nil
}

// Login fetches the login form, fills in every input it carries plus the credentials and posts it.
func (s *Session) Login(ctx context.Context, username, password string) error {
	ctx, span := tracer.Start(ctx, "session:Login")
	defer span.End()

	loginError := func(reason string, err error) error {
		authErr := &AuthError{Reason: reason, Err: err}
		span.RecordError(authErr)
		span.SetStatus(codes.Error, reason)
		s.tel.ReportBroken(report_session_login, authErr)
		return authErr
	}

	page, err := s.Get(ctx, s.opts.LoginPath)
	if err != nil {
		return loginError("unable to retrieve login page", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return loginError("parse login page", err)
	}

	form := s.loginForm(doc)
	fields := map[string]string{}
	form.Find("input").Each(func(_ int, input *goquery.Selection) {
		name := input.AttrOr("name", "")
		if name == "" {
			return
		}
		fields[name] = input.AttrOr("value", "")
	})
	fields[s.opts.UsernameField] = username
	fields[s.opts.PasswordField] = password

	target, err := s.loginTarget(form, page.Url)
	if err != nil {
		return loginError("resolve login form action", err)
	}

	res, err := s.http.R().
		SetContext(ctx).
		SetFormData(fields).
		Post(target.String())
	if err != nil {
		return loginError("submit credentials", err)
	}
	if !res.IsSuccess() {
		return loginError(fmt.Sprintf("credentials rejected with status %d", res.StatusCode()), nil)
	}

	// a rejected login renders the form again
	doc, err = goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err == nil && doc.Find(s.passwordSelector()).Length() > 0 {
		return loginError("credentials rejected", nil)
	}

	s.username = username
	s.record(res)
	s.tel.ReportDebug("logged in", username)
	return nil
}

func (s *Session) passwordSelector() string {
	return fmt.Sprintf("input[name=%q]", s.opts.PasswordField)
}

// loginForm picks the form holding the password input, the login page also
// carries a "create account" form with the same field names.
func (s *Session) loginForm(doc *goquery.Document) *goquery.Selection {
	selector := s.passwordSelector()
	form := doc.Find("form").FilterFunction(func(_ int, f *goquery.Selection) bool {
		return f.Find(selector).Length() > 0
	}).First()
	if form.Length() == 0 {
		return doc.Selection
	}
	return form
}

func (s *Session) loginTarget(form *goquery.Selection, pageUrl *url.URL) (*url.URL, error) {
	if s.opts.LoginSubmitPath != "" {
		return s.Resolve(s.opts.LoginSubmitPath)
	}
	action := form.AttrOr("action", "")
	if action == "" {
		return pageUrl, nil
	}
	parsed, err := url.Parse(action)
	if err != nil {
		return nil, err
	}
	return pageUrl.ResolveReference(parsed), nil
}

func (s *Session) record(res *resty.Response) {
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		s.lastUrl = res.RawResponse.Request.URL
	} else if parsed, err := url.Parse(res.Request.URL); err == nil {
		s.lastUrl = parsed
	}

	t, err := ParseResponseTime(res.Header().Get("Date"))
	if err != nil {
		s.tel.ReportWarning(report_session_response_time, err)
		t = s.clock.Now()
	}
	s.lastTime = t
}

// some servers spell out the month name
const fullMonthDateLayout = "Mon, 02 January 2006 15:04:05 MST"

// ParseResponseTime parses an HTTP Date header into UTC.
func ParseResponseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("response has no Date header")
	}
	t, err := http.ParseTime(value)
	if err == nil {
		return t.UTC(), nil
	}
	t, err = time.Parse(fullMonthDateLayout, value)
	if err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized Date header %q", value)
}
