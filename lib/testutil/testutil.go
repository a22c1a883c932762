package testutil

import (
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// Story is one row of a fake listing page.
type Story struct {
	Id    int
	Title string
	// Url is empty for a dead story, it is rendered without a link.
	Url       string
	Submitter string
	// Age is the relative time, ex. "47 minutes ago".
	Age string
	// AgeSpan renders the age inside <span class="age"> instead of a bare text node.
	AgeSpan bool
	// Flag adds the "flag" link that only shows up on stories submitted by someone else.
	Flag bool
	// Colored wraps the submitter in a <font>, like new accounts.
	Colored bool
}

// RenderListing renders a saved stories page, when next is not empty a "More" link pointing to it is added.
func RenderListing(stories []Story, rankStart int, next string) string {
	var b strings.Builder
	b.WriteString(`<html><head><title>Hacker News</title></head><body><center><table id="hnmain"><tr><td><table class="itemlist" border="0" cellpadding="0" cellspacing="0">` + "\n")
	for i, s := range stories {
		id := strconv.Itoa(s.Id)
		fmt.Fprintf(&b, `<tr class="athing" id="%s"><td align="right" valign="top" class="title"><span class="rank">%d.</span></td>`, id, rankStart+i)
		b.WriteString(`<td valign="top" class="votelinks"><center><a id="up_` + id + `" href="vote?id=` + id + `&amp;how=up"><div class="votearrow" title="upvote"></div></a></center></td>`)
		b.WriteString(`<td class="title">`)
		if s.Url == "" {
			b.WriteString(`<a class="storylink">` + html.EscapeString(s.Title) + `</a> [dead]`)
		} else {
			b.WriteString(`<a href="` + html.EscapeString(s.Url) + `" class="storylink">` + html.EscapeString(s.Title) + `</a>`)
		}
		b.WriteString("</td></tr>\n")

		submitter := html.EscapeString(s.Submitter)
		if s.Colored {
			submitter = `<font color="#3c963c">` + submitter + `</font>`
		}
		fmt.Fprintf(&b, `<tr><td colspan="2"></td><td class="subtext"><span class="score" id="score_%s">%d points</span> by <a href="user?id=%s" class="hnuser">%s</a> `, id, 10+i, url.QueryEscape(s.Submitter), submitter)
		if s.AgeSpan {
			fmt.Fprintf(&b, `<span class="age" title="2024-01-01T00:00:00"><a href="item?id=%s">%s</a></span> | `, id, html.EscapeString(s.Age))
		} else {
			b.WriteString(html.EscapeString(s.Age) + "  | ")
		}
		if s.Flag {
			fmt.Fprintf(&b, `<a href="flag?id=%s&amp;goto=upvoted">flag</a> | `, id)
		}
		fmt.Fprintf(&b, `<a href="hide?id=%s&amp;goto=upvoted">hide</a> | <a href="item?id=%s">%d&nbsp;comments</a></td></tr>`+"\n", id, id, i)
		b.WriteString(`<tr class="spacer" style="height:5px"></tr>` + "\n")
	}
	if next != "" {
		b.WriteString(`<tr class="morespace" style="height:10px"></tr><tr><td colspan="2"></td><td class="title"><a href="` + html.EscapeString(next) + `" class="morelink" rel="next">More</a></td></tr>` + "\n")
	}
	b.WriteString("</table></td></tr></table></center></body></html>\n")
	return b.String()
}

// RenderLogin renders the login page, which carries both the login and the create account form.
func RenderLogin(message string) string {
	return `<html><head><title>Login</title></head><body>` + html.EscapeString(message) + `
<b>Login</b><br><br>
<form action="login" method="post"><input type="hidden" name="goto" value="news">
<table border="0"><tr><td>username:</td><td><input type="text" name="acct" size="20" autocorrect="off" spellcheck="false" autocapitalize="off" autofocus="true"></td></tr>
<tr><td>password:</td><td><input type="password" name="pw" size="20"></td></tr></table><br>
<input type="submit" value="login"></form>
<a href="forgot">Forgot your password?</a><br><br>
<b>Create Account</b><br><br>
<form action="login" method="post"><input type="hidden" name="goto" value="news"><input type="hidden" name="creating" value="t">
<table border="0"><tr><td>username:</td><td><input type="text" name="acct" size="20"></td></tr>
<tr><td>password:</td><td><input type="password" name="pw" size="20"></td></tr></table><br>
<input type="submit" value="create account"></form>
</body></html>
`
}

const sessionCookie = "user"

// HackerNews is a fake of the parts of news.ycombinator.com the scraper touches:
// /login (GET + POST) and the paginated /upvoted listing.
type HackerNews struct {
	*httptest.Server

	Username string
	Password string
	// Pages are the stories of every listing page in order, use SetPages once the server is in use.
	Pages [][]Story
	// Date is the value of the Date header, empty omits the header entirely.
	Date string

	mu       sync.Mutex
	hits     map[string]int
	failures map[string][]int
	forms    []url.Values
}

// NewHackerNews starts a fake server that is closed when the test ends.
func NewHackerNews(t testing.TB, username, password string, pages [][]Story) *HackerNews {
	t.Helper()
	hn := &HackerNews{
		Username: username,
		Password: password,
		Pages:    pages,
		Date:     time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC).Format(http.TimeFormat),
		hits:     map[string]int{},
		failures: map[string][]int{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/login", hn.login)
	mux.HandleFunc("/news", hn.news)
	mux.HandleFunc("/upvoted", hn.upvoted)
	hn.Server = httptest.NewServer(hn.instrument(mux))
	t.Cleanup(hn.Close)
	return hn
}

// Hits returns how many requests were made to path.
func (hn *HackerNews) Hits(path string) int {
	hn.mu.Lock()
	defer hn.mu.Unlock()
	return hn.hits[path]
}

// Forms returns every form posted to /login.
func (hn *HackerNews) Forms() []url.Values {
	hn.mu.Lock()
	defer hn.mu.Unlock()
	return append([]url.Values(nil), hn.forms...)
}

// Fail makes the next requests to path respond with the given statuses, one per request.
func (hn *HackerNews) Fail(path string, statuses ...int) {
	hn.mu.Lock()
	defer hn.mu.Unlock()
	hn.failures[path] = append(hn.failures[path], statuses...)
}

// SetPages replaces the listing.
func (hn *HackerNews) SetPages(pages [][]Story) {
	hn.mu.Lock()
	defer hn.mu.Unlock()
	hn.Pages = pages
}

// ListingUrl is the first saved stories page of the user.
func (hn *HackerNews) ListingUrl() string {
	return hn.URL + "/upvoted?id=" + url.QueryEscape(hn.Username)
}

func (hn *HackerNews) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hn.mu.Lock()
		hn.hits[r.URL.Path]++
		var status int
		if pending := hn.failures[r.URL.Path]; len(pending) > 0 {
			status = pending[0]
			hn.failures[r.URL.Path] = pending[1:]
		}
		date := hn.Date
		hn.mu.Unlock()

		if date == "" {
			// a nil value keeps net/http from adding its own
			w.Header()["Date"] = nil
		} else {
			w.Header().Set("Date", date)
		}
		if status != 0 {
			http.Error(w, http.StatusText(status), status)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (hn *HackerNews) loggedIn(r *http.Request) bool {
	cookie, err := r.Cookie(sessionCookie)
	return err == nil && cookie.Value == hn.Username+"&token"
}

func (hn *HackerNews) login(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("content-type", "text/html; charset=utf-8")
	if r.Method != http.MethodPost {
		fmt.Fprint(w, RenderLogin(""))
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	hn.mu.Lock()
	hn.forms = append(hn.forms, r.PostForm)
	hn.mu.Unlock()

	if r.PostForm.Get("creating") != "" {
		http.Error(w, "account already exists", http.StatusBadRequest)
		return
	}
	if r.PostForm.Get("acct") != hn.Username || r.PostForm.Get("pw") != hn.Password {
		fmt.Fprint(w, RenderLogin("Bad login."))
		return
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: hn.Username + "&token", Path: "/"})
	http.Redirect(w, r, "/"+r.PostForm.Get("goto"), http.StatusFound)
}

func (hn *HackerNews) news(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("content-type", "text/html; charset=utf-8")
	fmt.Fprint(w, `<html><body><a href="logout">logout</a></body></html>`)
}

func (hn *HackerNews) upvoted(w http.ResponseWriter, r *http.Request) {
	if !hn.loggedIn(r) || r.URL.Query().Get("id") != hn.Username {
		http.Error(w, "Can't display that.", http.StatusForbidden)
		return
	}
	hn.mu.Lock()
	pages := hn.Pages
	hn.mu.Unlock()

	page := 1
	if p := r.URL.Query().Get("p"); p != "" {
		parsed, err := strconv.Atoi(p)
		if err != nil || parsed < 1 {
			http.Error(w, "bad page", http.StatusBadRequest)
			return
		}
		page = parsed
	}

	var stories []Story
	rankStart := 1
	for i := 0; i < page-1 && i < len(pages); i++ {
		rankStart += len(pages[i])
	}
	if page <= len(pages) {
		stories = pages[page-1]
	}
	next := ""
	if page < len(pages) {
		next = "upvoted?id=" + url.QueryEscape(hn.Username) + "&p=" + strconv.Itoa(page+1)
	}

	w.Header().Set("content-type", "text/html; charset=utf-8")
	fmt.Fprint(w, RenderListing(stories, rankStart, next))
}
