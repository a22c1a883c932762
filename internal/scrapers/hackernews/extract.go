package hackernews

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"hnsaved/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// PageResult is everything a single listing page yields.
type PageResult struct {
	Records Dataset
	// Next is the "More" link, nil on the last page.
	Next *url.URL
}

var storyIdRegex = regexp.MustCompile(`^\d+$`)

// StoryId extracts the numeric story id out of a comments link (item?id=<n>).
func StoryId(commentsUrl string) (string, error) {
	parsed, err := url.Parse(commentsUrl)
	if err != nil {
		return "", err
	}
	raw := parsed.Query().Get("id")
	if !storyIdRegex.MatchString(raw) {
		return "", fmt.Errorf("no numeric id in %q", commentsUrl)
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return "", fmt.Errorf("id out of range in %q: %w", commentsUrl, err)
	}
	return strconv.FormatUint(id, 10), nil
}

// ExtractDocument runs Extract over the td.title and td.subtext cells of a listing page.
func ExtractDocument(doc *goquery.Document, pageUrl *url.URL, anchor time.Time) (PageResult, error) {
	return Extract(doc.Find("td.title"), doc.Find("td.subtext"), pageUrl, anchor)
}

// Extract parses the records out of one listing page.
//
// td.title matches three different things: the rank of a story, the title + link of
// a story, and (only when there is a next page) the cell holding the "More" link.
// The cells look like [rank, title, rank, title, ..., more], so once the "More" cell
// is set aside only the odd indices are titles and they pair up in order with the
// subtext cells. Any other shape is a ParseError, a skipped story could be the one
// that should stop the crawl.
//
// Relative links are resolved against pageUrl and relative times against anchor.
func Extract(titles *goquery.Selection, subtexts *goquery.Selection, pageUrl *url.URL, anchor time.Time) (PageResult, error) {
	next, err := nextLink(titles, pageUrl)
	if err != nil {
		return PageResult{}, &ParseError{Reason: "parse next link", Fragment: -1, Err: err}
	}

	cells := titles.Nodes
	if next != nil {
		cells = cells[:len(cells)-1]
	}
	if len(cells) != 2*len(subtexts.Nodes) {
		return PageResult{}, &ParseError{
			Reason:   fmt.Sprintf("%d title cells for %d subtexts", len(cells), len(subtexts.Nodes)),
			Fragment: -1,
		}
	}

	var storyTitles []*html.Node
	for i, n := range cells {
		if i%2 == 1 {
			storyTitles = append(storyTitles, n)
		}
	}

	records := make(Dataset, len(storyTitles))
	for i := range storyTitles {
		record, err := extractRecord(storyTitles[i], subtexts.Nodes[i], pageUrl, anchor)
		if err != nil {
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				parseErr = &ParseError{Reason: "extract record", Err: err}
			}
			parseErr.Fragment = i
			return PageResult{}, parseErr
		}
		records[record.Id] = record
	}

	return PageResult{Records: records, Next: next}, nil
}

func nextLink(titles *goquery.Selection, pageUrl *url.URL) (*url.URL, error) {
	if titles.Length() == 0 {
		return nil, nil
	}
	more := titles.Last().Find("a").FilterFunction(func(_ int, a *goquery.Selection) bool {
		return htmlutil.NormalizeText(a.Text()) == "More"
	})
	anchors, err := htmlutil.GetAnchors(pageUrl, more)
	if err != nil {
		return nil, err
	}
	for _, anchor := range anchors {
		if anchor.Href != nil {
			return anchor.Href, nil
		}
	}
	return nil, nil
}

func extractRecord(titleNode, subtextNode *html.Node, pageUrl *url.URL, anchor time.Time) (Record, error) {
	title := goquery.NewDocumentFromNode(titleNode).Selection
	subtext := goquery.NewDocumentFromNode(subtextNode).Selection

	titleAnchorSel := title.ChildrenFiltered("a").First()
	if titleAnchorSel.Length() == 0 {
		titleAnchorSel = title.Find("a").First()
	}
	if titleAnchorSel.Length() == 0 {
		return Record{}, &ParseError{Reason: "title has no link"}
	}
	titleAnchor, err := htmlutil.GetAnchor(pageUrl, titleAnchorSel.Nodes[0])
	if err != nil {
		return Record{}, &ParseError{Reason: "parse story url", Err: err}
	}

	subtextAnchors := subtext.Find("a").Nodes
	if len(subtextAnchors) == 0 {
		return Record{}, &ParseError{Reason: "subtext has no links"}
	}

	// the submitter name can be wrapped in a <font> when colored, so the
	// text has to come from all descendants
	submitter, err := htmlutil.GetAnchor(pageUrl, subtextAnchors[0])
	if err != nil {
		return Record{}, &ParseError{Reason: "parse submitter link", Err: err}
	}
	if submitter.Href == nil {
		return Record{}, &ParseError{Reason: "submitter has no link"}
	}

	// the "flag" link only shows up on stories you did not submit, so the comments
	// link is found from the end
	comments, err := htmlutil.GetAnchor(pageUrl, subtextAnchors[len(subtextAnchors)-1])
	if err != nil {
		return Record{}, &ParseError{Reason: "parse comments link", Err: err}
	}
	if comments.Href == nil {
		return Record{}, &ParseError{Reason: "comments has no link"}
	}

	id, err := StoryId(comments.Href.String())
	if err != nil {
		return Record{}, &ParseError{Reason: "story id", Err: err}
	}

	record := Record{
		Id:           id,
		Title:        htmlutil.GetText(titleAnchorSel.Nodes[0]),
		CommentsUrl:  comments.Href.String(),
		Submitter:    submitter.Name,
		SubmitterUrl: submitter.Href.String(),
		SubmittedAt:  ResolveRelative(anchor, submittedPhrase(subtext)),
	}
	// dead stories keep their title but lose the href
	if titleAnchor.Href != nil {
		link := titleAnchor.Href.String()
		record.Url = &link
	}

	if !record.SubmittedAt.Resolved() {
		// newer markup nests the age inside span.age instead of a bare text node
		age := subtext.Find(".age").First()
		if age.Length() > 0 {
			record.SubmittedAt = ResolveRelative(anchor, age.Text())
		}
	}

	return record, nil
}

// submittedPhrase is the second bare text node of the subtext: `by <a>user</a> 3 hours ago | ...`
func submittedPhrase(subtext *goquery.Selection) string {
	texts := htmlutil.DirectText(subtext.Nodes[0])
	if len(texts) < 2 {
		return ""
	}
	return texts[1]
}
