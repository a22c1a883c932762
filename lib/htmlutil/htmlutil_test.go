package htmlutil

import (
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, markup string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestGetTextNested(t *testing.T) {
	doc := parse(t, `<a href="user?id=alice"><font color="#3c963c">alice</font></a>`)
	require.Equal(t, "alice", GetText(doc.Find("a").Nodes[0]))
}

func TestDirectText(t *testing.T) {
	doc := parse(t, `<table><tr><td class="subtext"><span>3 points</span> by <a href="user?id=bob">bob</a> 2 hours ago | <a href="item?id=1">discuss</a></td></tr></table>`)
	texts := DirectText(doc.Find("td.subtext").Nodes[0])
	require.Len(t, texts, 2)
	require.Equal(t, " by ", texts[0])
	require.Equal(t, " 2 hours ago | ", texts[1])
}

func TestGetAnchors(t *testing.T) {
	base, err := url.Parse("https://news.ycombinator.com/upvoted?id=alice")
	if err != nil {
		t.Fatal(err)
	}
	doc := parse(t, `<div>
		<a href="item?id=42">  12
		comments </a>
		<a>[dead]</a>
		<a href="https://example.com/x">x</a>
	</div>`)

	anchors, err := GetAnchors(base, doc.Find("a"))
	require.NoError(t, err)
	require.Len(t, anchors, 3)

	require.Equal(t, "12 comments", anchors[0].Name)
	require.Equal(t, "https://news.ycombinator.com/item?id=42", anchors[0].Href.String())

	require.Equal(t, "[dead]", anchors[1].Name)
	require.Nil(t, anchors[1].Href)

	require.Equal(t, "https://example.com/x", anchors[2].Href.String())
}

func TestGetAnchorsBadHref(t *testing.T) {
	doc := parse(t, `<div><a href="item?id=1">ok</a><a href="http://[::1">bad</a></div>`)
	_, err := GetAnchors(nil, doc.Find("a"))
	require.Error(t, err)
}
