package htmlutil

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// GetText concatenates every descendant text node of node, the equivalent of xpath `.//text()`.
func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

// DirectText returns the text nodes that are direct children of node, unmodified.
// This is xpath `./text()`.
func DirectText(node *html.Node) []string {
	if node == nil {
		return nil
	}
	var out []string
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.TextNode {
			out = append(out, child.Data)
		}
	}
	return out
}

// Anchor is an <a> element with its href resolved against the page it came from.
// Href is nil when the element carries no href attribute at all.
type Anchor struct {
	Name string
	Href *url.URL
}

var whitespace = regexp.MustCompile(`\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// NormalizeText strips non printable characters and collapses runs of whitespace.
func NormalizeText(text string) string {
	text = whitespace.ReplaceAllString(text, " ")
	text = removeNonPrintable(text)
	return strings.TrimSpace(text)
}

// GetAnchor reads a single anchor node. An href that fails to parse is reported as an error
// instead of being silently dropped.
func GetAnchor(base *url.URL, n *html.Node) (Anchor, error) {
	anchor := Anchor{Name: NormalizeText(GetText(n))}
	for _, a := range n.Attr {
		if a.Key != "href" {
			continue
		}
		link, err := url.Parse(strings.TrimSpace(a.Val))
		if err != nil {
			return anchor, err
		}
		if base != nil {
			link = base.ResolveReference(link)
		}
		anchor.Href = link
		break
	}
	return anchor, nil
}

// GetAnchors reads every node in sel as an anchor, failing on the first unparsable href.
func GetAnchors(base *url.URL, sel *goquery.Selection) ([]Anchor, error) {
	anchors := make([]Anchor, 0, len(sel.Nodes))
	for _, n := range sel.Nodes {
		anchor, err := GetAnchor(base, n)
		if err != nil {
			return nil, err
		}
		anchors = append(anchors, anchor)
	}
	return anchors, nil
}
