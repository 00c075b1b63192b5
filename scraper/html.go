package scraper

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ParseHTML parses a document.
func ParseHTML(body []byte) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewReader(body))
}

// FindFirst tries each selector in order and returns the matches of the
// first one that matches anything, or an empty selection. Markup drifts
// over time, so adapters keep old and new selectors side by side.
func FindFirst(s *goquery.Selection, selectors ...string) *goquery.Selection {
	for _, sel := range selectors {
		if found := s.Find(sel); found.Length() > 0 {
			return found
		}
	}
	return s.Slice(0, 0)
}

// Find is FindFirst narrowed to its first match.
func Find(s *goquery.Selection, selectors ...string) *goquery.Selection {
	return FindFirst(s, selectors...).First()
}

// TextOf returns the whitespace-collapsed text of s, ignoring script and
// style content.
func TextOf(s *goquery.Selection) string {
	if s == nil || s.Length() == 0 {
		return ""
	}
	clone := s.Clone()
	clone.Find("script, style").Remove()
	return strings.Join(strings.Fields(clone.Text()), " ")
}

// StripTags removes markup from a fragment of HTML text and collapses whitespace.
func StripTags(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}
	nodes, err := html.ParseFragment(strings.NewReader(s), &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div})
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	parts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if t := TextOf(goquery.NewDocumentFromNode(n).Selection); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// ResolveURL makes href absolute against base.
func ResolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(href, "/")
}
