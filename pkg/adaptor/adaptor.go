package adaptor

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Adaptor wraps a parsed HTML document together with the page URL and the
// arguments it was built with.
type Adaptor struct {
	doc  *goquery.Document
	url  string
	args Arguments
}

// New parses text (already decoded to UTF-8) as HTML.
func New(text, pageURL string, args Arguments) (*Adaptor, error) {
	root, err := html.Parse(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	if !args.Bool(ArgKeepComments, false) {
		stripComments(root)
	}

	return &Adaptor{
		doc:  goquery.NewDocumentFromNode(root),
		url:  args.String(ArgBaseURL, pageURL),
		args: args.Clone(),
	}, nil
}

// Document exposes the underlying goquery document.
func (a *Adaptor) Document() *goquery.Document { return a.doc }

// URL is the base URL used for resolving relative links.
func (a *Adaptor) URL() string { return a.url }

// Arguments returns a copy of the arguments the adaptor was built with.
func (a *Adaptor) Arguments() Arguments { return a.args.Clone() }

// CSS selects nodes matching selector.
func (a *Adaptor) CSS(selector string) *goquery.Selection {
	return a.doc.Find(selector)
}

// Title returns the trimmed <title> text.
func (a *Adaptor) Title() string {
	return strings.TrimSpace(a.doc.Find("title").First().Text())
}

// Links returns every anchor href resolved to an absolute URL, in document
// order and without duplicates. Fragment-only and javascript: links are skipped.
func (a *Adaptor) Links() []string {
	seen := make(map[string]struct{})
	var out []string

	a.doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return
		}
		abs := resolveURL(href, a.url)
		if abs == "" {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		out = append(out, abs)
	})
	return out
}

func stripComments(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.CommentNode {
			n.RemoveChild(c)
		} else {
			stripComments(c)
		}
		c = next
	}
}

// resolveURL resolves ref against base; unparseable input yields ref unchanged
// and an empty ref yields "".
func resolveURL(ref, base string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	baseURL, err := url.Parse(strings.TrimSpace(base))
	if err != nil || base == "" {
		return refURL.String()
	}
	return baseURL.ResolveReference(refURL).String()
}
