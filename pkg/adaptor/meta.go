package adaptor

import "strings"

// PageMeta is the summary metadata a page advertises about itself.
type PageMeta struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

// Meta prefers Open Graph tags and falls back to <title> and the description meta tag.
func (a *Adaptor) Meta() PageMeta {
	extract := func(sel string) string {
		if node := a.doc.Find(sel).First(); node.Length() > 0 {
			if val, ok := node.Attr("content"); ok {
				return strings.TrimSpace(val)
			}
		}
		return ""
	}

	return PageMeta{
		Title: firstNonEmpty(
			extract(`meta[property="og:title"]`),
			a.Title(),
		),
		Description: firstNonEmpty(
			extract(`meta[property="og:description"]`),
			extract(`meta[name="description"]`),
		),
		ImageURL: resolveURL(extract(`meta[property="og:image"]`), a.url),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
