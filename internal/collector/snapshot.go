package collector

import (
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/samvad-hq/samvad-fetcher/internal/domain"
	"github.com/samvad-hq/samvad-fetcher/pkg/adaptor"
	"github.com/samvad-hq/samvad-fetcher/pkg/fetcher"
	"github.com/samvad-hq/samvad-fetcher/pkg/targets"
)

const (
	maxSnapshotLinks = 50
	maxHTMLBodyBytes = 1 << 20 // 1 MiB
)

// snapshotHeaders are copied from the response into the snapshot when present.
var snapshotHeaders = []string{
	"Cache-Control",
	"Content-Language",
	"Content-Type",
	"Etag",
	"Last-Modified",
	"Server",
}

// BuildSnapshot summarizes resp for target. HTML bodies get their page
// metadata and the first links extracted.
func BuildSnapshot(t targets.Target, resp *fetcher.Response, fetchedAt time.Time) domain.Snapshot {
	snap := domain.Snapshot{
		TargetID:     t.ID,
		TargetName:   t.Name,
		Method:       t.Method,
		RequestedURL: t.URL,
		Fingerprint:  t.Fingerprint(),
		FetchedAt:    fetchedAt.UTC(),
	}
	if resp == nil {
		return snap
	}

	snap.FinalURL = resp.URL
	snap.Status = resp.Status
	snap.Reason = resp.Reason
	snap.Encoding = resp.Encoding
	snap.ContentType = resp.Headers["Content-Type"]
	snap.ContentLength = len(resp.Content)
	snap.Headers = selectHeaders(resp.Headers)

	if isHTML(snap.ContentType) {
		snap.Page = pageOf(resp)
	}
	return snap
}

func selectHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(snapshotHeaders))
	for _, key := range snapshotHeaders {
		if v, ok := headers[http.CanonicalHeaderKey(key)]; ok && v != "" {
			out[key] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func isHTML(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}

func pageOf(resp *fetcher.Response) *domain.Page {
	doc, err := adaptor.New(truncateUTF8(resp.Text, maxHTMLBodyBytes), resp.URL, resp.AdaptorArguments)
	if err != nil {
		return nil
	}

	meta := doc.Meta()
	links := doc.Links()
	if len(links) > maxSnapshotLinks {
		links = links[:maxSnapshotLinks]
	}

	return &domain.Page{
		Title:       meta.Title,
		Description: meta.Description,
		ImageURL:    meta.ImageURL,
		Links:       links,
	}
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
