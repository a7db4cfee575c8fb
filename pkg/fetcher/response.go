package fetcher

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/samvad-hq/samvad-fetcher/pkg/adaptor"
)

// Response is the normalized result of one request. It is built once by the
// engine and should be treated as read-only.
type Response struct {
	URL     string
	Text    string
	Content []byte
	Status  int
	Reason  string
	// Encoding is the declared or detected charset, "utf-8" when neither is known.
	Encoding       string
	Cookies        map[string]string
	Headers        map[string]string
	RequestHeaders map[string]string

	AdaptorArguments adaptor.Arguments
}

// Adaptor parses the response text as HTML using the response's adaptor arguments.
func (r *Response) Adaptor() (*adaptor.Adaptor, error) {
	return adaptor.New(r.Text, r.URL, r.AdaptorArguments)
}

// newResponse maps a resty response onto Response. It never looks at the
// status code.
func newResponse(raw *resty.Response, args adaptor.Arguments) *Response {
	header := raw.Header()
	content := decodeContent(header.Get("Content-Encoding"), raw.Body())
	encoding := detectEncoding(header.Get("Content-Type"), content)

	return &Response{
		URL:              finalURL(raw),
		Text:             decodeText(content, encoding),
		Content:          content,
		Status:           raw.StatusCode(),
		Reason:           reasonPhrase(raw),
		Encoding:         encoding,
		Cookies:          cookieMap(raw.Cookies()),
		Headers:          flattenHeader(header),
		RequestHeaders:   flattenHeader(sentHeader(raw)),
		AdaptorArguments: args.Clone(),
	}
}

func finalURL(raw *resty.Response) string {
	if raw.RawResponse != nil && raw.RawResponse.Request != nil && raw.RawResponse.Request.URL != nil {
		return raw.RawResponse.Request.URL.String()
	}
	if raw.Request != nil {
		return raw.Request.URL
	}
	return ""
}

// sentHeader returns the headers of the last request on the wire, which
// differs from the first one when redirects were followed.
func sentHeader(raw *resty.Response) http.Header {
	if raw.RawResponse != nil && raw.RawResponse.Request != nil {
		return raw.RawResponse.Request.Header
	}
	if raw.Request != nil && raw.Request.RawRequest != nil {
		return raw.Request.RawRequest.Header
	}
	return nil
}

func reasonPhrase(raw *resty.Response) string {
	code := raw.StatusCode()
	status := strings.TrimSpace(raw.Status())
	if reason := strings.TrimSpace(strings.TrimPrefix(status, strconv.Itoa(code))); reason != "" {
		return reason
	}
	return http.StatusText(code)
}

func cookieMap(cookies []*http.Cookie) map[string]string {
	out := make(map[string]string, len(cookies))
	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}
		out[c.Name] = c.Value
	}
	return out
}

// flattenHeader joins repeated header values with ", ".
func flattenHeader(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) == 0 {
			continue
		}
		out[http.CanonicalHeaderKey(k)] = strings.Join(v, ", ")
	}
	return out
}
