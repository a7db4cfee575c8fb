package fetcher

import (
	"net/http"
	"net/url"

	"github.com/go-resty/resty/v2"
)

// BasicAuth holds HTTP basic credentials.
type BasicAuth struct {
	Username string
	Password string
}

// RequestOptions are the per-request settings forwarded to the HTTP client.
// The zero value sends a bare request with the engine defaults.
type RequestOptions struct {
	// Stealth overrides the engine's stealthy headers default when set.
	Stealth *bool

	Headers map[string]string
	Params  map[string]string
	Query   url.Values
	// Body is passed to resty as is: string, []byte, io.Reader, or a value
	// to encode as JSON.
	Body     any
	FormData map[string]string
	Cookies  map[string]string

	BasicAuth   *BasicAuth
	BearerToken string
	// Proxy routes only this request through the given proxy URL.
	Proxy string

	// Raw runs after every other option and may adjust the request freely.
	Raw []func(*resty.Request)
}

// Bool returns a pointer to v, handy for RequestOptions.Stealth.
func Bool(v bool) *bool { return &v }

func (o RequestOptions) stealth(fallback bool) bool {
	if o.Stealth == nil {
		return fallback
	}
	return *o.Stealth
}

// apply copies everything except headers onto req.
func (o RequestOptions) apply(req *resty.Request) {
	if len(o.Params) > 0 {
		req.SetQueryParams(o.Params)
	}
	if len(o.Query) > 0 {
		req.SetQueryParamsFromValues(o.Query)
	}
	if o.Body != nil {
		req.SetBody(o.Body)
	}
	if len(o.FormData) > 0 {
		req.SetFormData(o.FormData)
	}
	for name, value := range o.Cookies {
		req.SetCookie(&http.Cookie{Name: name, Value: value})
	}
	if o.BasicAuth != nil {
		req.SetBasicAuth(o.BasicAuth.Username, o.BasicAuth.Password)
	}
	if o.BearerToken != "" {
		req.SetAuthToken(o.BearerToken)
	}
	for _, fn := range o.Raw {
		if fn != nil {
			fn(req)
		}
	}
}
