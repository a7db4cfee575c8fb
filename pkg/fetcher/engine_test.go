package fetcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/samvad-hq/samvad-fetcher/pkg/adaptor"
	"github.com/samvad-hq/samvad-fetcher/pkg/headers"
)

const testSeed = 99

// capture records the last request a test server received.
type capture struct {
	mu     sync.Mutex
	method string
	header http.Header
	query  url.Values
	body   string
}

func (c *capture) record(r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.method = r.Method
	c.header = r.Header.Clone()
	c.query = r.URL.Query()
	c.body = string(body)
}

func (c *capture) snapshot() (string, http.Header, url.Values, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.method, c.header, c.query, c.body
}

func echoServer(t *testing.T, c *capture, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.record(r)
		if handler != nil {
			handler(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// infoCounter counts info entries.
type infoCounter struct {
	mu    sync.Mutex
	infos int
}

func (l *infoCounter) InfoObj(string, string, interface{}) {
	l.mu.Lock()
	l.infos++
	l.mu.Unlock()
}
func (l *infoCounter) DebugObj(string, string, interface{}) {}
func (l *infoCounter) WarnObj(string, string, interface{})  {}
func (l *infoCounter) ErrorObj(string, string, interface{}) {}

func newTestEngine(mut func(*Config)) *Engine {
	cfg := DefaultConfig()
	cfg.Timeout = 5 * time.Second
	cfg.Generator = headers.NewBrowserGenerator(testSeed)
	if mut != nil {
		mut(&cfg)
	}
	return New(cfg)
}

func TestGetWithoutStealthSendsOnlySuppliedHeaders(t *testing.T) {
	c := &capture{}
	srv := echoServer(t, c, nil)
	log := &infoCounter{}
	engine := newTestEngine(func(cfg *Config) { cfg.Logger = log })

	resp, err := engine.Get(context.Background(), srv.URL, RequestOptions{
		Stealth: Bool(false),
		Headers: map[string]string{"User-Agent": "X"},
	})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	_, got, _, _ := c.snapshot()
	if ua := got.Get("User-Agent"); ua != "X" {
		t.Fatalf("server saw user agent %q", ua)
	}
	if got.Get("Referer") != "" {
		t.Fatalf("no referer expected without stealth")
	}
	if len(resp.RequestHeaders) != 1 || resp.RequestHeaders["User-Agent"] != "X" {
		t.Fatalf("expected request headers exactly {User-Agent: X}, got %v", resp.RequestHeaders)
	}
	if log.infos != 0 {
		t.Fatalf("no substitution log expected, got %d", log.infos)
	}
}

func TestGetWithoutUserAgentGeneratesOne(t *testing.T) {
	c := &capture{}
	srv := echoServer(t, c, nil)
	log := &infoCounter{}
	engine := newTestEngine(func(cfg *Config) { cfg.Logger = log })

	if _, err := engine.Get(context.Background(), srv.URL, RequestOptions{Stealth: Bool(false)}); err != nil {
		t.Fatalf("Get: %v", err)
	}

	_, got, _, _ := c.snapshot()
	if values := got.Values("User-Agent"); len(values) != 1 || !strings.HasPrefix(values[0], "Mozilla/5.0") {
		t.Fatalf("expected one generated user agent, got %v", values)
	}
	if log.infos != 1 {
		t.Fatalf("expected one substitution log entry, got %d", log.infos)
	}
}

func TestGetStealthSendsBrowserHeadersAndReferer(t *testing.T) {
	c := &capture{}
	srv := echoServer(t, c, nil)
	engine := newTestEngine(nil)

	// replay the generator to learn which stealth set the engine will draw
	replay := headers.NewBrowserGenerator(testSeed)
	replay.UserAgent()
	want := replay.BrowserHeaders()

	if _, err := engine.Get(context.Background(), srv.URL+"/page", RequestOptions{}); err != nil {
		t.Fatalf("Get: %v", err)
	}

	_, got, _, _ := c.snapshot()
	for k, v := range want {
		if got.Get(k) != v {
			t.Fatalf("header %s: expected %q, got %q", k, v, got.Get(k))
		}
	}
	ref := got.Get("Referer")
	if !strings.HasPrefix(ref, "https://www.google.com/search?q=") || !strings.Contains(ref, "127.0.0.1") {
		t.Fatalf("unexpected referer %q", ref)
	}
}

func TestStealthDefaultFollowsConfig(t *testing.T) {
	c := &capture{}
	srv := echoServer(t, c, nil)
	engine := newTestEngine(func(cfg *Config) { cfg.StealthyHeaders = false })

	if _, err := engine.Get(context.Background(), srv.URL, RequestOptions{}); err != nil {
		t.Fatalf("Get: %v", err)
	}
	_, got, _, _ := c.snapshot()
	if got.Get("Referer") != "" || got.Get("Sec-Fetch-Mode") != "" {
		t.Fatalf("stealth headers sent although disabled: %v", got)
	}
}

func TestErrorStatusIsNotAnError(t *testing.T) {
	c := &capture{}
	srv := echoServer(t, c, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("missing"))
	})
	engine := newTestEngine(nil)

	resp, err := engine.Get(context.Background(), srv.URL, RequestOptions{})
	if err != nil {
		t.Fatalf("404 must not be an error: %v", err)
	}
	if resp.Status != http.StatusNotFound || resp.Reason != "Not Found" {
		t.Fatalf("unexpected status %d %q", resp.Status, resp.Reason)
	}
	if resp.Encoding != "utf-8" {
		t.Fatalf("expected utf-8 fallback, got %q", resp.Encoding)
	}
	if resp.Text != "missing" {
		t.Fatalf("unexpected text %q", resp.Text)
	}
}

func TestResponseCarriesHeadersCookiesAndBody(t *testing.T) {
	c := &capture{}
	srv := echoServer(t, c, func(w http.ResponseWriter, _ *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc"})
		w.Header().Add("X-Multi", "a")
		w.Header().Add("X-Multi", "b")
		w.Header().Set("Content-Type", "text/html; charset=UTF-8")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("<p>hello</p>"))
	})
	engine := newTestEngine(func(cfg *Config) {
		cfg.AdaptorArguments = adaptor.Arguments{adaptor.ArgKeepComments: true}
	})

	resp, err := engine.Get(context.Background(), srv.URL+"/doc", RequestOptions{})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.Status != http.StatusCreated {
		t.Fatalf("status = %d", resp.Status)
	}
	if resp.Cookies["session"] != "abc" {
		t.Fatalf("cookies = %v", resp.Cookies)
	}
	if resp.Headers["X-Multi"] != "a, b" {
		t.Fatalf("X-Multi = %q", resp.Headers["X-Multi"])
	}
	if resp.Encoding != "utf-8" {
		t.Fatalf("encoding = %q", resp.Encoding)
	}
	if resp.Text != "<p>hello</p>" || string(resp.Content) != resp.Text {
		t.Fatalf("text = %q content = %q", resp.Text, resp.Content)
	}
	if resp.URL != srv.URL+"/doc" {
		t.Fatalf("url = %q", resp.URL)
	}
	if !resp.AdaptorArguments.Bool(adaptor.ArgKeepComments, false) {
		t.Fatalf("adaptor arguments not carried: %v", resp.AdaptorArguments)
	}

	doc, err := resp.Adaptor()
	if err != nil {
		t.Fatalf("Adaptor: %v", err)
	}
	if got := doc.CSS("p").Text(); got != "hello" {
		t.Fatalf("adaptor text = %q", got)
	}
}

func TestDeclaredCharsetIsDecoded(t *testing.T) {
	c := &capture{}
	srv := echoServer(t, c, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=ISO-8859-1")
		_, _ = w.Write([]byte{'c', 'a', 'f', 0xe9})
	})
	engine := newTestEngine(nil)

	resp, err := engine.Get(context.Background(), srv.URL, RequestOptions{})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.Encoding != "iso-8859-1" {
		t.Fatalf("encoding = %q", resp.Encoding)
	}
	if resp.Text != "café" {
		t.Fatalf("text = %q", resp.Text)
	}
	if len(resp.Content) != 4 {
		t.Fatalf("content should keep raw bytes, got %v", resp.Content)
	}
}

func TestPostForwardsOptions(t *testing.T) {
	c := &capture{}
	srv := echoServer(t, c, nil)
	engine := newTestEngine(nil)

	_, err := engine.Post(context.Background(), srv.URL+"/submit", RequestOptions{
		Stealth:   Bool(false),
		Params:    map[string]string{"page": "2"},
		Query:     url.Values{"tag": []string{"a", "b"}},
		Body:      "payload",
		Cookies:   map[string]string{"token": "t1"},
		BasicAuth: &BasicAuth{Username: "user", Password: "pass"},
		Raw: []func(*resty.Request){
			func(r *resty.Request) { r.SetHeader("X-Raw", "1") },
		},
	})
	if err != nil {
		t.Fatalf("Post: %v", err)
	}

	method, hdr, query, body := c.snapshot()
	if method != http.MethodPost || body != "payload" {
		t.Fatalf("unexpected request %s %q", method, body)
	}
	if query.Get("page") != "2" || len(query["tag"]) != 2 {
		t.Fatalf("unexpected query %v", query)
	}
	if hdr.Get("X-Raw") != "1" {
		t.Fatalf("raw option not applied")
	}
	if !strings.Contains(hdr.Get("Cookie"), "token=t1") {
		t.Fatalf("cookie missing: %q", hdr.Get("Cookie"))
	}
	if !strings.HasPrefix(hdr.Get("Authorization"), "Basic ") {
		t.Fatalf("basic auth missing: %q", hdr.Get("Authorization"))
	}
}

func TestPutAndDeleteUseTheirMethods(t *testing.T) {
	c := &capture{}
	srv := echoServer(t, c, nil)
	engine := newTestEngine(nil)
	ctx := context.Background()

	if _, err := engine.Put(ctx, srv.URL, RequestOptions{Body: map[string]string{"k": "v"}}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	method, hdr, _, body := c.snapshot()
	if method != http.MethodPut || !strings.Contains(body, `"k":"v"`) {
		t.Fatalf("unexpected PUT %s %q", method, body)
	}
	if !strings.Contains(hdr.Get("Content-Type"), "application/json") {
		t.Fatalf("expected json content type, got %q", hdr.Get("Content-Type"))
	}

	if _, err := engine.Delete(ctx, srv.URL, RequestOptions{BearerToken: "tok"}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	method, hdr, _, _ = c.snapshot()
	if method != http.MethodDelete || hdr.Get("Authorization") != "Bearer tok" {
		t.Fatalf("unexpected DELETE %s %q", method, hdr.Get("Authorization"))
	}
}

func TestDoRejectsBadInput(t *testing.T) {
	engine := newTestEngine(nil)

	if _, err := engine.Get(context.Background(), "  ", RequestOptions{}); !errors.Is(err, ErrEmptyURL) {
		t.Fatalf("expected ErrEmptyURL, got %v", err)
	}
	if _, err := engine.Do(context.Background(), http.MethodPatch, "https://example.com", RequestOptions{}); !errors.Is(err, ErrUnsupportedMethod) {
		t.Fatalf("expected ErrUnsupportedMethod, got %v", err)
	}
}

func TestTransportErrorsPropagateUnwrapped(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL
	srv.Close()

	resp, err := newTestEngine(nil).Get(context.Background(), target, RequestOptions{})
	if err == nil {
		t.Fatalf("expected connection error")
	}
	if resp != nil {
		t.Fatalf("no response expected on transport failure")
	}
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		t.Fatalf("expected *url.Error from the http client, got %T", err)
	}
}

func TestRedirectPolicy(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/end", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/end", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("end"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := newTestEngine(nil).Get(context.Background(), srv.URL+"/start", RequestOptions{})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.URL != srv.URL+"/end" || resp.Status != http.StatusOK {
		t.Fatalf("expected final url /end, got %q (%d)", resp.URL, resp.Status)
	}

	noFollow := newTestEngine(func(cfg *Config) { cfg.FollowRedirects = false })
	resp, err = noFollow.Get(context.Background(), srv.URL+"/start", RequestOptions{})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.Status != http.StatusMovedPermanently || resp.Headers["Location"] != "/end" {
		t.Fatalf("expected unfollowed redirect, got %d %v", resp.Status, resp.Headers)
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	engine := New(Config{})
	if engine.cfg.Timeout != 10*time.Second {
		t.Fatalf("expected 10s default timeout, got %v", engine.cfg.Timeout)
	}
	if engine.cfg.AdaptorArguments == nil {
		t.Fatalf("adaptor arguments should default to an empty map")
	}
	if engine.cfg.FollowRedirects || engine.cfg.StealthyHeaders {
		t.Fatalf("zero config should leave redirects and stealth off: %+v", engine.cfg)
	}
	def := DefaultConfig()
	if !def.FollowRedirects || !def.StealthyHeaders {
		t.Fatalf("unexpected defaults %+v", def)
	}
}

func TestCallsDoNotShareCookies(t *testing.T) {
	c := &capture{}
	var (
		mu      sync.Mutex
		cookies []string
	)
	srv := echoServer(t, c, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		cookies = append(cookies, r.Header.Get("Cookie"))
		mu.Unlock()
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "from-first-call", Path: "/"})
	})
	engine := newTestEngine(nil)
	opts := RequestOptions{Stealth: Bool(false), Headers: map[string]string{"User-Agent": "X"}}

	if _, err := engine.Get(context.Background(), srv.URL, opts); err != nil {
		t.Fatalf("first Get: %v", err)
	}
	resp, err := engine.Get(context.Background(), srv.URL, opts)
	if err != nil {
		t.Fatalf("second Get: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(cookies) != 2 || cookies[1] != "" {
		t.Fatalf("server saw cookies %q on the second call", cookies)
	}
	if len(resp.RequestHeaders) != 1 || resp.RequestHeaders["User-Agent"] != "X" {
		t.Fatalf("expected request headers exactly {User-Agent: X}, got %v", resp.RequestHeaders)
	}
	if resp.Cookies["sid"] != "from-first-call" {
		t.Fatalf("response cookies should still be reported, got %v", resp.Cookies)
	}
}

func TestFollowedRedirectAddsNoRefererWithoutStealth(t *testing.T) {
	var landedReferer string
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/end", http.StatusFound)
	})
	mux.HandleFunc("/end", func(w http.ResponseWriter, r *http.Request) {
		landedReferer = r.Header.Get("Referer")
		_, _ = w.Write([]byte("end"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := newTestEngine(nil).Get(context.Background(), srv.URL+"/start", RequestOptions{
		Stealth: Bool(false),
		Headers: map[string]string{"User-Agent": "X"},
	})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.URL != srv.URL+"/end" {
		t.Fatalf("redirect not followed, url = %q", resp.URL)
	}
	if landedReferer != "" {
		t.Fatalf("server saw Referer %q after the redirect", landedReferer)
	}
	if len(resp.RequestHeaders) != 1 || resp.RequestHeaders["User-Agent"] != "X" {
		t.Fatalf("expected request headers exactly {User-Agent: X}, got %v", resp.RequestHeaders)
	}
}

func TestFollowedRedirectKeepsStealthReferer(t *testing.T) {
	var landedReferer string
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/end", http.StatusFound)
	})
	mux.HandleFunc("/end", func(_ http.ResponseWriter, r *http.Request) {
		landedReferer = r.Header.Get("Referer")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	if _, err := newTestEngine(nil).Get(context.Background(), srv.URL+"/start", RequestOptions{}); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !strings.HasPrefix(landedReferer, "https://www.google.com/search?q=") {
		t.Fatalf("stealth referer lost across the redirect: %q", landedReferer)
	}
}

func TestBrotliBodyIsDecoded(t *testing.T) {
	c := &capture{}
	compressed := brotliBytes(t, plain)
	srv := echoServer(t, c, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Encoding", "br")
		_, _ = w.Write(compressed)
	})

	resp, err := newTestEngine(nil).Get(context.Background(), srv.URL, RequestOptions{})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.Text != plain || string(resp.Content) != plain {
		t.Fatalf("brotli body not decoded: %q", resp.Text)
	}
	if _, got, _, _ := c.snapshot(); !strings.Contains(got.Get("Accept-Encoding"), "br") {
		t.Fatalf("stealth headers should advertise br, got %q", got.Get("Accept-Encoding"))
	}
}
