package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/samvad-hq/samvad-fetcher/pkg/adaptor"
	"github.com/samvad-hq/samvad-fetcher/pkg/headers"
	"github.com/samvad-hq/samvad-fetcher/pkg/httpclient"
)

// Package fetcher issues plain HTTP requests dressed up as browser traffic and
// normalizes what comes back into a Response.

var (
	ErrEmptyURL          = errors.New("fetcher: url is empty")
	ErrUnsupportedMethod = errors.New("fetcher: unsupported method")
)

// Logger defines the logging surface the engine relies on.
type Logger interface {
	InfoObj(msg, key string, obj interface{})
	DebugObj(msg, key string, obj interface{})
	WarnObj(msg, key string, obj interface{})
	ErrorObj(msg, key string, obj interface{})
}

type noopLogger struct{}

func (noopLogger) InfoObj(string, string, interface{})  {}
func (noopLogger) DebugObj(string, string, interface{}) {}
func (noopLogger) WarnObj(string, string, interface{})  {}
func (noopLogger) ErrorObj(string, string, interface{}) {}

// Config holds the engine settings. They are fixed once New returns.
// Start from DefaultConfig: the zero value turns redirects and stealth
// headers off.
type Config struct {
	FollowRedirects bool
	Timeout         time.Duration
	// StealthyHeaders is the default for requests that leave RequestOptions.Stealth unset.
	StealthyHeaders  bool
	AdaptorArguments adaptor.Arguments
	Proxy            string
	Debug            bool

	Logger    Logger
	Generator headers.Generator
}

// DefaultConfig follows redirects, waits 10 seconds and sends stealthy headers.
func DefaultConfig() Config {
	return Config{
		FollowRedirects: true,
		Timeout:         httpclient.DefaultTimeout,
		StealthyHeaders: true,
	}
}

// Engine dispatches requests through a shared resty client.
type Engine struct {
	cfg         Config
	client      *resty.Client
	synthesizer *headers.Synthesizer
	log         Logger
}

// New builds an engine from cfg. Callers wanting the documented defaults
// (redirects followed, stealthy headers on) pass DefaultConfig(), adjusted.
// A zero Timeout still falls back to ten seconds.
func New(cfg Config) *Engine {
	if cfg.Timeout <= 0 {
		cfg.Timeout = httpclient.DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = noopLogger{}
	}
	cfg.AdaptorArguments = cfg.AdaptorArguments.Clone()
	if cfg.AdaptorArguments == nil {
		cfg.AdaptorArguments = adaptor.Arguments{}
	}

	return &Engine{
		cfg:         cfg,
		client:      httpclient.New(cfg.clientOptions(cfg.Proxy)),
		synthesizer: headers.NewSynthesizer(cfg.Generator, cfg.Logger),
		log:         cfg.Logger,
	}
}

func (c Config) clientOptions(proxy string) httpclient.Options {
	return httpclient.Options{
		Timeout:         c.Timeout,
		FollowRedirects: c.FollowRedirects,
		Proxy:           proxy,
		Debug:           c.Debug,
		Logger:          c.Logger,
	}
}

// Get performs an HTTP GET request.
func (e *Engine) Get(ctx context.Context, url string, opts RequestOptions) (*Response, error) {
	return e.Do(ctx, http.MethodGet, url, opts)
}

// Post performs an HTTP POST request.
func (e *Engine) Post(ctx context.Context, url string, opts RequestOptions) (*Response, error) {
	return e.Do(ctx, http.MethodPost, url, opts)
}

// Put performs an HTTP PUT request.
func (e *Engine) Put(ctx context.Context, url string, opts RequestOptions) (*Response, error) {
	return e.Do(ctx, http.MethodPut, url, opts)
}

// Delete performs an HTTP DELETE request.
func (e *Engine) Delete(ctx context.Context, url string, opts RequestOptions) (*Response, error) {
	return e.Do(ctx, http.MethodDelete, url, opts)
}

// Do synthesizes headers, sends the request and normalizes the reply.
// Transport errors are returned exactly as the HTTP client reported them;
// error status codes are not errors.
func (e *Engine) Do(ctx context.Context, method, url string, opts RequestOptions) (*Response, error) {
	if strings.TrimSpace(url) == "" {
		return nil, ErrEmptyURL
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	if !SupportedMethod(method) {
		return nil, fmt.Errorf("%w %q", ErrUnsupportedMethod, method)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	client := e.client
	if opts.Proxy != "" && opts.Proxy != e.cfg.Proxy {
		client = httpclient.New(e.cfg.clientOptions(opts.Proxy))
		defer client.GetClient().CloseIdleConnections()
	}

	sent := e.synthesizer.Synthesize(opts.Headers, url, opts.stealth(e.cfg.StealthyHeaders))

	req := client.R().SetContext(ctx).SetHeaders(sent)
	opts.apply(req)

	raw, err := req.Execute(method, url)
	if err != nil {
		return nil, err
	}
	return newResponse(raw, e.cfg.AdaptorArguments), nil
}

// SupportedMethod reports whether method is one the engine dispatches.
func SupportedMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}
