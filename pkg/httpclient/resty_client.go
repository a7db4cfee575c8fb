package httpclient

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/moul/http2curl"
)

const (
	DefaultTimeout      = 10 * time.Second
	DefaultMaxRedirects = 20
)

// Logger is the logging surface the client reports on.
type Logger interface {
	DebugObj(msg, key string, obj interface{})
	WarnObj(msg, key string, obj interface{})
	ErrorObj(msg, key string, obj interface{})
}

// Options configures a resty client.
type Options struct {
	Timeout         time.Duration
	FollowRedirects bool
	// MaxRedirects caps followed redirects; zero means DefaultMaxRedirects.
	MaxRedirects int
	Proxy        string
	// Debug logs every outgoing request as a curl command.
	Debug  bool
	Logger Logger
}

// New creates a resty.Client with the specified options.
func New(opts Options) *resty.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := resty.New()
	c.SetTimeout(timeout)
	// every call stands alone; cookies from earlier responses are never replayed
	c.SetCookieJar(nil)

	if opts.FollowRedirects {
		limit := opts.MaxRedirects
		if limit <= 0 {
			limit = DefaultMaxRedirects
		}
		c.SetRedirectPolicy(dropImplicitReferer, resty.FlexibleRedirectPolicy(limit))
	} else {
		c.SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}))
	}

	if opts.Proxy != "" {
		c.SetProxy(opts.Proxy)
	}

	if opts.Logger != nil {
		c.SetLogger(restyLogger{log: opts.Logger})
		if opts.Debug {
			c.SetPreRequestHook(curlLogHook(opts.Logger))
		}
	}

	return c
}

// dropImplicitReferer removes the Referer net/http sets on a redirect hop
// unless the first request carried one itself.
var dropImplicitReferer = resty.RedirectPolicyFunc(func(req *http.Request, via []*http.Request) error {
	if len(via) > 0 && via[0].Header.Get("Referer") == "" {
		req.Header.Del("Referer")
	}
	return nil
})

// curlLogHook logs the final http.Request as a curl command before it is sent.
func curlLogHook(log Logger) resty.PreRequestHook {
	return func(_ *resty.Client, req *http.Request) error {
		cmd, err := http2curl.GetCurlCommand(req)
		if err != nil {
			log.WarnObj("curl command generation failed", "error", err.Error())
			return nil
		}
		log.DebugObj("dispatching request", "curl", cmd.String())
		return nil
	}
}

// restyLogger routes resty's internal log lines to Logger.
type restyLogger struct {
	log Logger
}

func (r restyLogger) Errorf(format string, v ...interface{}) {
	r.log.ErrorObj("resty error", "message", fmt.Sprintf(format, v...))
}

func (r restyLogger) Warnf(format string, v ...interface{}) {
	r.log.WarnObj("resty warning", "message", fmt.Sprintf(format, v...))
}

func (r restyLogger) Debugf(format string, v ...interface{}) {
	r.log.DebugObj("resty debug", "message", fmt.Sprintf(format, v...))
}
