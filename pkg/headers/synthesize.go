package headers

import "strings"

// Package headers builds the request headers a fetch is dispatched with.

const (
	HeaderUserAgent = "User-Agent"
	HeaderReferer   = "Referer"
)

// Generator produces realistic browser header values.
type Generator interface {
	UserAgent() string
	BrowserHeaders() map[string]string
	Referer(target string) string
}

// Logger is the logging surface the synthesizer reports substitutions on.
type Logger interface {
	InfoObj(msg, key string, obj interface{})
}

type noopLogger struct{}

func (noopLogger) InfoObj(string, string, interface{}) {}

// Synthesizer fills in user agent, stealth headers and referer for outgoing requests.
type Synthesizer struct {
	gen Generator
	log Logger
}

// NewSynthesizer wires a synthesizer; nil arguments fall back to defaults.
func NewSynthesizer(gen Generator, log Logger) *Synthesizer {
	if gen == nil {
		gen = DefaultGenerator()
	}
	if log == nil {
		log = noopLogger{}
	}
	return &Synthesizer{gen: gen, log: log}
}

// Synthesize returns a copy of headers with a guaranteed User-Agent and, when
// stealth is set, browser headers plus a search engine referer for target.
func (s *Synthesizer) Synthesize(headers map[string]string, target string, stealth bool) map[string]string {
	out := make(map[string]string, len(headers)+16)
	for k, v := range headers {
		out[k] = v
	}

	if Get(out, HeaderUserAgent) == "" {
		ua := s.gen.UserAgent()
		Set(out, HeaderUserAgent, ua)
		s.log.InfoObj("user agent missing; generated one", "header_substitution", map[string]any{
			"url":        target,
			"user_agent": ua,
		})
	}

	if stealth {
		for k, v := range s.gen.BrowserHeaders() {
			Set(out, k, v)
		}
		Set(out, HeaderReferer, s.gen.Referer(target))
	}

	return out
}

// Get returns the value stored under key, matching case-insensitively.
func Get(headers map[string]string, key string) string {
	if v, ok := headers[key]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// Set stores value under key after dropping every case variant of key.
func Set(headers map[string]string, key, value string) {
	for k := range headers {
		if strings.EqualFold(k, key) {
			delete(headers, k)
		}
	}
	headers[key] = value
}
