package targets

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/samvad-hq/samvad-fetcher/internal/config"
	"github.com/samvad-hq/samvad-fetcher/pkg/fetcher"
)

// Package targets loads the list of URLs to fetch from a YAML or JSON file.

// Target is one request the collector sends on every pass.
type Target struct {
	ID             string            `json:"id" yaml:"id"`
	Name           string            `json:"name" yaml:"name"`
	Method         string            `json:"method" yaml:"method"`
	URL            string            `json:"url" yaml:"url"`
	Stealth        *bool             `json:"stealth" yaml:"stealth"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	Params         map[string]string `json:"params" yaml:"params"`
	Body           string            `json:"body" yaml:"body"`
	Proxy          string            `json:"proxy" yaml:"proxy"`
	RequestDelayMs int               `json:"request_delay_ms" yaml:"request_delay_ms"`
}

type registry struct {
	Targets []Target `json:"targets" yaml:"targets"`
}

var (
	regMu                 sync.RWMutex
	currentReg            registry
	targetsIdx            map[string]Target
	defaultRequestDelayMs = 500
)

// All returns a copy of the currently loaded targets.
func All() []Target {
	regMu.RLock()
	defer regMu.RUnlock()

	if len(currentReg.Targets) == 0 {
		return nil
	}

	out := make([]Target, len(currentReg.Targets))
	copy(out, currentReg.Targets)
	return out
}

// ByID returns the target with the given id, if loaded.
func ByID(id string) (Target, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Target{}, false
	}

	regMu.RLock()
	defer regMu.RUnlock()

	if targetsIdx == nil {
		return Target{}, false
	}

	t, ok := targetsIdx[id]
	return t, ok
}

// Load replaces the registry with the targets found in path.
func Load(path string) error {
	reg, err := config.DecodeFile[registry](path, "targets")
	if err != nil {
		return err
	}

	if len(reg.Targets) == 0 {
		return errors.New("targets file contains no targets entries")
	}

	idx := make(map[string]Target, len(reg.Targets))
	for i := range reg.Targets {
		t := sanitizeTarget(reg.Targets[i])
		if err := validateTarget(t); err != nil {
			return fmt.Errorf("target[%d]: %w", i, err)
		}
		if _, exists := idx[t.ID]; exists {
			return fmt.Errorf("duplicate target id %q", t.ID)
		}
		reg.Targets[i] = t
		idx[t.ID] = t
	}

	regMu.Lock()
	currentReg = reg
	targetsIdx = idx
	regMu.Unlock()

	return nil
}

func sanitizeTarget(t Target) Target {
	t.ID = strings.TrimSpace(t.ID)
	t.Name = strings.TrimSpace(t.Name)
	t.Method = strings.ToUpper(strings.TrimSpace(t.Method))
	t.URL = strings.TrimSpace(t.URL)
	t.Proxy = strings.TrimSpace(t.Proxy)

	if t.Method == "" {
		t.Method = http.MethodGet
	}
	if t.Name == "" {
		t.Name = t.ID
	}
	if t.RequestDelayMs <= 0 {
		t.RequestDelayMs = defaultRequestDelayMs
	}

	return t
}

func validateTarget(t Target) error {
	if t.ID == "" {
		return errors.New("id is required")
	}
	if t.URL == "" {
		return fmt.Errorf("url is required for target %q", t.ID)
	}
	u, err := url.Parse(t.URL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("url %q is not an absolute http(s) url for target %q", t.URL, t.ID)
	}
	if !fetcher.SupportedMethod(t.Method) {
		return fmt.Errorf("method %q is not supported for target %q", t.Method, t.ID)
	}
	return nil
}

// RequestDelay returns the pause taken before fetching the target.
func (t Target) RequestDelay() time.Duration {
	if t.RequestDelayMs <= 0 {
		return time.Duration(defaultRequestDelayMs) * time.Millisecond
	}
	return time.Duration(t.RequestDelayMs) * time.Millisecond
}

// Options converts the target into per-request fetcher options.
func (t Target) Options() fetcher.RequestOptions {
	opts := fetcher.RequestOptions{
		Stealth: t.Stealth,
		Headers: cloneMap(t.Headers),
		Params:  cloneMap(t.Params),
		Proxy:   t.Proxy,
	}
	if t.Body != "" {
		opts.Body = t.Body
	}
	return opts
}

// Fingerprint identifies what the target sends, so an edited target is
// fetched again even when its id is unchanged.
func (t Target) Fingerprint() string {
	h := sha1.New()
	h.Write([]byte(t.Method))
	h.Write([]byte{0})
	h.Write([]byte(t.URL))
	h.Write([]byte{0})
	h.Write([]byte(t.Body))
	return hex.EncodeToString(h.Sum(nil))
}

func cloneMap(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
