package publishers

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-fetcher/internal/config"
)

// Sink types accepted in the publishers file.
const (
	TypeHTTP   = "http"
	TypeSQS    = "sqs"
	TypeSNS    = "sns"
	TypePubSub = "pubsub"
)

const (
	defaultHTTPMethod  = http.MethodPost
	defaultHTTPTimeout = 5 * time.Second
)

// Config declares one sink. Only the block named by Type is read.
type Config struct {
	ID      string        `json:"id" yaml:"id"`
	Type    string        `json:"type" yaml:"type"`
	Enabled *bool         `json:"enabled" yaml:"enabled"`
	HTTP    *HTTPConfig   `json:"http" yaml:"http"`
	SQS     *SQSConfig    `json:"sqs" yaml:"sqs"`
	SNS     *SNSConfig    `json:"sns" yaml:"sns"`
	PubSub  *PubSubConfig `json:"pubsub" yaml:"pubsub"`
}

// HTTPConfig posts every event as JSON to URL.
type HTTPConfig struct {
	URL            string            `json:"url" yaml:"url"`
	Method         string            `json:"method" yaml:"method"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	TimeoutSeconds float64           `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// SQSConfig sends every event to a queue.
type SQSConfig struct {
	QueueURL string `json:"uri" yaml:"uri"`
	AWSAuth  `yaml:",inline"`
}

// SNSConfig publishes every event to a topic.
type SNSConfig struct {
	TopicARN string `json:"topic_arn" yaml:"topic_arn"`
	AWSAuth  `yaml:",inline"`
}

// PubSubConfig publishes every event to a Google Cloud Pub/Sub topic.
type PubSubConfig struct {
	ProjectID       string `json:"project_id" yaml:"project_id"`
	Topic           string `json:"topic" yaml:"topic"`
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`
	Endpoint        string `json:"endpoint" yaml:"endpoint"`
}

// sinkSettings is implemented by every per-type block.
type sinkSettings interface {
	normalize()
	validate() error
}

type configFile struct {
	Publishers []Config `json:"publishers" yaml:"publishers"`
}

// Load reads the publishers file and returns the enabled sinks in file
// order. Disabled entries must still be valid.
func Load(path string) ([]Config, error) {
	file, err := config.DecodeFile[configFile](path, "publishers")
	if err != nil {
		return nil, err
	}
	if len(file.Publishers) == 0 {
		return nil, errors.New("publishers file contains no publishers entries")
	}

	ids := make(map[string]struct{}, len(file.Publishers))
	enabled := make([]Config, 0, len(file.Publishers))
	for i, entry := range file.Publishers {
		cfg, err := entry.normalized()
		if err != nil {
			return nil, fmt.Errorf("publishers[%d]: %w", i, err)
		}
		if _, dup := ids[cfg.ID]; dup {
			return nil, fmt.Errorf("duplicate publisher id %q", cfg.ID)
		}
		ids[cfg.ID] = struct{}{}
		if cfg.IsEnabled() {
			enabled = append(enabled, cfg)
		}
	}
	return enabled, nil
}

// IsEnabled reports the enabled flag, which defaults to true.
func (c Config) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// normalized returns a trimmed, defaulted and validated copy of c. The
// blocks of other types are dropped.
func (c Config) normalized() (Config, error) {
	c.ID = strings.TrimSpace(c.ID)
	c.Type = strings.ToLower(strings.TrimSpace(c.Type))
	if c.ID == "" {
		return c, errors.New("id is required")
	}
	if c.Type == "" {
		return c, fmt.Errorf("publisher %q: type is required", c.ID)
	}

	settings, err := c.selectBlock()
	if err != nil {
		return c, fmt.Errorf("publisher %q: %w", c.ID, err)
	}
	settings.normalize()
	if err := settings.validate(); err != nil {
		return c, fmt.Errorf("publisher %q: %w", c.ID, err)
	}
	return c, nil
}

// selectBlock keeps a private copy of the block matching c.Type and
// clears the rest.
func (c *Config) selectBlock() (sinkSettings, error) {
	httpCfg, sqsCfg, snsCfg, pubsubCfg := c.HTTP, c.SQS, c.SNS, c.PubSub
	c.HTTP, c.SQS, c.SNS, c.PubSub = nil, nil, nil, nil

	switch c.Type {
	case TypeHTTP:
		if httpCfg != nil {
			cp := *httpCfg
			c.HTTP = &cp
			return c.HTTP, nil
		}
	case TypeSQS:
		if sqsCfg != nil {
			cp := *sqsCfg
			c.SQS = &cp
			return c.SQS, nil
		}
	case TypeSNS:
		if snsCfg != nil {
			cp := *snsCfg
			c.SNS = &cp
			return c.SNS, nil
		}
	case TypePubSub:
		if pubsubCfg != nil {
			cp := *pubsubCfg
			c.PubSub = &cp
			return c.PubSub, nil
		}
	default:
		return nil, fmt.Errorf("unknown type %q", c.Type)
	}
	return nil, fmt.Errorf("%s block is required", c.Type)
}

func (h *HTTPConfig) normalize() {
	h.URL = strings.TrimSpace(h.URL)
	h.Method = strings.ToUpper(strings.TrimSpace(h.Method))
	if h.Method == "" {
		h.Method = defaultHTTPMethod
	}
	h.Headers = cleanHeaders(h.Headers)
}

func (h *HTTPConfig) validate() error {
	if h.URL == "" {
		return errors.New("http.url is required")
	}
	u, err := url.Parse(h.URL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("http.url %q is not an absolute http(s) url", h.URL)
	}
	if h.TimeoutSeconds < 0 {
		return errors.New("http.timeout_seconds must not be negative")
	}
	return nil
}

// Timeout converts TimeoutSeconds, falling back to five seconds.
func (h HTTPConfig) Timeout() time.Duration {
	if h.TimeoutSeconds <= 0 {
		return defaultHTTPTimeout
	}
	return time.Duration(h.TimeoutSeconds * float64(time.Second))
}

func (s *SQSConfig) normalize() {
	s.QueueURL = strings.TrimSpace(s.QueueURL)
	s.AWSAuth = s.AWSAuth.trimmed()
}

func (s *SQSConfig) validate() error {
	if s.QueueURL == "" {
		return errors.New("sqs.uri is required")
	}
	return s.AWSAuth.check(TypeSQS)
}

func (s *SNSConfig) normalize() {
	s.TopicARN = strings.TrimSpace(s.TopicARN)
	s.AWSAuth = s.AWSAuth.trimmed()
}

func (s *SNSConfig) validate() error {
	if !strings.HasPrefix(s.TopicARN, "arn:") {
		return fmt.Errorf("sns.topic_arn %q is not an arn", s.TopicARN)
	}
	return s.AWSAuth.check(TypeSNS)
}

func (p *PubSubConfig) normalize() {
	p.ProjectID = strings.TrimSpace(p.ProjectID)
	p.Topic = strings.TrimSpace(p.Topic)
	p.CredentialsFile = strings.TrimSpace(p.CredentialsFile)
	p.Endpoint = strings.TrimSpace(p.Endpoint)
}

func (p *PubSubConfig) validate() error {
	if p.ProjectID == "" || p.Topic == "" {
		return errors.New("pubsub.project_id and pubsub.topic are required")
	}
	return nil
}

// cleanHeaders drops entries whose name or value is blank.
func cleanHeaders(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k != "" && v != "" {
			out[http.CanonicalHeaderKey(k)] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
