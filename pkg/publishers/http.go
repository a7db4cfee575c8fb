package publishers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/samvad-hq/samvad-fetcher/internal/logger"
	"github.com/samvad-hq/samvad-fetcher/pkg/httpclient"
)

const maxErrorBody = 512

// httpPublisher sends each event as a JSON body. Event attributes travel
// as X-Fetch-* headers so receivers can route without decoding the body.
type httpPublisher struct {
	id     string
	method string
	url    string
	client *resty.Client
	log    logger.Logger
}

func newHTTPPublisher(_ context.Context, cfg Config, log logger.Logger) (Publisher, error) {
	if cfg.HTTP == nil {
		return nil, fmt.Errorf("publisher %q missing http configuration", cfg.ID)
	}
	log = logger.OrNop(log)

	client := httpclient.New(httpclient.Options{
		Timeout:         cfg.HTTP.Timeout(),
		FollowRedirects: true,
		Logger:          log,
	})
	client.SetHeaders(cfg.HTTP.Headers)
	client.SetHeader("Content-Type", "application/json")

	return &httpPublisher{
		id:     cfg.ID,
		method: cfg.HTTP.Method,
		url:    cfg.HTTP.URL,
		client: client,
		log:    log,
	}, nil
}

func (h *httpPublisher) ID() string   { return h.id }
func (h *httpPublisher) Type() string { return TypeHTTP }

func (h *httpPublisher) Publish(ctx context.Context, evt Event) error {
	req := h.client.R().SetContext(ctx).SetBody(evt)
	for k, v := range evt.attributes() {
		req.SetHeader(attributeHeader(k), v)
	}

	resp, err := req.Execute(h.method, h.url)
	if err != nil {
		return fmt.Errorf("deliver event: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("sink answered %d: %s", resp.StatusCode(), errorBody(resp.Body()))
	}

	h.log.DebugObj("http publisher delivered event", "publisher_http_delivery", map[string]any{
		"publisher_id": h.id,
		"target_id":    evt.TargetID,
		"status":       resp.StatusCode(),
	})
	return nil
}

// attributeHeader maps "target_id" to "X-Fetch-Target-Id".
func attributeHeader(name string) string {
	return "X-Fetch-" + http.CanonicalHeaderKey(strings.ReplaceAll(name, "_", "-"))
}

func errorBody(body []byte) string {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return strings.TrimSpace(string(body))
}
