package domain

import "time"

// Domain contains the records produced by a fetch pass.

// Snapshot summarizes one fetched target.
type Snapshot struct {
	TargetID      string            `json:"target_id"`
	TargetName    string            `json:"target_name"`
	Method        string            `json:"method"`
	RequestedURL  string            `json:"requested_url"`
	FinalURL      string            `json:"final_url"`
	Status        int               `json:"status"`
	Reason        string            `json:"reason"`
	Encoding      string            `json:"encoding"`
	ContentType   string            `json:"content_type,omitempty"`
	ContentLength int               `json:"content_length"`
	Headers       map[string]string `json:"headers,omitempty"`
	Page          *Page             `json:"page,omitempty"`
	Fingerprint   string            `json:"fingerprint"`
	FetchedAt     time.Time         `json:"fetched_at"`
}

// Page holds what was read out of an HTML body.
type Page struct {
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	ImageURL    string   `json:"image_url,omitempty"`
	Links       []string `json:"links,omitempty"`
}
