package adaptor

import "strings"

// Arguments configures how a fetched page is parsed. Unknown keys are kept
// untouched so callers can carry their own settings along with a response.
type Arguments map[string]any

const (
	// ArgKeepComments keeps HTML comment nodes in the parsed document (default false).
	ArgKeepComments = "keep_comments"
	// ArgBaseURL overrides the URL relative links are resolved against.
	ArgBaseURL = "base_url"
)

// Clone returns a shallow copy; nil stays nil.
func (a Arguments) Clone() Arguments {
	if a == nil {
		return nil
	}
	out := make(Arguments, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// String returns the trimmed string value for key or fallback.
func (a Arguments) String(key, fallback string) string {
	if raw, ok := a[key]; ok {
		if val, ok := raw.(string); ok {
			if trimmed := strings.TrimSpace(val); trimmed != "" {
				return trimmed
			}
		}
	}
	return fallback
}

// Bool returns the boolean value for key or fallback.
func (a Arguments) Bool(key string, fallback bool) bool {
	switch v := a[key].(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return fallback
}
