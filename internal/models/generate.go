package models

// GenerateRequest is the body of a generation call, both on the relay's
// public endpoint and on the upstream runtime endpoint it forwards to. The
// two share one shape on purpose; the relay never rewrites it.
type GenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`

	// Stream is a pointer so an omitted field can be told apart from an
	// explicit false. The upstream runtime treats an omitted flag as true,
	// and the relay follows that convention.
	Stream *bool `json:"stream,omitempty"`
}

// Streaming reports the effective streaming mode of the request.
func (r GenerateRequest) Streaming() bool {
	return r.Stream == nil || *r.Stream
}

// Fragment is one newline-delimited JSON object within a streamed generation
// response. A fragment carries at most one text increment. Fragments are
// transient: decoded, appended to the accumulator, and discarded.
type Fragment struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// GenerateError is the synchronous error payload the relay returns when the
// upstream runtime is unreachable or rejects a request.
type GenerateError struct {
	Error string `json:"error"`
}
