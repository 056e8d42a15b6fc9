package httpx

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
)

// maxPeekBytes bounds how much of a request body we buffer when peeking.
const maxPeekBytes = 1 << 20 // 1 MiB

// peekJSONField reads a top-level string field out of a JSON request body and
// restores the body so downstream handlers can decode it again.
func peekJSONField(r *http.Request, field string) string {
	if r.Body == nil {
		return ""
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxPeekBytes))
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(data))
	if err != nil {
		return ""
	}

	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return ""
	}

	var v string
	if raw, ok := m[field]; ok {
		_ = json.Unmarshal(raw, &v)
	}
	return v
}
