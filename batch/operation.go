package batch

import (
	"net/url"
	"sort"
	"strings"
)

// MaxOperationsPerBatch is the Graph API cap for one batch request.
const MaxOperationsPerBatch = 50

// Operation is one entry of an "adbatch" array.
type Operation struct {
	Method      string `json:"method"`
	RelativeURL string `json:"relative_url"`
	Body        string `json:"body,omitempty"`
	Name        string `json:"name,omitempty"`
}

// BuildOperation form-encodes body with keys in sorted order.
func BuildOperation(method, relativeURL string, body map[string]string) Operation {
	return Operation{
		Method:      strings.ToUpper(method),
		RelativeURL: strings.TrimPrefix(relativeURL, "/"),
		Body:        encodeBody(body),
	}
}

// Named returns a copy of op carrying a request name, used to match results back to sources.
func (op Operation) Named(name string) Operation {
	op.Name = name
	return op
}

func encodeBody(body map[string]string) string {
	if len(body) == 0 {
		return ""
	}
	keys := make([]string, 0, len(body))
	for k := range body {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(k))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(body[k]))
	}
	return sb.String()
}

// Chunk splits items into consecutive slices of at most max elements.
// A max below 1 is treated as 1.
func Chunk[T any](items []T, max int) [][]T {
	if max < 1 {
		max = 1
	}
	if len(items) == 0 {
		return nil
	}

	chunks := make([][]T, 0, (len(items)+max-1)/max)
	for start := 0; start < len(items); start += max {
		end := start + max
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end:end])
	}
	return chunks
}

// ClampChunkSize keeps a configured chunk size within [1, MaxOperationsPerBatch].
func ClampChunkSize(size int) int {
	if size < 1 {
		return 1
	}
	if size > MaxOperationsPerBatch {
		return MaxOperationsPerBatch
	}
	return size
}
