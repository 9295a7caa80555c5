package message

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"unicode/utf8"
)

// StatusError is returned when a node answers with a non-200 status.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("failed with status code: %d", e.StatusCode)
}

// Response is a decoded response envelope.
type Response struct {
	// Body is the UTF-8 body text.
	Body string
	// Blob holds the lazy-load blob bytes; nil when the response had none.
	Blob []byte
	// BlobText is a best-effort rendering of Blob for display: the blob is
	// treated as base64 text and the decoded bytes as UTF-8. Nil when
	// either step fails.
	BlobText *string
}

func (r *Response) String() string {
	if r.BlobText != nil {
		return fmt.Sprintf("Response:\nbody: %s\nblob: %s", r.Body, *r.BlobText)
	}
	return fmt.Sprintf("Response:\nbody: %s\nblob: %v", r.Body, r.Blob)
}

// byteSeq decodes a JSON array of integers in [0, 255].
type byteSeq []byte

func (b *byteSeq) UnmarshalJSON(data []byte) error {
	var nums []int
	if err := json.Unmarshal(data, &nums); err != nil {
		return fmt.Errorf("expected a byte sequence: %w", err)
	}
	if nums == nil {
		return fmt.Errorf("expected a byte sequence, got null")
	}
	out := make([]byte, len(nums))
	for i, n := range nums {
		if n < 0 || n > 255 {
			return fmt.Errorf("byte sequence element %d out of range: %d", i, n)
		}
		out[i] = byte(n)
	}
	*b = out
	return nil
}

// lazyLoadBlob accepts exactly two shapes: a direct byte sequence or an
// object with a "bytes" byte sequence.
type lazyLoadBlob struct {
	bytes []byte
}

func (l *lazyLoadBlob) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("empty lazy_load_blob")
	}
	switch trimmed[0] {
	case '[':
		var seq byteSeq
		if err := json.Unmarshal(trimmed, &seq); err != nil {
			return fmt.Errorf("unexpected lazy_load_blob format: %w", err)
		}
		l.bytes = seq
		return nil
	case '{':
		var obj struct {
			Bytes *byteSeq `json:"bytes"`
		}
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return fmt.Errorf("unexpected lazy_load_blob format: %w", err)
		}
		if obj.Bytes == nil {
			return fmt.Errorf("lazy_load_blob object has no bytes field")
		}
		l.bytes = *obj.Bytes
		return nil
	default:
		return fmt.Errorf("unexpected lazy_load_blob format: %s", string(trimmed))
	}
}

type wireResponse struct {
	Body         json.RawMessage `json:"body"`
	LazyLoadBlob *lazyLoadBlob   `json:"lazy_load_blob"`
}

// Decode validates the status of resp and decodes its body. The response
// body is always closed.
func Decode(resp *http.Response) (*Response, error) {
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return DecodeBytes(content)
}

// DecodeBytes decodes a response envelope from its raw JSON.
func DecodeBytes(content []byte) (*Response, error) {
	var wire wireResponse
	if err := json.Unmarshal(content, &wire); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(wire.Body) == 0 {
		return nil, fmt.Errorf("response did not contain `body` field")
	}
	var body byteSeq
	if err := json.Unmarshal(wire.Body, &body); err != nil {
		return nil, fmt.Errorf("response `body` was not bytes: %w", err)
	}
	if !utf8.Valid(body) {
		return nil, fmt.Errorf("response `body` is not valid UTF-8")
	}

	out := &Response{Body: string(body)}
	if wire.LazyLoadBlob != nil {
		out.Blob = wire.LazyLoadBlob.bytes
		if decoded, err := base64.StdEncoding.DecodeString(string(out.Blob)); err == nil && utf8.Valid(decoded) {
			text := string(decoded)
			out.BlobText = &text
		}
	}
	return out, nil
}
