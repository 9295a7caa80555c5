package message

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"time"
)

// MIMEOctetStream is the fixed MIME marker carried by every request.
const MIMEOctetStream = "application/octet-stream"

// ErrConflictingPayload is returned by Build when a request carries both
// inline bytes and a bytes file path.
var ErrConflictingPayload = errors.New("cannot accept both inline bytes and a bytes file path")

// Request describes a message to inject into a node.
type Request struct {
	// Process is the target process identifier, e.g. "vfs:distro:sys".
	Process string
	// Node is the target node name; empty means the local node.
	Node string
	// ResponseWait is how long the node waits for the target's response.
	// Zero sends the message fire-and-forget.
	ResponseWait time.Duration
	// Body is the opaque message body.
	Body string
	// Bytes is an inline binary payload.
	Bytes []byte
	// BytesPath names a file whose contents become the binary payload.
	BytesPath string
}

// Envelope is the JSON request object accepted by the node.
type Envelope struct {
	Node            *string `json:"node"`
	Process         string  `json:"process"`
	Inherit         bool    `json:"inherit"`
	ExpectsResponse *uint64 `json:"expects_response"`
	Body            string  `json:"body"`
	Metadata        *string `json:"metadata"`
	Context         *string `json:"context"`
	Mime            string  `json:"mime"`
	Data            *string `json:"data"`
}

// ExpectsReply reports whether the envelope asks the node for a response.
func (e *Envelope) ExpectsReply() bool {
	return e.ExpectsResponse != nil
}

// Build constructs the request envelope for req. When req.BytesPath is set
// the whole file is read into memory first.
func Build(req Request) (*Envelope, error) {
	var payload []byte
	switch {
	case req.Bytes != nil && req.BytesPath != "":
		return nil, ErrConflictingPayload
	case req.Bytes != nil:
		payload = req.Bytes
	case req.BytesPath != "":
		data, err := os.ReadFile(req.BytesPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read payload file %s: %w", req.BytesPath, err)
		}
		payload = data
	}

	env := &Envelope{
		Process: req.Process,
		Body:    req.Body,
		Mime:    MIMEOctetStream,
	}
	if req.Node != "" {
		node := req.Node
		env.Node = &node
	}
	if req.ResponseWait > 0 {
		secs := uint64(req.ResponseWait / time.Second)
		env.ExpectsResponse = &secs
	}
	if payload != nil {
		data := base64.StdEncoding.EncodeToString(payload)
		env.Data = &data
	}

	return env, nil
}
