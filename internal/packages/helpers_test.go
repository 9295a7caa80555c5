package packages

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"noderig/internal/message"
)

// recordingNode captures every envelope and answers with reply(env).
type recordingNode struct {
	mu        sync.Mutex
	envelopes []message.Envelope
	srv       *httptest.Server
}

func newRecordingNode(t *testing.T, reply func(env message.Envelope) (int, string)) *recordingNode {
	t.Helper()
	n := &recordingNode{}
	n.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var env message.Envelope
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&env))
		n.mu.Lock()
		n.envelopes = append(n.envelopes, env)
		n.mu.Unlock()

		status, body := reply(env)
		w.WriteHeader(status)
		w.Write(responseJSON(body))
	}))
	t.Cleanup(n.srv.Close)
	return n
}

func (n *recordingNode) port(t *testing.T) int {
	t.Helper()
	u, err := url.Parse(n.srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return port
}

func (n *recordingNode) received() []message.Envelope {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]message.Envelope(nil), n.envelopes...)
}

func responseJSON(body string) []byte {
	seq := make([]int, len(body))
	for i := 0; i < len(body); i++ {
		seq[i] = int(body[i])
	}
	data, _ := json.Marshal(map[string]any{"body": seq, "lazy_load_blob": nil})
	return data
}

func payload(t *testing.T, env message.Envelope) []byte {
	t.Helper()
	require.NotNil(t, env.Data)
	data, err := base64.StdEncoding.DecodeString(*env.Data)
	require.NoError(t, err)
	return data
}
