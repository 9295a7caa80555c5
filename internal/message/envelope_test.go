package message

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	dir := t.TempDir()
	payloadPath := filepath.Join(dir, "test.wasm")
	require.NoError(t, os.WriteFile(payloadPath, []byte{0x00, 0x61, 0x73, 0x6d}, 0644))

	tests := []struct {
		name     string
		req      Request
		wantErr  error
		wantData []byte
	}{
		{
			name: "no payload",
			req:  Request{Process: VFSProcess, Body: "{}"},
		},
		{
			name:     "inline bytes",
			req:      Request{Process: VFSProcess, Bytes: []byte("hello")},
			wantData: []byte("hello"),
		},
		{
			name:     "bytes from file",
			req:      Request{Process: VFSProcess, BytesPath: payloadPath},
			wantData: []byte{0x00, 0x61, 0x73, 0x6d},
		},
		{
			name:    "both payload sources",
			req:     Request{Process: VFSProcess, Bytes: []byte("x"), BytesPath: payloadPath},
			wantErr: ErrConflictingPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Build(tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, env)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, MIMEOctetStream, env.Mime)
			assert.False(t, env.Inherit)

			if tt.wantData == nil {
				assert.Nil(t, env.Data)
				return
			}
			require.NotNil(t, env.Data)
			decoded, err := base64.StdEncoding.DecodeString(*env.Data)
			require.NoError(t, err)
			assert.Equal(t, tt.wantData, decoded)
		})
	}
}

func TestBuildMissingFile(t *testing.T) {
	_, err := Build(Request{Process: VFSProcess, BytesPath: filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrConflictingPayload)
}

func TestEnvelopeJSONShape(t *testing.T) {
	env, err := Build(Request{
		Process:      "tester:tester:sys",
		Node:         "fake.dev",
		ResponseWait: 15 * time.Second,
		Body:         `{"Run":{}}`,
	})
	require.NoError(t, err)

	data, err := json.Marshal(env)
	require.NoError(t, err)

	var obj map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &obj))
	assert.Equal(t, "fake.dev", obj["node"])
	assert.Equal(t, "tester:tester:sys", obj["process"])
	assert.Equal(t, false, obj["inherit"])
	assert.Equal(t, float64(15), obj["expects_response"])
	assert.Equal(t, `{"Run":{}}`, obj["body"])
	assert.Equal(t, "application/octet-stream", obj["mime"])
	for _, key := range []string{"metadata", "context", "data"} {
		v, ok := obj[key]
		assert.True(t, ok, "key %s must be present", key)
		assert.Nil(t, v)
	}
}

func TestFireAndForgetEnvelope(t *testing.T) {
	env, err := Build(Request{Process: VFSProcess})
	require.NoError(t, err)
	assert.Nil(t, env.Node)
	assert.False(t, env.ExpectsReply())
}

func TestPayloadRoundTrip(t *testing.T) {
	original := make([]byte, 256)
	for i := range original {
		original[i] = byte(i)
	}

	env, err := Build(Request{Process: VFSProcess, Bytes: original})
	require.NoError(t, err)
	require.NotNil(t, env.Data)

	// A node echoing the payload returns the decoded bytes as the blob.
	raw, err := base64.StdEncoding.DecodeString(*env.Data)
	require.NoError(t, err)
	nums := make([]int, len(raw))
	for i, b := range raw {
		nums[i] = int(b)
	}
	content, err := json.Marshal(map[string]interface{}{
		"body":           []int{},
		"lazy_load_blob": map[string]interface{}{"bytes": nums},
	})
	require.NoError(t, err)

	resp, err := DecodeBytes(content)
	require.NoError(t, err)
	assert.Equal(t, original, resp.Blob)
}

func TestVFSBodies(t *testing.T) {
	assert.JSONEq(t, `{"path":"/tester:sys/pkg","action":"ReadDir"}`, ReadDir("/tester:sys/pkg"))
	assert.JSONEq(t, `{"path":"/tester:sys/tests/a.wasm","action":"Write"}`, Write("/tester:sys/tests/a.wasm"))
}
