package server

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mv82/webpool/internal/logger"
)

const (
	helloBody    = "<!DOCTYPE html><html><body><h1>Hello!</h1></body></html>"
	notFoundBody = "<!DOCTYPE html><html><body><h1>Oops!</h1></body></html>"
)

// writePages writes the two page files into a temp dir and returns their paths
func writePages(t *testing.T) (successPage, notFoundPage string) {
	t.Helper()
	dir := t.TempDir()
	successPage = filepath.Join(dir, "hello.html")
	notFoundPage = filepath.Join(dir, "404.html")
	require.NoError(t, os.WriteFile(successPage, []byte(helloBody), 0o644))
	require.NoError(t, os.WriteFile(notFoundPage, []byte(notFoundBody), 0o644))
	return successPage, notFoundPage
}

func testLogger() *logger.Logger {
	return logger.New(io.Discard, logger.LevelError)
}

// serve runs the handler against an in-memory connection and returns whatever
// the client receives. An empty request simulates a connection that dies
// before sending anything.
func serve(t *testing.T, h *Handler, request string) string {
	t.Helper()

	client, server := net.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Handle(server)
	}()

	if request == "" {
		client.Close()
	} else {
		_, err := client.Write([]byte(request))
		require.NoError(t, err)
	}

	resp, _ := io.ReadAll(client)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not finish")
	}
	client.Close()

	return string(resp)
}

func response(status, body string) string {
	return fmt.Sprintf("%s\r\nContent-Length: %d\r\n\r\n%s", status, len(body), body)
}

func TestHandler_RequestLineMatching(t *testing.T) {
	successPage, notFoundPage := writePages(t)
	h := NewHandler(successPage, notFoundPage, testLogger())

	tests := []struct {
		name    string
		request string
		want    string
	}{
		{
			name:    "exact root request",
			request: "GET / HTTP/1.1\r\nHost: localhost\r\n\r\n",
			want:    response(statusOK, helloBody),
		},
		{
			name:    "bare newline request line",
			request: "GET / HTTP/1.1\n",
			want:    response(statusOK, helloBody),
		},
		{
			name:    "other path",
			request: "GET /about HTTP/1.1\r\n\r\n",
			want:    response(statusNotFound, notFoundBody),
		},
		{
			name:    "other method",
			request: "POST / HTTP/1.1\r\n\r\n",
			want:    response(statusNotFound, notFoundBody),
		},
		{
			name:    "other protocol version",
			request: "GET / HTTP/1.0\r\n\r\n",
			want:    response(statusNotFound, notFoundBody),
		},
		{
			name:    "empty request line",
			request: "\r\n",
			want:    response(statusNotFound, notFoundBody),
		},
		{
			name:    "garbage",
			request: "not http at all\r\n",
			want:    response(statusNotFound, notFoundBody),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := serve(t, h, tt.request)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHandler_DeadConnectionGetsNoResponse(t *testing.T) {
	successPage, notFoundPage := writePages(t)
	h := NewHandler(successPage, notFoundPage, testLogger())

	got := serve(t, h, "")
	assert.Empty(t, got)
}

func TestHandler_MissingPageFallback(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	log := logger.New(&buf, logger.LevelWarn)

	// neither page file exists
	h := NewHandler(filepath.Join(dir, "hello.html"), filepath.Join(dir, "404.html"), log)

	got := serve(t, h, "GET / HTTP/1.1\r\n\r\n")
	assert.Equal(t, response(statusOK, missingPageBody), got)

	got = serve(t, h, "GET /missing HTTP/1.1\r\n\r\n")
	assert.Equal(t, response(statusNotFound, missingPageBody), got)

	assert.Contains(t, buf.String(), "failed to read page")
}

func TestHandler_ReadsPagePerRequest(t *testing.T) {
	successPage, notFoundPage := writePages(t)
	h := NewHandler(successPage, notFoundPage, testLogger())

	got := serve(t, h, "GET / HTTP/1.1\r\n\r\n")
	assert.Equal(t, response(statusOK, helloBody), got)

	// page edits are visible without restarting anything
	updated := "<h1>Updated</h1>"
	require.NoError(t, os.WriteFile(successPage, []byte(updated), 0o644))

	got = serve(t, h, "GET / HTTP/1.1\r\n\r\n")
	assert.Equal(t, response(statusOK, updated), got)
}
