package gateway

import (
	"context"
	"net"
	"net/http"
	"os"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeHeaders(t *testing.T) {
	src := http.Header{}
	src.Set("Content-Type", "application/json")
	src.Set("Content-Encoding", "br")
	src.Set("Content-Length", "42")
	src.Set("Transfer-Encoding", "chunked")
	src.Set("Connection", "keep-alive")
	src.Add("Set-Cookie", "a=1")
	src.Add("Set-Cookie", "b=2")

	dst := http.Header{}
	sanitizeHeaders(dst, src)

	assert.Equal(t, "application/json", dst.Get("Content-Type"))
	assert.Equal(t, []string{"a=1", "b=2"}, dst.Values("Set-Cookie"))
	for _, h := range []string{"Content-Encoding", "Content-Length", "Transfer-Encoding", "Connection"} {
		assert.Empty(t, dst.Get(h), h)
	}
}

func TestCopyForwardHeaders(t *testing.T) {
	src := http.Header{}
	src.Set("Content-Type", "text/plain")
	src.Set("Authorization", "Basic Zm9vOmJhcg==")
	src.Set("User-Agent", "wizard")

	dst := http.Header{}
	copyForwardHeaders(dst, src)

	assert.Len(t, dst, 2)
	assert.Equal(t, "text/plain", dst.Get("Content-Type"))
	assert.Equal(t, "Basic Zm9vOmJhcg==", dst.Get("Authorization"))
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", preview([]byte("short"), 2000))
	assert.Equal(t, "abc", preview([]byte("abcdef"), 3))
	assert.Equal(t, "héé", preview([]byte("héééé"), 3))
	assert.Len(t, preview([]byte(strings.Repeat("y", 2500)), 2000), 2000)
}

func TestParseAbsolute(t *testing.T) {
	tests := map[string]bool{
		"https://engine.example.com/webhook-waiting/7": true,
		"http://localhost:5678/x":                      true,
		"not-a-url":                                    false,
		"//engine.example.com/x":                       false,
		"file:///etc/passwd":                           false,
		"javascript:alert(1)":                          false,
	}
	for raw, want := range tests {
		_, ok := parseAbsolute(raw)
		assert.Equal(t, want, ok, raw)
	}
}

func TestClassifyNetError_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = net.Dial("tcp", addr)
	require.Error(t, err)

	d := ClassifyNetError(err)
	_, port, _ := net.SplitHostPort(addr)
	assert.Equal(t, "ECONNREFUSED", d.Code)
	assert.Equal(t, int(syscall.ECONNREFUSED), d.Errno)
	assert.Equal(t, "connect", d.Syscall)
	assert.Equal(t, "127.0.0.1", d.Address)
	assert.Equal(t, port, d.Port)
	assert.False(t, d.Timeout)
}

func TestClassifyNetError_DNS(t *testing.T) {
	d := ClassifyNetError(&net.OpError{Op: "dial", Net: "tcp", Err: &net.DNSError{
		Err: "no such host", Name: "engine.invalid", IsNotFound: true,
	}})
	assert.Equal(t, "ENOTFOUND", d.Code)
	assert.Equal(t, "getaddrinfo", d.Syscall)
	assert.Equal(t, "engine.invalid", d.Address)

	d = ClassifyNetError(&net.DNSError{Err: "server misbehaving", Name: "engine.example.com", IsTemporary: true})
	assert.Equal(t, "EAI_AGAIN", d.Code)
}

func TestClassifyNetError_Timeout(t *testing.T) {
	d := ClassifyNetError(context.DeadlineExceeded)
	assert.True(t, d.Timeout)
	assert.Equal(t, "ETIMEDOUT", d.Code)

	d = ClassifyNetError(&net.OpError{Op: "read", Net: "tcp", Err: os.NewSyscallError("read", syscall.ECONNRESET)})
	assert.Equal(t, "ECONNRESET", d.Code)
	assert.Equal(t, "read", d.Syscall)
}

func TestNetDiagnostics_Fields(t *testing.T) {
	fields := NetDiagnostics{Code: "ECONNREFUSED", Errno: 111, Syscall: "connect", Address: "10.0.0.1", Port: "443"}.Fields()
	keys := make([]string, 0, len(fields))
	for _, f := range fields {
		keys = append(keys, f.Key)
	}
	assert.Equal(t, []string{"code", "errno", "syscall", "address", "port", "timeout"}, keys)

	assert.Len(t, NetDiagnostics{}.Fields(), 1)
}
