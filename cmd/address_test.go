package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestAddress_Plain(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := runAddress([]string{"--addr", "127.0.0.1:1646"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if strings.TrimSpace(stdout.String()) != "http://127.0.0.1:1646" {
		t.Fatalf("unexpected output: %q", stdout.String())
	}
}

func TestAddress_QR(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := runAddress([]string{"--qr"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d (stderr: %s)", code, stderr.String())
	}
	out := stdout.String()
	if !strings.Contains(out, "SCAN TO CONNECT") {
		t.Fatalf("expected QR header, got: %s", out)
	}
	if !strings.Contains(out, "http://127.0.0.1:1646") {
		t.Fatalf("expected fallback URL, got: %s", out)
	}
}

func TestPortOf(t *testing.T) {
	if got := portOf("127.0.0.1:1646"); got != 1646 {
		t.Fatalf("expected 1646, got %d", got)
	}
	if got := portOf("0.0.0.0:9999"); got != 9999 {
		t.Fatalf("expected 9999, got %d", got)
	}
	// Malformed input falls back to the standard port.
	if got := portOf("garbage"); got != 1646 {
		t.Fatalf("expected fallback 1646, got %d", got)
	}
}
