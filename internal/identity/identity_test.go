package identity

import (
	"net/http/httptest"
	"testing"
)

func TestResolveUsesTokenVerbatim(t *testing.T) {
	if got := Resolve("abc123", "10.0.0.1"); got != "abc123" {
		t.Errorf("Resolve = %q, want token verbatim", got)
	}
}

func TestResolveDigestIsDeterministic(t *testing.T) {
	a := Resolve("", "203.0.113.7")
	b := Resolve("", "203.0.113.7")
	if a != b {
		t.Errorf("same origin produced different keys: %q vs %q", a, b)
	}
	if len(a) != digestLen {
		t.Errorf("key length = %d, want %d", len(a), digestLen)
	}
	if c := Resolve("", "203.0.113.8"); c == a {
		t.Error("different origins produced the same key")
	}
}

func TestResolveEmptyOrigin(t *testing.T) {
	if Resolve("", "") == "" {
		t.Error("empty inputs must still yield a stable key")
	}
}

func TestFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.0.2.10:51234"
	ipKey := FromRequest(r)
	if ipKey != Resolve("", "192.0.2.10") {
		t.Errorf("FromRequest = %q, want digest of remote IP", ipKey)
	}

	r.Header.Set(HeaderFingerprint, "fp-device-1")
	if got := FromRequest(r); got != "fp-device-1" {
		t.Errorf("FromRequest = %q, want header token", got)
	}
}

func TestClientIPForwardedFor(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.0.2.10:51234"
	r.Header.Set("X-Forwarded-For", "198.51.100.4, 10.0.0.1")
	if got := ClientIP(r); got != "198.51.100.4" {
		t.Errorf("ClientIP = %q, want first forwarded hop", got)
	}
}
