package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"testing"
)

const (
	testSecret   = "super-secret-app-key"
	testIdentity = "CN=edge-proxy.petfolio.internal"
	identityHdr  = "X-Client-Cert-Subject"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func authedHeaders(body []byte) http.Header {
	h := http.Header{}
	h.Set(identityHdr, testIdentity)
	h.Set(SignatureHeader, sign(testSecret, body))
	return h
}

func TestAuthenticateValid(t *testing.T) {
	a := NewAuthenticator(testSecret, identityHdr, testIdentity)
	body := []byte(`{"object":"whatsapp_business_account"}`)

	if err := a.Authenticate(authedHeaders(body), body); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}
}

func TestAuthenticateRejections(t *testing.T) {
	a := NewAuthenticator(testSecret, identityHdr, testIdentity)
	body := []byte(`{"object":"whatsapp_business_account"}`)

	tests := []struct {
		name   string
		mutate func(h http.Header, body []byte) []byte
		reason RejectReason
	}{
		{"missing identity header", func(h http.Header, b []byte) []byte {
			h.Del(identityHdr)
			return b
		}, RejectTransportIdentity},
		{"wrong identity", func(h http.Header, b []byte) []byte {
			h.Set(identityHdr, "CN=somebody-else")
			return b
		}, RejectTransportIdentity},
		{"missing signature", func(h http.Header, b []byte) []byte {
			h.Del(SignatureHeader)
			return b
		}, RejectMissingSignature},
		{"wrong prefix", func(h http.Header, b []byte) []byte {
			h.Set(SignatureHeader, "sha1=deadbeef")
			return b
		}, RejectMalformedSignature},
		{"bad hex", func(h http.Header, b []byte) []byte {
			h.Set(SignatureHeader, "sha256=not-hex-at-all")
			return b
		}, RejectMalformedSignature},
		{"truncated digest", func(h http.Header, b []byte) []byte {
			h.Set(SignatureHeader, "sha256=deadbeef")
			return b
		}, RejectMalformedSignature},
		{"tampered body", func(h http.Header, b []byte) []byte {
			tampered := append([]byte(nil), b...)
			tampered[0] ^= 0x01
			return tampered
		}, RejectSignatureMismatch},
		{"wrong secret", func(h http.Header, b []byte) []byte {
			h.Set(SignatureHeader, sign("a-different-secret", b))
			return b
		}, RejectSignatureMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := authedHeaders(body)
			checked := tt.mutate(headers, body)
			err := a.Authenticate(headers, checked)
			if err == nil {
				t.Fatal("expected rejection")
			}
			if err.Reason != tt.reason {
				t.Errorf("reason = %s, want %s", err.Reason, tt.reason)
			}
		})
	}
}

// A request failing both layers must be rejected on transport identity
// alone: the signature is never inspected for an unvouched caller.
func TestAuthenticateTransportShortCircuits(t *testing.T) {
	a := NewAuthenticator(testSecret, identityHdr, testIdentity)
	body := []byte(`{}`)

	h := http.Header{}
	h.Set(SignatureHeader, "sha1=garbage")
	err := a.Authenticate(h, body)
	if err == nil || err.Reason != RejectTransportIdentity {
		t.Errorf("expected transport_identity rejection, got %v", err)
	}
}
