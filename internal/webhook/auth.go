// Package webhook guards the inbound channel from the messaging provider.
// Every request passes two independent layers before any payload parsing:
// the transport identity asserted by the TLS-terminating proxy, and an
// HMAC-SHA256 signature over the raw body.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
)

// SignatureHeader carries the provider's payload signature, formatted
// "sha256=<hex digest>".
const SignatureHeader = "X-Hub-Signature-256"

// RejectReason names which check failed. It is logged internally and never
// included in the HTTP response.
type RejectReason string

const (
	RejectTransportIdentity  RejectReason = "transport_identity"
	RejectMissingSignature   RejectReason = "missing_signature"
	RejectMalformedSignature RejectReason = "malformed_signature"
	RejectSignatureMismatch  RejectReason = "signature_mismatch"
)

// AuthError is a rejected webhook request.
type AuthError struct {
	Reason RejectReason
}

func (e *AuthError) Error() string {
	return "webhook rejected: " + string(e.Reason)
}

// Authenticator validates inbound provider requests. It is stateless
// across requests; the secret and expected identity are fixed at
// construction so the component is independently testable.
type Authenticator struct {
	appSecret        []byte
	identityHeader   string
	expectedIdentity string
}

func NewAuthenticator(appSecret, identityHeader, expectedIdentity string) *Authenticator {
	return &Authenticator{
		appSecret:        []byte(appSecret),
		identityHeader:   identityHeader,
		expectedIdentity: expectedIdentity,
	}
}

// Authenticate runs both layers against the raw, unparsed body. The
// transport check runs first and short-circuits: no HMAC is computed for a
// request the proxy did not vouch for, and an absent assertion fails
// closed.
func (a *Authenticator) Authenticate(headers http.Header, body []byte) *AuthError {
	identity := headers.Get(a.identityHeader)
	if identity == "" || subtle.ConstantTimeCompare([]byte(identity), []byte(a.expectedIdentity)) != 1 {
		return &AuthError{Reason: RejectTransportIdentity}
	}

	sigHeader := headers.Get(SignatureHeader)
	if sigHeader == "" {
		return &AuthError{Reason: RejectMissingSignature}
	}
	sigHex, ok := strings.CutPrefix(sigHeader, "sha256=")
	if !ok {
		return &AuthError{Reason: RejectMalformedSignature}
	}
	received, err := hex.DecodeString(sigHex)
	if err != nil || len(received) != sha256.Size {
		return &AuthError{Reason: RejectMalformedSignature}
	}

	mac := hmac.New(sha256.New, a.appSecret)
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), received) {
		return &AuthError{Reason: RejectSignatureMismatch}
	}
	return nil
}
