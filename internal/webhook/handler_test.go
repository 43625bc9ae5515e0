package webhook

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"github.com/petfolio/reminders/pkg/observability"
)

const testVerifyToken = "verify-me"

func newTestRouter() *mux.Router {
	auth := NewAuthenticator(testSecret, identityHdr, testIdentity)
	h := NewHandler(auth, testVerifyToken, nil, observability.NewLogger("test"))
	r := mux.NewRouter()
	h.Register(r)
	return r
}

func postWebhook(t *testing.T, router *mux.Router, headers http.Header, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", bytes.NewReader(body))
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestReceiveAccepted(t *testing.T) {
	router := newTestRouter()
	body := []byte(`{
		"object": "whatsapp_business_account",
		"entry": [{
			"id": "1",
			"changes": [{
				"field": "messages",
				"value": {
					"messaging_product": "whatsapp",
					"statuses": [{"id": "wamid.1", "status": "delivered", "recipient_id": "52155"}],
					"messages": [{"from": "52155", "id": "wamid.2", "type": "text", "text": {"body": "gracias"}}]
				}
			}]
		}]
	}`)

	rec := postWebhook(t, router, authedHeaders(body), body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	if got := rec.Body.String(); got != `{"status":"received"}` {
		t.Errorf("body = %s", got)
	}
}

// Requests failing different layers get byte-identical responses, so a
// probe cannot tell which check it tripped.
func TestReceiveUniformRejection(t *testing.T) {
	router := newTestRouter()
	body := []byte(`{"object":"whatsapp_business_account"}`)

	badIdentity := http.Header{}
	badIdentity.Set(SignatureHeader, sign(testSecret, body))

	badSignature := http.Header{}
	badSignature.Set(identityHdr, testIdentity)
	badSignature.Set(SignatureHeader, sign("wrong-secret", body))

	first := postWebhook(t, router, badIdentity, body)
	second := postWebhook(t, router, badSignature, body)

	for _, rec := range []*httptest.ResponseRecorder{first, second} {
		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
	}
	if first.Body.String() != second.Body.String() {
		t.Errorf("rejection bodies differ: %q vs %q", first.Body.String(), second.Body.String())
	}
}

func TestReceiveMalformedPayload(t *testing.T) {
	router := newTestRouter()
	body := []byte(`not json`)

	rec := postWebhook(t, router, authedHeaders(body), body)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestVerifyHandshake(t *testing.T) {
	router := newTestRouter()

	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantEcho  string
		checkBody bool
	}{
		{
			name:      "valid",
			query:     "hub.mode=subscribe&hub.verify_token=" + testVerifyToken + "&hub.challenge=1158201444",
			wantCode:  http.StatusOK,
			wantEcho:  "1158201444",
			checkBody: true,
		},
		{
			name:     "wrong token",
			query:    "hub.mode=subscribe&hub.verify_token=nope&hub.challenge=1158201444",
			wantCode: http.StatusForbidden,
		},
		{
			name:     "wrong mode",
			query:    "hub.mode=unsubscribe&hub.verify_token=" + testVerifyToken + "&hub.challenge=1158201444",
			wantCode: http.StatusForbidden,
		},
		{
			name:     "no params",
			query:    "",
			wantCode: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/webhook/whatsapp?"+tt.query, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.checkBody {
				echo, _ := io.ReadAll(rec.Body)
				if string(echo) != tt.wantEcho {
					t.Errorf("challenge echo = %q, want %q", echo, tt.wantEcho)
				}
			}
		})
	}
}
