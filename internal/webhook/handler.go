package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	"github.com/petfolio/reminders/pkg/jsonutil"
	"github.com/petfolio/reminders/pkg/observability"
)

const maxBodySize = 1 << 20

// receiptTTL bounds how long a provider message id is remembered for
// receipt deduplication.
const receiptTTL = 24 * time.Hour

// Handler serves the provider webhook endpoints: the GET subscription
// handshake and the POST receiver.
type Handler struct {
	auth        *Authenticator
	verifyToken string
	dedup       *redis.Client
	log         *observability.Logger
}

func NewHandler(auth *Authenticator, verifyToken string, dedup *redis.Client, log *observability.Logger) *Handler {
	return &Handler{
		auth:        auth,
		verifyToken: verifyToken,
		dedup:       dedup,
		log:         log,
	}
}

// Register mounts the webhook routes.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/webhook/whatsapp", h.Verify).Methods(http.MethodGet)
	r.HandleFunc("/webhook/whatsapp", h.Receive).Methods(http.MethodPost)
}

// Verify answers the provider's subscription handshake: echo the challenge
// when the mode and verify token match.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") != "subscribe" || q.Get("hub.verify_token") != h.verifyToken {
		h.log.Warn("webhook verification rejected", "mode", q.Get("hub.mode"))
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte(q.Get("hub.challenge")))
}

// Receive authenticates and processes one webhook delivery. Rejections are
// a uniform 403: the response never reveals which layer failed.
func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		jsonutil.WriteErrorJSON(w, http.StatusBadRequest, "failed to read body")
		return
	}

	if authErr := h.auth.Authenticate(r.Header, body); authErr != nil {
		// Internal logs carry the reason; the caller only sees 403.
		requestsTotal.WithLabelValues("rejected").Inc()
		h.log.Warn("webhook rejected",
			"reason", string(authErr.Reason),
			"remote_addr", r.RemoteAddr)
		jsonutil.WriteJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
		return
	}

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		requestsTotal.WithLabelValues("malformed").Inc()
		jsonutil.WriteErrorJSON(w, http.StatusBadRequest, "invalid payload")
		return
	}

	h.processReceipts(r.Context(), &payload)
	h.processInbound(&payload)

	requestsTotal.WithLabelValues("accepted").Inc()
	jsonutil.WriteJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

// processReceipts records delivery receipts. Providers redeliver webhooks,
// so receipts are deduplicated by provider message id.
func (h *Handler) processReceipts(ctx context.Context, p *Payload) {
	for _, st := range p.Receipts() {
		if h.seen(ctx, "wh:receipt:"+st.ID+":"+st.Status) {
			continue
		}
		receiptsTotal.WithLabelValues(st.Status).Inc()
		h.log.Info("delivery receipt",
			"provider_message_id", st.ID,
			"status", st.Status,
			"recipient", st.RecipientID)
	}
}

// processInbound logs user replies. Rich conversational handling lives
// outside this service; the gate is the only way in.
func (h *Handler) processInbound(p *Payload) {
	for _, msg := range p.InboundMessages() {
		inboundTotal.Inc()
		h.log.Info("inbound message",
			"provider_message_id", msg.ID,
			"from", msg.From,
			"type", msg.Type)
	}
}

func (h *Handler) seen(ctx context.Context, key string) bool {
	if h.dedup == nil {
		return false
	}
	ok, err := h.dedup.SetNX(ctx, key, "1", receiptTTL).Result()
	if err != nil {
		h.log.Warn("receipt dedup unavailable", "error", err.Error())
		return false
	}
	return !ok
}
