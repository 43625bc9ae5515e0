package webhook

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_requests_total",
		Help: "Inbound webhook requests by outcome.",
	}, []string{"outcome"})

	receiptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_delivery_receipts_total",
		Help: "Delivery receipts by provider status.",
	}, []string{"status"})

	inboundTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webhook_inbound_messages_total",
		Help: "Inbound user replies received through the webhook.",
	})
)
