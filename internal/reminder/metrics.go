package reminder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	actionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reminder_actions_total",
		Help: "Reminder management actions (schedule, cancel, rearm).",
	}, []string{"action"})

	triggersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reminder_triggers_total",
		Help: "Trigger callbacks by outcome (handled, stale, rearm_failed).",
	}, []string{"outcome"})
)
