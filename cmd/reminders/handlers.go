package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/petfolio/reminders/internal/reminder"
	"github.com/petfolio/reminders/internal/scheduler"
	"github.com/petfolio/reminders/pkg/jsonutil"
	"github.com/petfolio/reminders/pkg/observability"
)

// ReminderServer exposes the management API consumed by the pet-info web
// application and the internal endpoints the durable scheduler calls back
// into. All routes are guarded by the shared internal secret; none of them
// are public.
type ReminderServer struct {
	service        *reminder.Service
	triggers       *reminder.TriggerHandler
	internalSecret string
	log            *observability.Logger
}

func (s *ReminderServer) Register(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.requireInternalSecret)

	api.HandleFunc("/reminders", s.CreateReminder).Methods(http.MethodPost)
	api.HandleFunc("/reminders", s.ListReminders).Methods(http.MethodGet)
	api.HandleFunc("/reminders/{id:[0-9]+}", s.CancelReminder).Methods(http.MethodDelete)
	api.HandleFunc("/owners/{id:[0-9]+}/reminders", s.CancelOwnerReminders).Methods(http.MethodDelete)
	api.HandleFunc("/internal/reminders/{id:[0-9]+}/active", s.ReminderActive).Methods(http.MethodGet)
	api.HandleFunc("/internal/trigger", s.Trigger).Methods(http.MethodPost)
}

// requireInternalSecret rejects callers that do not present the shared
// secret the rest of the application uses.
func (s *ReminderServer) requireInternalSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Internal-Secret") != s.internalSecret {
			jsonutil.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *ReminderServer) CreateReminder(w http.ResponseWriter, r *http.Request) {
	var req reminder.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonutil.WriteErrorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rem, err := s.service.Create(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, reminder.ErrValidation):
			jsonutil.WriteErrorJSON(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, reminder.ErrSchedulerArm):
			s.log.Error("scheduler arm failed", "error", err.Error())
			jsonutil.WriteErrorJSON(w, http.StatusBadGateway, "failed to schedule reminder")
		default:
			s.log.Error("create reminder failed", "error", err.Error())
			jsonutil.WriteErrorJSON(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	jsonutil.WriteJSON(w, http.StatusCreated, rem)
}

func (s *ReminderServer) ListReminders(w http.ResponseWriter, r *http.Request) {
	ownerID, err := strconv.ParseInt(r.URL.Query().Get("owner_id"), 10, 64)
	if err != nil {
		jsonutil.WriteErrorJSON(w, http.StatusBadRequest, "owner_id is required")
		return
	}
	reminders, err := s.service.List(r.Context(), ownerID)
	if err != nil {
		s.log.Error("list reminders failed", "error", err.Error())
		jsonutil.WriteErrorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	if reminders == nil {
		reminders = []*reminder.Reminder{}
	}
	jsonutil.WriteJSON(w, http.StatusOK, reminders)
}

func (s *ReminderServer) CancelReminder(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	ownerID, err := strconv.ParseInt(r.URL.Query().Get("owner_id"), 10, 64)
	if err != nil {
		jsonutil.WriteErrorJSON(w, http.StatusBadRequest, "owner_id is required")
		return
	}

	if err := s.service.Cancel(r.Context(), id, ownerID); err != nil {
		if errors.Is(err, reminder.ErrNotFound) {
			jsonutil.WriteErrorJSON(w, http.StatusNotFound, "reminder not found")
			return
		}
		s.log.Error("cancel reminder failed", "reminder_id", id, "error", err.Error())
		jsonutil.WriteErrorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *ReminderServer) CancelOwnerReminders(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err := s.service.CancelOwner(r.Context(), ownerID); err != nil {
		s.log.Error("cancel owner reminders failed", "owner_id", ownerID, "error", err.Error())
		jsonutil.WriteErrorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *ReminderServer) ReminderActive(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	active, err := s.service.Active(r.Context(), id)
	if err != nil {
		s.log.Error("active check failed", "reminder_id", id, "error", err.Error())
		jsonutil.WriteErrorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, map[string]bool{"active": active})
}

// Trigger is the durable scheduler's callback. Stale and duplicate
// invocations are a successful no-op; only operational failures return a
// non-2xx so the scheduler can alarm and retry.
func (s *ReminderServer) Trigger(w http.ResponseWriter, r *http.Request) {
	var payload scheduler.TriggerPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		jsonutil.WriteErrorJSON(w, http.StatusBadRequest, "invalid trigger payload")
		return
	}

	if err := s.triggers.HandleTrigger(r.Context(), payload); err != nil {
		s.log.Error("trigger handling failed",
			"reminder_id", payload.ReminderID,
			"error", err.Error())
		jsonutil.WriteErrorJSON(w, http.StatusInternalServerError, "trigger failed")
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, map[string]string{"status": "handled"})
}
