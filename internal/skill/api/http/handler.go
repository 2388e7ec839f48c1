// Package http exposes the skill over HTTP: one webhook endpoint receiving
// request envelopes from the voice platform and a liveness probe.
package http

import (
	"encoding/json"
	"net/http"

	"github.com/DenisKhanov/CommuteBot/internal/skill/models"
	"github.com/sirupsen/logrus"
)

// Service defines the interface for handling one conversational turn.
type Service interface {
	HandleRequest(env *models.RequestEnvelope) *models.ResponseEnvelope
}

// Handler decodes webhook requests, hands them to the skill service and
// encodes the spoken response.
type Handler struct {
	service Service
}

// NewHandler creates a new webhook handler around the given service.
func NewHandler(service Service) *Handler {
	return &Handler{
		service: service,
	}
}

// HandleSkillRequest is the webhook endpoint the voice platform posts one
// request envelope to per conversational turn.
func (h *Handler) HandleSkillRequest(w http.ResponseWriter, r *http.Request) {
	var env models.RequestEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		logrus.WithError(err).Error("Failed to decode request envelope")
		http.Error(w, "invalid request envelope", http.StatusBadRequest)
		return
	}

	response := h.service.HandleRequest(&env)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logrus.WithError(err).Error("Failed to encode response envelope")
	}
}

// HandleHealthCheck reports process liveness.
func (h *Handler) HandleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		logrus.WithError(err).Error("Failed to write health check response")
	}
}
