// File: internal/handlers/persona_handler.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/lunahq/luna/internal/middleware"
	personarepo "github.com/lunahq/luna/internal/repository/persona"
	"github.com/lunahq/luna/internal/services/persona"
)

type PersonaHandler struct {
	PersonaService *persona.Service
}

func NewPersonaHandler(service *persona.Service) *PersonaHandler {
	return &PersonaHandler{PersonaService: service}
}

type personaRequest struct {
	Name   string `json:"name"`
	Prompt string `json:"prompt"`
}

func (p personaRequest) validate() string {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return "Persona name is required."
	case strings.TrimSpace(p.Prompt) == "":
		return "Persona prompt is required."
	}
	return ""
}

// List returns the identity's personas and the active selection.
func (h *PersonaHandler) List(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r.Context())

	personas, err := h.PersonaService.List(r.Context(), identity)
	if err != nil {
		writeError(w, "Could not retrieve personas", http.StatusInternalServerError)
		return
	}
	activeID, _ := h.PersonaService.ActiveID(r.Context(), identity)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"personas": personas,
		"activeId": activeID,
	})
}

// Create adds a persona.
func (h *PersonaHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req personaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, msg, http.StatusBadRequest)
		return
	}

	identity := middleware.IdentityFrom(r.Context())
	created, err := h.PersonaService.Add(r.Context(), identity, req.Name, req.Prompt)
	if err != nil {
		writeError(w, "Could not create persona", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// Update renames or reprompts a persona.
func (h *PersonaHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req personaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, msg, http.StatusBadRequest)
		return
	}

	identity := middleware.IdentityFrom(r.Context())
	err := h.PersonaService.Update(r.Context(), identity, mux.Vars(r)["id"], req.Name, req.Prompt)
	if err != nil {
		if errors.Is(err, personarepo.ErrPersonaNotFound) {
			writeError(w, "Unknown persona", http.StatusNotFound)
			return
		}
		writeError(w, "Could not update persona", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete removes a persona.
func (h *PersonaHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r.Context())
	if err := h.PersonaService.Delete(r.Context(), identity, mux.Vars(r)["id"]); err != nil {
		if errors.Is(err, personarepo.ErrPersonaNotFound) {
			writeError(w, "Unknown persona", http.StatusNotFound)
			return
		}
		writeError(w, "Could not delete persona", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Activate selects a persona; an empty id clears the selection.
func (h *PersonaHandler) Activate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	identity := middleware.IdentityFrom(r.Context())
	if err := h.PersonaService.SetActive(r.Context(), identity, req.ID); err != nil {
		if errors.Is(err, personarepo.ErrPersonaNotFound) {
			writeError(w, "Unknown persona", http.StatusNotFound)
			return
		}
		writeError(w, "Could not activate persona", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
