package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/participa-df/ouvidoria-server/internal/models"
	"github.com/participa-df/ouvidoria-server/internal/services"
	"go.uber.org/zap"
)

// TriageAPI is the slice of the manifestation service the admin dashboard
// needs.
type TriageAPI interface {
	Stats(ctx context.Context) (*models.DashboardStats, error)
	List(ctx context.Context, page, limit int, status string) (*models.Page, error)
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
	Redact(ctx context.Context, id uuid.UUID, newText string, makePublic bool) error
	AddResponse(ctx context.Context, id uuid.UUID, message string, isAdmin bool) (*models.Response, error)
}

// AdminHandler handles the authenticated triage endpoints.
type AdminHandler struct {
	svc    TriageAPI
	logger *zap.SugaredLogger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(svc TriageAPI, logger *zap.SugaredLogger) *AdminHandler {
	return &AdminHandler{svc: svc, logger: logger}
}

// Stats handles GET /api/v1/admin/stats
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		h.logger.Errorw("Failed to load stats", "error", err)
		respondError(w, http.StatusInternalServerError, "Erro ao carregar estatísticas.")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// List handles GET /api/v1/admin/manifestations
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	status := r.URL.Query().Get("status")

	result, err := h.svc.List(r.Context(), page, limit, status)
	if err != nil {
		if errors.Is(err, services.ErrInvalidStatus) {
			respondError(w, http.StatusBadRequest, "Status inválido.")
			return
		}
		h.logger.Errorw("Failed to list manifestations", "error", err)
		respondError(w, http.StatusInternalServerError, "Erro ao listar manifestações.")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// SetStatus handles PATCH /api/v1/admin/manifestations/{id}/status
func (h *AdminHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.svc.SetStatus(r.Context(), id, body.Status); err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidStatus):
			respondError(w, http.StatusBadRequest, "Status inválido.")
		case errors.Is(err, services.ErrNotFound):
			respondError(w, http.StatusNotFound, "Manifestação não encontrada.")
		default:
			h.logger.Errorw("Failed to update status", "id", id, "error", err)
			respondError(w, http.StatusInternalServerError, "Erro ao atualizar status.")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Status atualizado com sucesso."})
}

// Redact handles PATCH /api/v1/admin/manifestations/{id}/redact
func (h *AdminHandler) Redact(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var body struct {
		Text       string `json:"text"`
		MakePublic bool   `json:"makePublic"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.svc.Redact(r.Context(), id, body.Text, body.MakePublic); err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyText):
			respondError(w, http.StatusBadRequest, "O texto editado não pode ser vazio.")
		case errors.Is(err, services.ErrNotFound):
			respondError(w, http.StatusNotFound, "Manifestação não encontrada.")
		default:
			h.logger.Errorw("Failed to redact", "id", id, "error", err)
			respondError(w, http.StatusInternalServerError, "Erro ao editar manifestação.")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Manifestação atualizada."})
}

// Respond handles POST /api/v1/admin/manifestations/{id}/responses
func (h *AdminHandler) Respond(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.svc.AddResponse(r.Context(), id, body.Message, true)
	if err != nil {
		if errors.Is(err, services.ErrEmptyText) {
			respondError(w, http.StatusBadRequest, "A resposta não pode ser vazia.")
			return
		}
		h.logger.Errorw("Failed to add response", "id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "Erro ao registrar resposta.")
		return
	}

	respondJSON(w, http.StatusCreated, resp)
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid manifestation id")
		return uuid.Nil, false
	}
	return id, true
}
