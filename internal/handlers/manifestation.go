// Package handlers contains HTTP request handlers for the ouvidoria API.
// Handlers parse requests, call services, and return JSON responses.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/participa-df/ouvidoria-server/internal/classifier"
	"github.com/participa-df/ouvidoria-server/internal/models"
	"github.com/participa-df/ouvidoria-server/internal/services"
	"github.com/participa-df/ouvidoria-server/internal/uploads"
	"go.uber.org/zap"
)

// ManifestationAPI is the slice of the manifestation service the public
// handlers need. Tests substitute a fake.
type ManifestationAPI interface {
	Submit(ctx context.Context, req *models.SubmissionRequest) (*models.SubmitReceipt, error)
	Analyze(ctx context.Context, text, userType string) classifier.Result
	GetByProtocol(ctx context.Context, protocol string) (*models.ManifestationDetail, error)
	ListPublic(ctx context.Context, limit int) ([]models.PublicEntry, error)
}

// ManifestationHandler handles the public citizen-facing endpoints.
type ManifestationHandler struct {
	svc       ManifestationAPI
	store     *uploads.Store
	maxUpload int64
	logger    *zap.SugaredLogger
}

// NewManifestationHandler creates a new manifestation handler. maxUpload
// caps the total submission body in bytes; zero disables the cap.
func NewManifestationHandler(svc ManifestationAPI, store *uploads.Store, maxUpload int64, logger *zap.SugaredLogger) *ManifestationHandler {
	return &ManifestationHandler{svc: svc, store: store, maxUpload: maxUpload, logger: logger}
}

// Submit handles POST /api/v1/manifestations. The body is a multipart form
// with text fields plus any number of "files" parts. When the form carries
// analyzeOnly=true, only the classification runs and any files already
// streamed to disk are removed again.
func (h *ManifestationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	}

	reader, err := r.MultipartReader()
	if err != nil {
		respondError(w, http.StatusBadRequest, "Expected multipart form data")
		return
	}

	fields := map[string]string{}
	var saved []models.AttachmentRef

	cleanup := func() {
		for _, a := range saved {
			if err := h.store.Remove(a.FilePath); err != nil {
				h.logger.Warnw("Could not remove upload", "path", a.FilePath, "error", err)
			}
		}
	}

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			cleanup()
			if tooLarge(err) {
				respondError(w, http.StatusRequestEntityTooLarge, "Arquivo excede o tamanho máximo permitido.")
				return
			}
			respondError(w, http.StatusBadRequest, "Malformed multipart form")
			return
		}

		if part.FileName() == "" {
			val, err := io.ReadAll(io.LimitReader(part, 64*1024))
			part.Close()
			if err != nil {
				cleanup()
				if tooLarge(err) {
					respondError(w, http.StatusRequestEntityTooLarge, "Arquivo excede o tamanho máximo permitido.")
					return
				}
				respondError(w, http.StatusBadRequest, "Malformed form field")
				return
			}
			fields[part.FormName()] = string(val)
			continue
		}

		stored, err := h.store.Save(part.FileName(), part)
		part.Close()
		if err != nil {
			cleanup()
			if tooLarge(err) {
				respondError(w, http.StatusRequestEntityTooLarge, "Arquivo excede o tamanho máximo permitido.")
				return
			}
			h.logger.Errorw("Failed to store upload", "error", err)
			respondError(w, http.StatusInternalServerError, "Failed to store attachment")
			return
		}
		saved = append(saved, models.AttachmentRef{
			FilePath: stored,
			FileType: part.Header.Get("Content-Type"),
		})
	}

	text := fields["text"]
	declaredType := fields["type"]
	if declaredType == "" {
		declaredType = models.TypeInformacao
	}

	if fields["analyzeOnly"] == "true" {
		// Analysis requests never persist; drop whatever was uploaded.
		cleanup()
		analysis := h.svc.Analyze(r.Context(), text, declaredType)
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"status":        "analysis",
			"originalType":  analysis.OriginalType,
			"suggestedType": analysis.SuggestedType,
			"matches":       analysis.Matches,
			"reasoning":     analysis.Reasoning,
			"hasPii":        analysis.HasPII,
			"piiConfidence": analysis.PIIConfidence,
		})
		return
	}

	req := &models.SubmissionRequest{
		Text: text,
		Type: declaredType,
		// An omitted isAnonymous field means anonymous. Identification is
		// opt-in and must carry name and CPF; it is never inferred.
		IsAnonymous: fields["isAnonymous"] != "false",
		Name:        fields["name"],
		CPF:         fields["cpf"],
		Latitude:    parseCoord(fields["latitude"]),
		Longitude:   parseCoord(fields["longitude"]),
		Attachments: saved,
	}

	receipt, err := h.svc.Submit(r.Context(), req)
	if err != nil {
		cleanup()
		switch {
		case errors.Is(err, services.ErrEmptyText):
			respondError(w, http.StatusBadRequest, "Manifestation text is required")
		case errors.Is(err, services.ErrInvalidCategory):
			respondError(w, http.StatusBadRequest, "Unknown manifestation type")
		case errors.Is(err, services.ErrIdentityRequired):
			respondError(w, http.StatusBadRequest, "Name and CPF are required for identified manifestations")
		default:
			h.logger.Errorw("Failed to submit manifestation", "error", err)
			respondError(w, http.StatusInternalServerError, "Failed to save manifestation")
		}
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"status":   "success",
		"protocol": receipt.Protocol,
		"message":  "Manifestação registrada com sucesso.",
	})
}

// GetByProtocol handles GET /api/v1/manifestations/{protocol}. The
// protocol is the access secret; no staff authentication applies.
func (h *ManifestationHandler) GetByProtocol(w http.ResponseWriter, r *http.Request) {
	protocol := chi.URLParam(r, "protocol")
	if protocol == "" {
		respondError(w, http.StatusBadRequest, "Protocol required")
		return
	}

	detail, err := h.svc.GetByProtocol(r.Context(), protocol)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Protocolo não encontrado.")
			return
		}
		h.logger.Errorw("Failed to fetch protocol", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to fetch manifestation")
		return
	}

	respondJSON(w, http.StatusOK, detail)
}

// PublicFeed handles GET /api/v1/manifestations/public
func (h *ManifestationHandler) PublicFeed(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.svc.ListPublic(r.Context(), limit)
	if err != nil {
		h.logger.Errorw("Failed to fetch public feed", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to fetch public manifestations")
		return
	}

	respondJSON(w, http.StatusOK, entries)
}

// tooLarge reports whether the body read failed because the request
// exceeded the MaxBytesReader cap.
func tooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

func parseCoord(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

// Helper: respond with JSON
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Helper: respond with error
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
