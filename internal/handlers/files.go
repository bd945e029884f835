package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/participa-df/ouvidoria-server/internal/uploads"
	"go.uber.org/zap"
)

// AttachmentLookup checks whether a stored path belongs to a known
// attachment row.
type AttachmentLookup interface {
	AttachmentExists(ctx context.Context, filePath string) (bool, error)
}

// FileHandler serves stored attachments.
type FileHandler struct {
	lookup AttachmentLookup
	store  *uploads.Store
	logger *zap.SugaredLogger
}

// NewFileHandler creates a new file handler
func NewFileHandler(lookup AttachmentLookup, store *uploads.Store, logger *zap.SugaredLogger) *FileHandler {
	return &FileHandler{lookup: lookup, store: store, logger: logger}
}

// Serve handles GET /api/v1/files/{name}. A missing database row and a
// missing physical file produce the same not-found response, so probing
// cannot distinguish the two.
func (h *FileHandler) Serve(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		respondError(w, http.StatusNotFound, "Arquivo não encontrado.")
		return
	}

	exists, err := h.lookup.AttachmentExists(r.Context(), name)
	if err != nil {
		h.logger.Errorw("Attachment lookup failed", "name", name, "error", err)
		respondError(w, http.StatusInternalServerError, "Erro ao buscar arquivo.")
		return
	}
	if !exists {
		respondError(w, http.StatusNotFound, "Arquivo não encontrado.")
		return
	}

	f, err := h.store.Open(name)
	if err != nil {
		respondError(w, http.StatusNotFound, "Arquivo não encontrado.")
		return
	}
	defer f.Close()

	w.Header().Set("X-Content-Type-Options", "nosniff")
	io.Copy(w, f)
}
