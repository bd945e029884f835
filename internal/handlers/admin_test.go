package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/participa-df/ouvidoria-server/internal/models"
	"github.com/participa-df/ouvidoria-server/internal/services"
)

// fakeTriageAPI records the last call per operation.
type fakeTriageAPI struct {
	stats    *models.DashboardStats
	statsErr error

	page    *models.Page
	pageErr error
	gotPage struct {
		page, limit int
		status      string
	}

	statusID  uuid.UUID
	newStatus string
	statusErr error

	redactID   uuid.UUID
	redactText string
	makePublic bool
	redactErr  error

	response    *models.Response
	responseErr error
}

func (f *fakeTriageAPI) Stats(ctx context.Context) (*models.DashboardStats, error) {
	return f.stats, f.statsErr
}

func (f *fakeTriageAPI) List(ctx context.Context, page, limit int, status string) (*models.Page, error) {
	f.gotPage.page, f.gotPage.limit, f.gotPage.status = page, limit, status
	return f.page, f.pageErr
}

func (f *fakeTriageAPI) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	f.statusID, f.newStatus = id, status
	return f.statusErr
}

func (f *fakeTriageAPI) Redact(ctx context.Context, id uuid.UUID, newText string, makePublic bool) error {
	f.redactID, f.redactText, f.makePublic = id, newText, makePublic
	return f.redactErr
}

func (f *fakeTriageAPI) AddResponse(ctx context.Context, id uuid.UUID, message string, isAdmin bool) (*models.Response, error) {
	return f.response, f.responseErr
}

func adminRouter(svc TriageAPI) *chi.Mux {
	h := NewAdminHandler(svc, zap.NewNop().Sugar())
	r := chi.NewRouter()
	r.Get("/admin/stats", h.Stats)
	r.Get("/admin/manifestations", h.List)
	r.Patch("/admin/manifestations/{id}/status", h.SetStatus)
	r.Patch("/admin/manifestations/{id}/redact", h.Redact)
	r.Post("/admin/manifestations/{id}/responses", h.Respond)
	return r
}

func TestAdminStats(t *testing.T) {
	svc := &fakeTriageAPI{
		stats: &models.DashboardStats{
			Total:   42,
			Pending: 7,
			ByType:  []models.TypeCount{{Type: models.TypeReclamacao, Count: 30}},
		},
	}
	r := adminRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.DashboardStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(42), resp.Total)
	assert.Equal(t, int64(7), resp.Pending)
}

func TestAdminListPassesFilters(t *testing.T) {
	svc := &fakeTriageAPI{page: &models.Page{Page: 2, Total: 0}}
	r := adminRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/admin/manifestations?page=2&limit=10&status=received", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, svc.gotPage.page)
	assert.Equal(t, 10, svc.gotPage.limit)
	assert.Equal(t, "received", svc.gotPage.status)
}

func TestAdminListInvalidStatus(t *testing.T) {
	svc := &fakeTriageAPI{pageErr: services.ErrInvalidStatus}
	r := adminRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/admin/manifestations?status=bogus", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminSetStatus(t *testing.T) {
	id := uuid.New()
	svc := &fakeTriageAPI{}
	r := adminRouter(svc)

	body := bytes.NewBufferString(`{"status":"resolved"}`)
	req := httptest.NewRequest(http.MethodPatch, "/admin/manifestations/"+id.String()+"/status", body)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, svc.statusID)
	assert.Equal(t, "resolved", svc.newStatus)
}

func TestAdminSetStatusErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"unknown status value", services.ErrInvalidStatus, http.StatusBadRequest},
		{"missing record", services.ErrNotFound, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeTriageAPI{statusErr: tt.err}
			r := adminRouter(svc)

			body := bytes.NewBufferString(`{"status":"resolved"}`)
			req := httptest.NewRequest(http.MethodPatch, "/admin/manifestations/"+uuid.NewString()+"/status", body)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestAdminSetStatusBadID(t *testing.T) {
	svc := &fakeTriageAPI{}
	r := adminRouter(svc)

	body := bytes.NewBufferString(`{"status":"resolved"}`)
	req := httptest.NewRequest(http.MethodPatch, "/admin/manifestations/not-a-uuid/status", body)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, uuid.Nil, svc.statusID, "service must not be called for a bad id")
}

func TestAdminRedact(t *testing.T) {
	id := uuid.New()
	svc := &fakeTriageAPI{}
	r := adminRouter(svc)

	body := bytes.NewBufferString(`{"text":"Texto sem dados pessoais.","makePublic":true}`)
	req := httptest.NewRequest(http.MethodPatch, "/admin/manifestations/"+id.String()+"/redact", body)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, svc.redactID)
	assert.Equal(t, "Texto sem dados pessoais.", svc.redactText)
	assert.True(t, svc.makePublic)
}

func TestAdminRedactEmptyText(t *testing.T) {
	svc := &fakeTriageAPI{redactErr: services.ErrEmptyText}
	r := adminRouter(svc)

	body := bytes.NewBufferString(`{"text":"","makePublic":false}`)
	req := httptest.NewRequest(http.MethodPatch, "/admin/manifestations/"+uuid.NewString()+"/redact", body)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRespond(t *testing.T) {
	id := uuid.New()
	svc := &fakeTriageAPI{
		response: &models.Response{ID: uuid.New(), ManifestationID: id, Message: "Equipe acionada.", IsAdmin: true},
	}
	r := adminRouter(svc)

	body := bytes.NewBufferString(`{"message":"Equipe acionada."}`)
	req := httptest.NewRequest(http.MethodPost, "/admin/manifestations/"+id.String()+"/responses", body)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp models.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Equipe acionada.", resp.Message)
	assert.True(t, resp.IsAdmin)
}
