package services

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/participa-df/ouvidoria-server/internal/cache"
	"github.com/participa-df/ouvidoria-server/internal/classifier"
	"github.com/participa-df/ouvidoria-server/internal/models"
	"github.com/participa-df/ouvidoria-server/internal/uploads"
	"go.uber.org/zap"
)

const manifestationColumns = `id, protocol, text, original_text, type, is_anonymous,
	is_public, was_edited, status, has_audio, has_video, image_count,
	name, cpf, latitude, longitude, created_at`

// ManifestationService owns the submission pipeline and the record
// lifecycle: classification, publication gating, triage status and the
// staff redaction operation.
type ManifestationService struct {
	db              *pgxpool.Pool
	classifier      *classifier.Classifier
	cache           *cache.FeedCache
	classifyTimeout time.Duration
	logger          *zap.SugaredLogger
}

// NewManifestationService creates a new manifestation service.
func NewManifestationService(db *pgxpool.Pool, cls *classifier.Classifier, fc *cache.FeedCache, classifyTimeout time.Duration, logger *zap.SugaredLogger) *ManifestationService {
	if classifyTimeout <= 0 {
		classifyTimeout = 90 * time.Second
	}
	return &ManifestationService{
		db:              db,
		classifier:      cls,
		cache:           fc,
		classifyTimeout: classifyTimeout,
		logger:          logger,
	}
}

// newProtocol draws a DF-<year>-<6 digits> tracking identifier. The random
// suffix is not checked against existing protocols; the UNIQUE constraint
// turns the (unlikely) collision into an insert error rather than silent
// reuse.
func newProtocol(now time.Time) string {
	return fmt.Sprintf("DF-%d-%06d", now.Year(), rand.Intn(1_000_000))
}

// redactionOriginal picks the value to persist as original_text: once set
// it is never overwritten, so the very first pre-edit text is the one
// permanently retained across any number of redaction rounds.
func redactionOriginal(currentText string, originalText *string) string {
	if originalText != nil {
		return *originalText
	}
	return currentText
}

// Analyze runs only the classifier, without persisting anything. Used by
// the pre-submit confirmation flow.
func (s *ManifestationService) Analyze(ctx context.Context, text, userType string) classifier.Result {
	ctx, cancel := context.WithTimeout(ctx, s.classifyTimeout)
	defer cancel()
	return s.classifier.Analyze(ctx, text, userType)
}

// Submit validates the request, runs the classification pipeline to decide
// is_public, and persists the manifestation with its attachments in one
// transaction. The classifier never fails, so neither does this path for
// classifier reasons.
func (s *ManifestationService) Submit(ctx context.Context, req *models.SubmissionRequest) (*models.SubmitReceipt, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}
	if !models.ValidCategory(req.Type) {
		return nil, ErrInvalidCategory
	}
	if !req.IsAnonymous && (strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.CPF) == "") {
		return nil, ErrIdentityRequired
	}

	analysis := s.Analyze(ctx, req.Text, req.Type)
	isPublic := classifier.ShouldPublish(req.IsAnonymous, analysis.HasPII)

	mimeTypes := make([]string, len(req.Attachments))
	for i, a := range req.Attachments {
		mimeTypes[i] = a.FileType
	}
	hasAudio, hasVideo, imageCount := uploads.MediaFlags(mimeTypes)

	id := uuid.New()
	now := time.Now()
	protocol := newProtocol(now)

	// Identified fields are dropped entirely when the submitter chose
	// anonymity, even if the form carried them.
	var name, cpf *string
	if !req.IsAnonymous {
		n, c := strings.TrimSpace(req.Name), strings.TrimSpace(req.CPF)
		name, cpf = &n, &c
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin submit tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO manifestations
			(id, protocol, text, type, is_anonymous, is_public, status,
			 has_audio, has_video, image_count, name, cpf, latitude, longitude, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		id, protocol, req.Text, req.Type, req.IsAnonymous, isPublic, models.StatusReceived,
		hasAudio, hasVideo, imageCount, name, cpf, req.Latitude, req.Longitude, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert manifestation: %w", err)
	}

	for _, a := range req.Attachments {
		_, err = tx.Exec(ctx, `
			INSERT INTO attachments (id, manifestation_id, file_path, file_type)
			VALUES ($1, $2, $3, $4)`,
			uuid.New(), id, a.FilePath, a.FileType,
		)
		if err != nil {
			return nil, fmt.Errorf("insert attachment: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit submit tx: %w", err)
	}

	if isPublic {
		s.cache.Invalidate(ctx)
	}

	s.logger.Infow("Manifestation submitted",
		"id", id,
		"protocol", protocol,
		"type", req.Type,
		"is_public", isPublic,
		"pii_confidence", analysis.PIIConfidence,
		"attachments", len(req.Attachments),
	)

	return &models.SubmitReceipt{
		ID:       id,
		Protocol: protocol,
		Status:   models.StatusReceived,
		IsPublic: isPublic,
	}, nil
}

func scanManifestation(row pgx.Row, m *models.Manifestation) error {
	return row.Scan(&m.ID, &m.Protocol, &m.Text, &m.OriginalText, &m.Type, &m.IsAnonymous,
		&m.IsPublic, &m.WasEdited, &m.Status, &m.HasAudio, &m.HasVideo, &m.ImageCount,
		&m.Name, &m.CPF, &m.Latitude, &m.Longitude, &m.CreatedAt)
}

// GetByProtocol returns the full record with its attachments and response
// history. The protocol itself is the access credential; no staff auth is
// required here.
func (s *ManifestationService) GetByProtocol(ctx context.Context, protocol string) (*models.ManifestationDetail, error) {
	var detail models.ManifestationDetail

	row := s.db.QueryRow(ctx,
		"SELECT "+manifestationColumns+" FROM manifestations WHERE protocol = $1", protocol)
	if err := scanManifestation(row, &detail.Manifestation); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query manifestation: %w", err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, manifestation_id, file_path, file_type, created_at
		FROM attachments WHERE manifestation_id = $1 ORDER BY created_at`,
		detail.ID)
	if err != nil {
		return nil, fmt.Errorf("query attachments: %w", err)
	}
	defer rows.Close()
	detail.Attachments = []models.Attachment{}
	for rows.Next() {
		var a models.Attachment
		if err := rows.Scan(&a.ID, &a.ManifestationID, &a.FilePath, &a.FileType, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		detail.Attachments = append(detail.Attachments, a)
	}
	rows.Close()

	rrows, err := s.db.Query(ctx, `
		SELECT id, manifestation_id, message, is_admin, created_at
		FROM manifestation_responses WHERE manifestation_id = $1 ORDER BY created_at ASC`,
		detail.ID)
	if err != nil {
		return nil, fmt.Errorf("query responses: %w", err)
	}
	defer rrows.Close()
	detail.Responses = []models.Response{}
	for rrows.Next() {
		var r models.Response
		if err := rrows.Scan(&r.ID, &r.ManifestationID, &r.Message, &r.IsAdmin, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		detail.Responses = append(detail.Responses, r)
	}

	return &detail, nil
}

// ListPublic returns the newest public manifestations. Results pass through
// the feed cache when Redis is configured.
func (s *ManifestationService) ListPublic(ctx context.Context, limit int) ([]models.PublicEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	cacheKey := fmt.Sprintf("public_feed:%d", limit)
	var entries []models.PublicEntry
	if s.cache.Get(ctx, cacheKey, &entries) {
		return entries, nil
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, text, type, was_edited, created_at
		FROM manifestations
		WHERE is_public
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query public feed: %w", err)
	}
	defer rows.Close()

	entries = []models.PublicEntry{}
	for rows.Next() {
		var e models.PublicEntry
		if err := rows.Scan(&e.ID, &e.Text, &e.Type, &e.WasEdited, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan public entry: %w", err)
		}
		entries = append(entries, e)
	}

	s.cache.Set(ctx, cacheKey, entries)
	return entries, nil
}

// List returns a page of manifestations for the admin dashboard, optionally
// filtered by triage status.
func (s *ManifestationService) List(ctx context.Context, page, limit int, status string) (*models.Page, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	if status != "" && !models.ValidStatus(status) {
		return nil, ErrInvalidStatus
	}
	offset := (page - 1) * limit

	query := "SELECT " + manifestationColumns + " FROM manifestations"
	countQuery := "SELECT COUNT(*) FROM manifestations"
	args := []any{}
	if status != "" {
		query += " WHERE status = $1"
		countQuery += " WHERE status = $1"
		args = append(args, status)
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d OFFSET %d", limit, offset)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query manifestations: %w", err)
	}
	defer rows.Close()

	result := &models.Page{Data: []models.Manifestation{}, Page: page}
	for rows.Next() {
		var m models.Manifestation
		if err := scanManifestation(rows, &m); err != nil {
			return nil, fmt.Errorf("scan manifestation: %w", err)
		}
		result.Data = append(result.Data, m)
	}
	rows.Close()

	if err := s.db.QueryRow(ctx, countQuery, args...).Scan(&result.Total); err != nil {
		return nil, fmt.Errorf("count manifestations: %w", err)
	}
	result.TotalPages = int((result.Total + int64(limit) - 1) / int64(limit))

	return result, nil
}

// SetStatus moves a manifestation to a new triage status. Unknown status
// strings are rejected before any write; no transition direction is
// enforced beyond that.
func (s *ManifestationService) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	if !models.ValidStatus(status) {
		return ErrInvalidStatus
	}

	tag, err := s.db.Exec(ctx, "UPDATE manifestations SET status = $1 WHERE id = $2", status, id)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	s.logger.Infow("Status updated", "id", id, "status", status)
	return nil
}

// Redact rewrites the displayed text of a manifestation and sets its
// publication flag. The pre-edit text is preserved in original_text exactly
// once; later redactions never touch it. A human reviewed the new text, so
// the AI PII gate is deliberately bypassed here.
//
// The row is locked for the duration of the transaction so two concurrent
// staff edits cannot lose an update.
func (s *ManifestationService) Redact(ctx context.Context, id uuid.UUID, newText string, makePublic bool) error {
	if strings.TrimSpace(newText) == "" {
		return ErrEmptyText
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin redact tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var currentText string
	var originalText *string
	row := tx.QueryRow(ctx,
		"SELECT text, original_text FROM manifestations WHERE id = $1 FOR UPDATE", id)
	if err := row.Scan(&currentText, &originalText); err != nil {
		if err == pgx.ErrNoRows {
			return ErrNotFound
		}
		return fmt.Errorf("lock manifestation: %w", err)
	}

	originalToSave := redactionOriginal(currentText, originalText)

	_, err = tx.Exec(ctx, `
		UPDATE manifestations
		SET text = $1, original_text = $2, is_public = $3, was_edited = TRUE
		WHERE id = $4`,
		newText, originalToSave, makePublic, id,
	)
	if err != nil {
		return fmt.Errorf("update manifestation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit redact tx: %w", err)
	}

	s.cache.Invalidate(ctx)
	s.logger.Infow("Manifestation redacted", "id", id, "make_public", makePublic)
	return nil
}

// AddResponse appends one entry to a manifestation's history. Entries are
// append-only; there is no edit or delete path.
func (s *ManifestationService) AddResponse(ctx context.Context, id uuid.UUID, message string, isAdmin bool) (*models.Response, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyText
	}

	resp := &models.Response{
		ID:              uuid.New(),
		ManifestationID: id,
		Message:         message,
		IsAdmin:         isAdmin,
		CreatedAt:       time.Now(),
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO manifestation_responses (id, manifestation_id, message, is_admin, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		resp.ID, resp.ManifestationID, resp.Message, resp.IsAdmin, resp.CreatedAt,
	)
	if err != nil {
		// The FK is the existence check; a missing manifestation
		// surfaces as a constraint violation.
		return nil, fmt.Errorf("insert response: %w", err)
	}

	return resp, nil
}

// AttachmentExists reports whether a stored file path belongs to a known
// attachment. The file-serving path uses this so a missing row and a
// missing file are indistinguishable to a prober.
func (s *ManifestationService) AttachmentExists(ctx context.Context, filePath string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM attachments WHERE file_path = $1)", filePath,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check attachment: %w", err)
	}
	return exists, nil
}

// Stats aggregates the admin dashboard numbers: totals, pending count,
// by-type distribution and the last 7 days of submissions.
func (s *ManifestationService) Stats(ctx context.Context) (*models.DashboardStats, error) {
	var stats models.DashboardStats
	if s.cache.Get(ctx, "dashboard_stats", &stats) {
		return &stats, nil
	}

	if err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM manifestations").Scan(&stats.Total); err != nil {
		return nil, fmt.Errorf("count total: %w", err)
	}
	if err := s.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM manifestations WHERE status = $1", models.StatusReceived,
	).Scan(&stats.Pending); err != nil {
		return nil, fmt.Errorf("count pending: %w", err)
	}

	rows, err := s.db.Query(ctx,
		"SELECT type, COUNT(*) FROM manifestations GROUP BY type ORDER BY COUNT(*) DESC")
	if err != nil {
		return nil, fmt.Errorf("query type distribution: %w", err)
	}
	defer rows.Close()
	stats.ByType = []models.TypeCount{}
	for rows.Next() {
		var tc models.TypeCount
		if err := rows.Scan(&tc.Type, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan type count: %w", err)
		}
		stats.ByType = append(stats.ByType, tc)
	}
	rows.Close()

	trows, err := s.db.Query(ctx, `
		SELECT DATE(created_at)::TEXT, COUNT(*)
		FROM manifestations
		WHERE created_at >= NOW() - INTERVAL '7 days'
		GROUP BY DATE(created_at)
		ORDER BY DATE(created_at) ASC`)
	if err != nil {
		return nil, fmt.Errorf("query trend: %w", err)
	}
	defer trows.Close()
	stats.Trend = []models.TrendPoint{}
	for trows.Next() {
		var tp models.TrendPoint
		if err := trows.Scan(&tp.Date, &tp.Count); err != nil {
			return nil, fmt.Errorf("scan trend point: %w", err)
		}
		stats.Trend = append(stats.Trend, tp)
	}

	s.cache.Set(ctx, "dashboard_stats", &stats)
	return &stats, nil
}
