// Package models defines the data structures used across the application.
// These map to the PostgreSQL schema created by internal/database.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Manifestation categories. These mirror the fixed set the classifier is
// allowed to choose from; user input is validated against them on submission.
const (
	TypeDenuncia   = "Denúncia"
	TypeReclamacao = "Reclamação"
	TypeSugestao   = "Sugestão"
	TypeElogio     = "Elogio"
	TypeInformacao = "Informação"
)

// Categories returns the fixed category enumeration in display order.
func Categories() []string {
	return []string{TypeDenuncia, TypeReclamacao, TypeSugestao, TypeElogio, TypeInformacao}
}

// ValidCategory reports whether t is one of the fixed categories.
func ValidCategory(t string) bool {
	for _, c := range Categories() {
		if c == t {
			return true
		}
	}
	return false
}

// Triage statuses. "archived" is reachable from any state and no transition
// is forward-only; staff may reopen resolved or archived records.
const (
	StatusReceived   = "received"
	StatusInAnalysis = "in_analysis"
	StatusResolved   = "resolved"
	StatusArchived   = "archived"
)

// ValidStatus reports whether s is a known triage status.
func ValidStatus(s string) bool {
	switch s {
	case StatusReceived, StatusInAnalysis, StatusResolved, StatusArchived:
		return true
	}
	return false
}

// Manifestation is a citizen-submitted report. The protocol is the public
// tracking identifier and the only access credential for lookups.
type Manifestation struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	Protocol     string     `json:"protocol" db:"protocol"`
	Text         string     `json:"text" db:"text"`
	OriginalText *string    `json:"original_text,omitempty" db:"original_text"`
	Type         string     `json:"type" db:"type"`
	IsAnonymous  bool       `json:"is_anonymous" db:"is_anonymous"`
	IsPublic     bool       `json:"is_public" db:"is_public"`
	WasEdited    bool       `json:"was_edited" db:"was_edited"`
	Status       string     `json:"status" db:"status"`
	HasAudio     bool       `json:"has_audio" db:"has_audio"`
	HasVideo     bool       `json:"has_video" db:"has_video"`
	ImageCount   int        `json:"image_count" db:"image_count"`
	Name         *string    `json:"name,omitempty" db:"name"`
	CPF          *string    `json:"cpf,omitempty" db:"cpf"`
	Latitude     *float64   `json:"latitude,omitempty" db:"latitude"`
	Longitude    *float64   `json:"longitude,omitempty" db:"longitude"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

// Attachment belongs to exactly one manifestation and is cascade-deleted
// with it. FilePath is the sanitized on-disk name relative to the upload
// directory, never the original client filename.
type Attachment struct {
	ID              uuid.UUID `json:"id" db:"id"`
	ManifestationID uuid.UUID `json:"manifestation_id" db:"manifestation_id"`
	FilePath        string    `json:"file_path" db:"file_path"`
	FileType        string    `json:"file_type" db:"file_type"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// Response is one append-only history entry on a manifestation. Entries are
// never edited or deleted.
type Response struct {
	ID              uuid.UUID `json:"id" db:"id"`
	ManifestationID uuid.UUID `json:"manifestation_id" db:"manifestation_id"`
	Message         string    `json:"message" db:"message"`
	IsAdmin         bool      `json:"is_admin" db:"is_admin"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// Admin is a staff account for the triage dashboard.
type Admin struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         string    `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// SubmissionRequest carries the parsed fields of a citizen submission.
type SubmissionRequest struct {
	Text        string
	Type        string
	IsAnonymous bool
	Name        string
	CPF         string
	Latitude    *float64
	Longitude   *float64
	Attachments []AttachmentRef
}

// AttachmentRef points at an already-stored upload.
type AttachmentRef struct {
	FilePath string
	FileType string
}

// SubmitReceipt is returned to the citizen after a successful submission.
type SubmitReceipt struct {
	ID       uuid.UUID `json:"id"`
	Protocol string    `json:"protocol"`
	Status   string    `json:"status"`
	IsPublic bool      `json:"is_public"`
}

// ManifestationDetail is the protocol-lookup response: the full record plus
// its attachments and response history.
type ManifestationDetail struct {
	Manifestation
	Attachments []Attachment `json:"attachments"`
	Responses   []Response   `json:"responses"`
}

// PublicEntry is one row of the public feed. Only the fields safe to show
// without the protocol are included.
type PublicEntry struct {
	ID        uuid.UUID `json:"id"`
	Text      string    `json:"text"`
	Type      string    `json:"type"`
	WasEdited bool      `json:"was_edited"`
	CreatedAt time.Time `json:"created_at"`
}

// Page is a paginated admin listing.
type Page struct {
	Data       []Manifestation `json:"data"`
	Total      int64           `json:"total"`
	Page       int             `json:"page"`
	TotalPages int             `json:"total_pages"`
}

// TypeCount is one slice of the by-type distribution.
type TypeCount struct {
	Type  string `json:"type"`
	Count int64  `json:"count"`
}

// TrendPoint is one day of the submission trend.
type TrendPoint struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// DashboardStats is the admin dashboard summary.
type DashboardStats struct {
	Total   int64        `json:"total"`
	Pending int64        `json:"pending"`
	ByType  []TypeCount  `json:"by_type"`
	Trend   []TrendPoint `json:"trend"`
}

// HealthStatus represents the server health check response.
type HealthStatus struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Uptime   string `json:"uptime"`
	Database string `json:"database,omitempty"`
}
