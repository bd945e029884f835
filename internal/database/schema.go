package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS manifestations (
		id UUID PRIMARY KEY,
		protocol TEXT NOT NULL UNIQUE,
		text TEXT NOT NULL,
		original_text TEXT,
		type TEXT NOT NULL DEFAULT 'Informação',
		is_anonymous BOOLEAN NOT NULL DEFAULT TRUE,
		is_public BOOLEAN NOT NULL DEFAULT FALSE,
		was_edited BOOLEAN NOT NULL DEFAULT FALSE,
		status TEXT NOT NULL DEFAULT 'received',
		has_audio BOOLEAN NOT NULL DEFAULT FALSE,
		has_video BOOLEAN NOT NULL DEFAULT FALSE,
		image_count INT NOT NULL DEFAULT 0,
		name TEXT,
		cpf TEXT,
		latitude DOUBLE PRECISION,
		longitude DOUBLE PRECISION,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS attachments (
		id UUID PRIMARY KEY,
		manifestation_id UUID NOT NULL REFERENCES manifestations(id) ON DELETE CASCADE,
		file_path TEXT NOT NULL,
		file_type TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS manifestation_responses (
		id UUID PRIMARY KEY,
		manifestation_id UUID NOT NULL REFERENCES manifestations(id) ON DELETE CASCADE,
		message TEXT NOT NULL,
		is_admin BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS admins (
		id UUID PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'admin',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_manifestations_public
		ON manifestations (created_at DESC) WHERE is_public`,
	`CREATE INDEX IF NOT EXISTS idx_manifestations_status
		ON manifestations (status)`,
}

// InitSchema creates the tables if they do not exist and seeds a default
// admin account when the admins table is empty.
func InitSchema(ctx context.Context, db *pgxpool.Pool, logger *zap.SugaredLogger) error {
	for _, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}

	var count int64
	if err := db.QueryRow(ctx, "SELECT COUNT(*) FROM admins").Scan(&count); err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	if count == 0 {
		hash, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash seed password: %w", err)
		}
		_, err = db.Exec(ctx,
			"INSERT INTO admins (id, username, password_hash, role) VALUES ($1, $2, $3, 'admin')",
			uuid.New(), "admin", string(hash),
		)
		if err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		logger.Warn("Default admin created: admin / admin123 (CHANGE THIS IN PRODUCTION)")
	}

	return nil
}
