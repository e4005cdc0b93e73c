package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mnemex-labs/mnemex/internal/model"
)

// CreateApp inserts a new App (tenant principal).
func (db *DB) CreateApp(ctx context.Context, app model.App) (model.App, error) {
	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	if app.CreatedAt.IsZero() {
		app.CreatedAt = time.Now().UTC()
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO apps (id, name, api_key_hash, user_id, role, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		app.ID, app.Name, app.APIKeyHash, app.UserID, app.Role, app.CreatedAt,
	)
	if err != nil {
		return model.App{}, fmt.Errorf("storage: create app: %w", err)
	}
	return app, nil
}

// GetApp retrieves an App by ID.
func (db *DB) GetApp(ctx context.Context, id uuid.UUID) (model.App, error) {
	var a model.App
	err := db.pool.QueryRow(ctx,
		`SELECT id, name, api_key_hash, user_id, role, created_at FROM apps WHERE id = $1`, id,
	).Scan(&a.ID, &a.Name, &a.APIKeyHash, &a.UserID, &a.Role, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.App{}, fmt.Errorf("storage: app %s: %w", id, ErrNotFound)
		}
		return model.App{}, fmt.Errorf("storage: get app: %w", err)
	}
	return a, nil
}

// FindAppByName retrieves an App by its unique name, used to resolve the
// bootstrap admin App at startup.
func (db *DB) FindAppByName(ctx context.Context, name string) (model.App, error) {
	var a model.App
	err := db.pool.QueryRow(ctx,
		`SELECT id, name, api_key_hash, user_id, role, created_at FROM apps WHERE name = $1`, name,
	).Scan(&a.ID, &a.Name, &a.APIKeyHash, &a.UserID, &a.Role, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.App{}, fmt.Errorf("storage: app %q: %w", name, ErrNotFound)
		}
		return model.App{}, fmt.Errorf("storage: find app: %w", err)
	}
	return a, nil
}

// ListAppsByUser returns all Apps registered under a user.
func (db *DB) ListAppsByUser(ctx context.Context, userID string) ([]model.App, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, name, api_key_hash, user_id, role, created_at FROM apps
		 WHERE user_id = $1 ORDER BY created_at`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list apps: %w", err)
	}
	defer rows.Close()

	var apps []model.App
	for rows.Next() {
		var a model.App
		if err := rows.Scan(&a.ID, &a.Name, &a.APIKeyHash, &a.UserID, &a.Role, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan app: %w", err)
		}
		apps = append(apps, a)
	}
	return apps, rows.Err()
}
