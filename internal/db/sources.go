package db

import (
	"database/sql"
	"errors"
	"fmt"

	"mediadigest/internal/models"
)

// CreateSource registers a source, or returns the existing row when the URL
// is already known. Registration is idempotent on the canonical URL.
func CreateSource(url, name string, kind models.SourceKind) (models.Source, bool, error) {
	source := models.Source{}
	err := DB.Get(&source, `
		INSERT INTO sources (url, name, kind)
		VALUES ($1, $2, $3)
		ON CONFLICT (url) DO NOTHING
		RETURNING *`, url, name, kind)
	if err == nil {
		return source, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return source, false, fmt.Errorf("insert source: %w", err)
	}

	err = DB.Get(&source, "SELECT * FROM sources WHERE url = $1", url)
	if err != nil {
		return source, false, fmt.Errorf("load source by url: %w", err)
	}
	return source, false, nil
}

func GetSourceByID(id int) (models.Source, error) {
	source := models.Source{}
	err := DB.Get(&source, "SELECT * FROM sources WHERE id = $1", id)
	return source, err
}

func ListEnabledSources() ([]models.Source, error) {
	var sources []models.Source
	err := DB.Select(&sources, "SELECT * FROM sources WHERE enabled ORDER BY id")
	return sources, err
}

// TouchSourcePolled records a successful poll. Failed fetches leave the
// timestamp alone so the next tick retries the same window.
func TouchSourcePolled(id int) error {
	_, err := DB.Exec("UPDATE sources SET last_polled_at = NOW() WHERE id = $1", id)
	return err
}
