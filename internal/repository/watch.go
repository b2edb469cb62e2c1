package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/debemdeboas/quill/internal/model"
)

// GetLatestModifiedTime returns the newest modified_at, or nil when the
// table is empty.
func (r *DBDocumentRepository) GetLatestModifiedTime(ctx context.Context) (*time.Time, error) {
	var latestTimeStr sql.NullString
	err := r.db.QueryRow(ctx, `SELECT MAX(modified_at) FROM documents`).Scan(&latestTimeStr)
	if err != nil {
		return nil, fmt.Errorf("error scanning latest modified time: %w", err)
	}

	if !latestTimeStr.Valid {
		return nil, nil
	}

	// The go-sqlite3 driver returns a string for MAX(), so we must parse it.
	timeFormats := []string{
		"2006-01-02 15:04:05.999999999-07:00",
		time.RFC3339Nano,
		time.RFC3339,
	}

	var parseErr error
	for _, format := range timeFormats {
		latestTime, err := time.Parse(format, latestTimeStr.String)
		if err == nil {
			return &latestTime, nil
		}
		parseErr = err
	}

	return nil, fmt.Errorf("error parsing latest modified time '%s' with any known format: %w", latestTimeStr.String, parseErr)
}

// Watch polls the table until ctx is done and calls the reload notifier for
// each document whose body changed, appeared or disappeared since the last
// poll. It picks up writes made by other processes sharing the database.
func (r *DBDocumentRepository) Watch(ctx context.Context, interval time.Duration) {
	known, err := r.snapshot(ctx)
	if err != nil {
		repoLogger.Error().Err(err).Msg("Error taking initial document snapshot")
		known = map[model.DocumentID]string{}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		known = r.poll(ctx, known)
	}
}

func (r *DBDocumentRepository) poll(ctx context.Context, known map[model.DocumentID]string) map[model.DocumentID]string {
	latestTime, err := r.GetLatestModifiedTime(ctx)
	if err != nil {
		repoLogger.Error().Err(err).Msg("Error checking latest modification time")
		return known
	}

	// A lightweight check first; deletes do not move the timestamp, so the
	// row count is compared too.
	if r.lastModifiedTime != nil && latestTime != nil && !latestTime.After(*r.lastModifiedTime) && r.count(ctx) == len(known) {
		repoLogger.Debug().Msg("No documents modified, skipping reload")
		return known
	}
	r.lastModifiedTime = latestTime

	current, err := r.snapshot(ctx)
	if err != nil {
		repoLogger.Error().Err(err).Msg("Error reloading documents")
		return known
	}

	for id, hash := range current {
		if prev, ok := known[id]; !ok || prev != hash {
			repoLogger.Info().Str("document_id", string(id)).Msg("Document changed")
			r.documentsCache.Delete(id)
			r.notifyReload(id)
		}
	}
	for id := range known {
		if _, ok := current[id]; !ok {
			repoLogger.Info().Str("document_id", string(id)).Msg("Document removed")
			r.documentsCache.Delete(id)
			r.notifyReload(id)
		}
	}

	return current
}

func (r *DBDocumentRepository) snapshot(ctx context.Context) (map[model.DocumentID]string, error) {
	rows, err := r.db.Query(ctx, `SELECT id, body_hash FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("error querying document hashes: %w", err)
	}
	defer rows.Close()

	hashes := make(map[model.DocumentID]string)
	for rows.Next() {
		var id model.DocumentID
		var hash sql.NullString
		if err := rows.Scan(&id, &hash); err != nil {
			return nil, fmt.Errorf("error scanning document hash: %w", err)
		}
		hashes[id] = hash.String
	}
	return hashes, rows.Err()
}

func (r *DBDocumentRepository) count(ctx context.Context) int {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return -1
	}
	return n
}

func (r *DBDocumentRepository) notifyReload(id model.DocumentID) {
	if r.reloadNotifier != nil {
		r.reloadNotifier(id)
	}
}
