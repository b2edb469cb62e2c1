package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/debemdeboas/quill/internal/apperr"
	"github.com/debemdeboas/quill/internal/cache"
	"github.com/debemdeboas/quill/internal/db"
	"github.com/debemdeboas/quill/internal/model"
	"github.com/debemdeboas/quill/internal/util"
	"github.com/debemdeboas/quill/internal/util/compression"
	"github.com/google/uuid"
)

const documentColumns = `id, title, body, body_hash, asset_ref, user_id, author_display_name, created_at, modified_at`

type DBDocumentRepository struct { // implements content.DocumentStore
	documentsCache *cache.Cache[model.DocumentID, model.Document]

	reloadNotifier   func(model.DocumentID)
	lastModifiedTime *time.Time

	db         db.DB
	compressor compression.Compressor

	now func() time.Time
}

func NewDBDocumentRepository(db db.DB, compressor compression.Compressor) *DBDocumentRepository {
	if compressor == nil {
		compressor = compression.ZstdCompressor{}
	}
	return &DBDocumentRepository{
		documentsCache: cache.NewCache[model.DocumentID, model.Document](),

		db:         db,
		compressor: compressor,

		now: func() time.Time { return time.Now().UTC() },
	}
}

// SetReloadNotifier sets a function that will be called by Watch for every
// document changed outside this process.
func (r *DBDocumentRepository) SetReloadNotifier(notifier func(model.DocumentID)) {
	r.reloadNotifier = notifier
}

func (r *DBDocumentRepository) List(ctx context.Context) ([]model.Document, error) {
	rows, err := r.db.Query(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("error querying documents: %w", err)
	}
	defer rows.Close()

	docs := make([]model.Document, 0)
	docMap := make(map[model.DocumentID]model.Document)
	var latestModTime *time.Time

	for rows.Next() {
		doc, err := r.scan(rows)
		if err != nil {
			return nil, err
		}

		if latestModTime == nil || doc.ModifiedAt.After(*latestModTime) {
			t := doc.ModifiedAt
			latestModTime = &t
		}

		docs = append(docs, doc)
		docMap[doc.ID] = doc
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}

	r.lastModifiedTime = latestModTime
	r.documentsCache.SetTo(docMap)

	return docs, nil
}

// Get reads one document, from the cache when possible.
func (r *DBDocumentRepository) Get(ctx context.Context, id model.DocumentID) (model.Document, error) {
	if doc, ok := r.documentsCache.Get(id); ok {
		return doc, nil
	}

	row := r.db.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	doc, err := r.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Document{}, apperr.New(apperr.KindNotFound, "get", "document not found: "+string(id))
	}
	if err != nil {
		return model.Document{}, err
	}

	r.documentsCache.Set(id, doc)
	return doc, nil
}

func (r *DBDocumentRepository) Create(ctx context.Context, p model.Payload) (model.Document, error) {
	if err := p.Validate(); err != nil {
		return model.Document{}, apperr.Wrap(apperr.KindValidation, "create", err)
	}
	if p.AuthorID == "" {
		return model.Document{}, apperr.New(apperr.KindPermission, "create", "document has no author")
	}

	now := r.now()
	doc := model.Document{
		ID:                model.DocumentID(uuid.New().String()),
		Title:             p.Title,
		Body:              p.Body,
		AuthorID:          p.AuthorID,
		AuthorDisplayName: p.AuthorDisplayName,
		AssetRef:          p.AssetRef,
		CreatedAt:         now,
		ModifiedAt:        now,
	}

	compressed, err := r.compress(&doc)
	if err != nil {
		return model.Document{}, err
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO documents (`+documentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Title, compressed, doc.BodyHash, doc.AssetRef, doc.AuthorID, doc.AuthorDisplayName, doc.CreatedAt, doc.ModifiedAt,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return model.Document{}, apperr.Wrap(apperr.KindConflict, "create", err)
		}
		return model.Document{}, fmt.Errorf("error saving document: %w", err)
	}

	r.documentsCache.Set(doc.ID, doc)
	repoLogger.Debug().Str("document_id", string(doc.ID)).Msg("Document saved")

	return doc, nil
}

// Update rewrites the author-controlled fields of a document. The author is
// fixed at creation: a payload naming a different author is rejected.
func (r *DBDocumentRepository) Update(ctx context.Context, id model.DocumentID, p model.Payload) (model.Document, error) {
	if err := p.Validate(); err != nil {
		return model.Document{}, apperr.Wrap(apperr.KindValidation, "update", err)
	}

	r.documentsCache.Delete(id)
	doc, err := r.Get(ctx, id)
	if err != nil {
		return model.Document{}, err
	}
	if doc.AuthorID != p.AuthorID {
		return model.Document{}, apperr.New(apperr.KindPermission, "update", "author mismatch")
	}

	doc.Title = p.Title
	doc.Body = p.Body
	doc.AssetRef = p.AssetRef
	doc.AuthorDisplayName = p.AuthorDisplayName
	doc.ModifiedAt = r.now()

	compressed, err := r.compress(&doc)
	if err != nil {
		return model.Document{}, err
	}

	res, err := r.db.Exec(ctx,
		`UPDATE documents SET title = ?, body = ?, body_hash = ?, asset_ref = ?, author_display_name = ?, modified_at = ? WHERE id = ?`,
		doc.Title, compressed, doc.BodyHash, doc.AssetRef, doc.AuthorDisplayName, doc.ModifiedAt, doc.ID,
	)
	if err != nil {
		return model.Document{}, fmt.Errorf("error updating document: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.Document{}, apperr.New(apperr.KindNotFound, "update", "document not found: "+string(id))
	}

	r.documentsCache.Set(doc.ID, doc)
	repoLogger.Debug().Str("document_id", string(doc.ID)).Msg("Document updated")

	return doc, nil
}

func (r *DBDocumentRepository) Delete(ctx context.Context, id model.DocumentID) error {
	res, err := r.db.Exec(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("error deleting document: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error deleting document: %w", err)
	}
	if n == 0 {
		return apperr.New(apperr.KindNotFound, "delete", "document not found: "+string(id))
	}

	r.documentsCache.Delete(id)
	repoLogger.Debug().Str("document_id", string(id)).Msg("Document deleted")
	return nil
}

func (r *DBDocumentRepository) compress(doc *model.Document) ([]byte, error) {
	compressed, err := r.compressor.Compress([]byte(doc.Body))
	if err != nil {
		return nil, fmt.Errorf("error compressing body: %w", err)
	}
	doc.BodyHash = util.ContentHash(compressed)
	return compressed, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *DBDocumentRepository) scan(s scanner) (model.Document, error) {
	var (
		doc        model.Document
		compressed []byte
		bodyHash   sql.NullString
		assetRef   sql.NullString
		authorName sql.NullString
	)

	err := s.Scan(&doc.ID, &doc.Title, &compressed, &bodyHash, &assetRef, &doc.AuthorID, &authorName, &doc.CreatedAt, &doc.ModifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Document{}, err
	}
	if err != nil {
		return model.Document{}, fmt.Errorf("error scanning document: %w", err)
	}

	body, err := r.compressor.Decompress(compressed)
	if err != nil {
		return model.Document{}, fmt.Errorf("error decompressing body: %w", err)
	}

	doc.Body = string(body)
	doc.BodyHash = bodyHash.String
	doc.AssetRef = assetRef.String
	doc.AuthorDisplayName = authorName.String
	return doc, nil
}
