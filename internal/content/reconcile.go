package content

import (
	"slices"

	"github.com/debemdeboas/quill/internal/model"
)

// normalize orders docs newest first and keeps only the first occurrence of
// each id, so the local collection never holds duplicates.
func normalize(docs []model.Document) []model.Document {
	out := make([]model.Document, 0, len(docs))
	seen := make(map[model.DocumentID]struct{}, len(docs))
	for _, d := range docs {
		if _, dup := seen[d.ID]; dup {
			contentLogger.Warn().Str("document_id", string(d.ID)).Msg("Duplicate document id in listing, dropping")
			continue
		}
		seen[d.ID] = struct{}{}
		out = append(out, d)
	}

	slices.SortStableFunc(out, func(a, b model.Document) int {
		return -a.CreatedAt.Compare(b.CreatedAt)
	})
	return out
}
