// Package similar finds prior documents resembling the one being
// processed. Matches are advisory context for the generative stage and
// the reviewer; they are never authoritative, and an unavailable store
// just skips the stage.
package similar

import (
	"context"

	"github.com/glassboxhq/glassbox/internal/entity"
)

// Store is the similarity backend.
type Store interface {
	// Similar returns up to limit prior documents ranked by
	// similarity to the query text, best first.
	Similar(ctx context.Context, text string, limit int) ([]entity.SimilarDocument, error)
	// Add indexes a processed document for future queries.
	Add(ctx context.Context, documentID, summary, text string) error
	Close()
}
