package storage

import (
	"context"

	"github.com/example/uniride/internal/models"
)

// RatingArchive is the optional durable sink for rating records. The KV
// store stays authoritative; the archive is an append-only audit trail.
type RatingArchive interface {
	SaveRating(ctx context.Context, rec *models.RatingRecord) error
}
