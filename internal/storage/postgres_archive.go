package storage

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"

	"github.com/example/uniride/internal/models"
)

type PostgresArchive struct {
	db *sql.DB
}

func NewPostgresArchive(dsn string) (*PostgresArchive, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresArchive{db: db}, nil
}

// SaveRating upserts on (ride_id, rater_id): a re-rating replaces the
// archived row the same way it replaces the KV record.
func (p *PostgresArchive) SaveRating(ctx context.Context, rec *models.RatingRecord) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO ratings(ride_id, rater_id, target_id, rating, review, created_at)
		VALUES($1,$2,$3,$4,$5,$6)
		ON CONFLICT (ride_id, rater_id) DO UPDATE SET rating=EXCLUDED.rating, review=EXCLUDED.review, created_at=EXCLUDED.created_at`,
		rec.RideID, rec.RaterID, rec.TargetID, rec.Rating, rec.Review, rec.CreatedAt)
	return err
}

func (p *PostgresArchive) Close() error { return p.db.Close() }
