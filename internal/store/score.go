package store

import (
	"context"
	"database/sql"

	"github.com/jjudge-oj/practice/types"
)

// ScoreRepository handles persistence for leaderboard scores.
type ScoreRepository struct {
	db *sql.DB
}

func NewScoreRepository(db *sql.DB) *ScoreRepository {
	return &ScoreRepository{db: db}
}

// FetchTopScores returns at most limit records ordered by score, highest first.
// Ties are broken by user id so the order is stable between calls.
func (r *ScoreRepository) FetchTopScores(ctx context.Context, limit int) ([]types.ScoreRecord, error) {
	const query = `
		SELECT user_id, username, photo_url, score
		FROM scores
		ORDER BY score DESC, user_id
		LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]types.ScoreRecord, 0, limit)
	for rows.Next() {
		var record types.ScoreRecord
		if err := rows.Scan(&record.UserID, &record.Username, &record.PhotoURL, &record.Score); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// Upsert writes a score record, replacing any existing one for the user.
func (r *ScoreRepository) Upsert(ctx context.Context, record types.ScoreRecord) error {
	const query = `
		INSERT INTO scores (user_id, username, photo_url, score, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET username = EXCLUDED.username,
			photo_url = EXCLUDED.photo_url,
			score = EXCLUDED.score,
			updated_at = NOW()`
	_, err := r.db.ExecContext(ctx, query, record.UserID, record.Username, record.PhotoURL, record.Score)
	return err
}

// SetPhotoURL updates the avatar shown next to an existing score.
func (r *ScoreRepository) SetPhotoURL(ctx context.Context, userID int, photoURL string) error {
	const query = `UPDATE scores SET photo_url = $1, updated_at = NOW() WHERE user_id = $2`
	_, err := r.db.ExecContext(ctx, query, photoURL, userID)
	return err
}
