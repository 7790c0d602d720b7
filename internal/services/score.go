package services

import (
	"context"

	"github.com/jjudge-oj/practice/types"
)

const (
	defaultScoreLimit = 50
	maxScoreLimit     = 100
)

type ScoreRepository interface {
	FetchTopScores(ctx context.Context, limit int) ([]types.ScoreRecord, error)
	Upsert(ctx context.Context, record types.ScoreRecord) error
	SetPhotoURL(ctx context.Context, userID int, photoURL string) error
}

// ScoreService is the score store behind the leaderboard.
type ScoreService struct {
	repo ScoreRepository
}

func NewScoreService(repo ScoreRepository) *ScoreService {
	return &ScoreService{repo: repo}
}

func (s *ScoreService) FetchTopScores(ctx context.Context, limit int) ([]types.ScoreRecord, error) {
	if limit <= 0 {
		limit = defaultScoreLimit
	}
	if limit > maxScoreLimit {
		limit = maxScoreLimit
	}
	records, err := s.repo.FetchTopScores(ctx, limit)
	if err != nil {
		return nil, &FetchError{Op: "scores", Err: err}
	}
	return records, nil
}

func (s *ScoreService) Upsert(ctx context.Context, record types.ScoreRecord) error {
	return s.repo.Upsert(ctx, record)
}

func (s *ScoreService) SetPhotoURL(ctx context.Context, userID int, photoURL string) error {
	return s.repo.SetPhotoURL(ctx, userID, photoURL)
}
