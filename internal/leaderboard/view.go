// Package leaderboard projects score records into display rows.
package leaderboard

import (
	"context"
	"net/url"
	"strconv"

	"github.com/jjudge-oj/practice/internal/session"
	"github.com/jjudge-oj/practice/types"
)

// Limit is how many records the leaderboard shows.
const Limit = 50

const (
	currentUserBadge = "(YOU)"
	avatarBaseURL    = "https://ui-avatars.com/api/"
)

var medals = [...]string{"🥇", "🥈", "🥉"}

// Row is one rendered leaderboard line.
type Row struct {
	Rank          int    `json:"rank"`
	Marker        string `json:"marker"`
	UserID        int    `json:"user_id"`
	Username      string `json:"username"`
	AvatarURL     string `json:"avatar_url"`
	Score         int    `json:"score"`
	IsCurrentUser bool   `json:"is_current_user"`
	Badge         string `json:"badge,omitempty"`
}

// Board is the rendered leaderboard.
type Board struct {
	Rows  []Row `json:"rows"`
	Empty bool  `json:"empty"`
}

// ScoreFetcher is the score store query the leaderboard reads.
type ScoreFetcher interface {
	FetchTopScores(ctx context.Context, limit int) ([]types.ScoreRecord, error)
}

// Load fetches the top scores and renders them for s.
func Load(ctx context.Context, scores ScoreFetcher, s session.Session) (Board, error) {
	records, err := scores.FetchTopScores(ctx, Limit)
	if err != nil {
		return Board{}, err
	}
	rows := Rows(records, s)
	return Board{Rows: rows, Empty: len(rows) == 0}, nil
}

// Rows renders records in the order given. Ordering and truncation belong
// to the score store.
func Rows(records []types.ScoreRecord, s session.Session) []Row {
	rows := make([]Row, 0, len(records))
	for i, record := range records {
		row := Row{
			Rank:          i + 1,
			Marker:        RankMarker(i),
			UserID:        record.UserID,
			Username:      record.Username,
			AvatarURL:     AvatarURL(record),
			Score:         record.Score,
			IsCurrentUser: s.Present() && record.UserID == s.Identity.ID,
		}
		if row.IsCurrentUser {
			row.Badge = currentUserBadge
		}
		rows = append(rows, row)
	}
	return rows
}

// RankMarker returns a medal for the first three positions and the
// one-based ordinal otherwise.
func RankMarker(position int) string {
	if position >= 0 && position < len(medals) {
		return medals[position]
	}
	return strconv.Itoa(position + 1)
}

// AvatarURL returns the uploaded photo or a placeholder derived from the
// username.
func AvatarURL(record types.ScoreRecord) string {
	if record.PhotoURL != "" {
		return record.PhotoURL
	}
	q := url.Values{}
	q.Set("name", record.Username)
	q.Set("background", "random")
	q.Set("color", "fff")
	q.Set("size", "64")
	return avatarBaseURL + "?" + q.Encode()
}
