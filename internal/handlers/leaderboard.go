package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jjudge-oj/practice/internal/leaderboard"
	"github.com/jjudge-oj/practice/internal/services"
)

// LeaderboardHandler renders the top scores for the requesting user.
type LeaderboardHandler struct {
	scores leaderboard.ScoreFetcher
}

func NewLeaderboardHandler(scores leaderboard.ScoreFetcher) *LeaderboardHandler {
	return &LeaderboardHandler{scores: scores}
}

// LeaderboardRouter registers leaderboard routes. Callers mount it behind
// RequireAccess.
func LeaderboardRouter(r chi.Router, scores leaderboard.ScoreFetcher) {
	handler := NewLeaderboardHandler(scores)
	r.Get("/", handler.Get)
}

type LeaderboardErrorResponse struct {
	ErrorResponse
	Board leaderboard.Board `json:"board"`
}

func (h *LeaderboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	board, err := leaderboard.Load(r.Context(), h.scores, SessionFromContext(r.Context()))
	if err != nil {
		status := http.StatusInternalServerError
		if services.IsFetchError(err) {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, LeaderboardErrorResponse{
			ErrorResponse: ErrorResponse{Error: "could not load leaderboard", Code: "fetch-failed"},
			Board:         leaderboard.Board{Rows: []leaderboard.Row{}, Empty: true},
		})
		return
	}
	writeJSON(w, http.StatusOK, board)
}
