package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/jjudge-oj/practice/internal/leaderboard"
	"github.com/jjudge-oj/practice/internal/services"
	"github.com/jjudge-oj/practice/internal/session"
	"github.com/jjudge-oj/practice/internal/storage"
	"github.com/jjudge-oj/practice/internal/store"
	"github.com/jjudge-oj/practice/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeScoreRepo struct {
	records []types.ScoreRecord
	photos  map[int]string
	err     error
}

func (f *fakeScoreRepo) FetchTopScores(_ context.Context, limit int) ([]types.ScoreRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.records) > limit {
		return f.records[:limit], nil
	}
	return f.records, nil
}

func (f *fakeScoreRepo) Upsert(_ context.Context, record types.ScoreRecord) error {
	f.records = append(f.records, record)
	return nil
}

func (f *fakeScoreRepo) SetPhotoURL(_ context.Context, userID int, photoURL string) error {
	if f.photos == nil {
		f.photos = map[int]string{}
	}
	f.photos[userID] = photoURL
	return nil
}

type fakeUserRepo struct {
	users map[int]types.User
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	u, ok := f.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserRepo) GetByEmail(context.Context, string) (types.User, error) {
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) Update(_ context.Context, user types.User) (types.User, error) {
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) Delete(_ context.Context, id int) error {
	delete(f.users, id)
	return nil
}

func TestLeaderboard(t *testing.T) {
	identity := newFakeIdentity()
	identity.grant("tok", 2, true)
	repo := &fakeScoreRepo{records: []types.ScoreRecord{
		{UserID: 1, Username: "ada", Score: 30},
		{UserID: 2, Username: "grace", Score: 20, PhotoURL: "http://img/grace.png"},
		{UserID: 3, Username: "linus", Score: 10},
		{UserID: 4, Username: "ken", Score: 5},
	}}

	r := chi.NewRouter()
	r.Use(LoadSession(identity))
	r.With(RequireAccess).Route("/leaderboard", func(r chi.Router) {
		LeaderboardRouter(r, services.NewScoreService(repo))
	})

	rec := doJSON(t, r, http.MethodGet, "/leaderboard/", "tok", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	board := decodeBody[leaderboard.Board](t, rec)
	require.Len(t, board.Rows, 4)
	assert.Equal(t, "🥇", board.Rows[0].Marker)
	assert.Equal(t, "4", board.Rows[3].Marker)
	assert.True(t, board.Rows[1].IsCurrentUser)
	assert.Equal(t, "(YOU)", board.Rows[1].Badge)
	assert.Equal(t, "http://img/grace.png", board.Rows[1].AvatarURL)
	assert.Contains(t, board.Rows[0].AvatarURL, "ui-avatars.com")

	repo.err = errors.New("db down")
	rec = doJSON(t, r, http.MethodGet, "/leaderboard/", "tok", nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	resp := decodeBody[LeaderboardErrorResponse](t, rec)
	assert.True(t, resp.Board.Empty)

	repo.err = nil
	repo.records = nil
	rec = doJSON(t, r, http.MethodGet, "/leaderboard/", "tok", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[leaderboard.Board](t, rec).Empty)
}

type reloadRecorder struct {
	reloaded []int
}

func (r *reloadRecorder) ReloadIdentity(_ context.Context, identity *session.Identity) (session.Session, error) {
	r.reloaded = append(r.reloaded, identity.ID)
	return session.Session{Identity: identity, EmailVerified: true}, nil
}

func newProfileRouter(t *testing.T, objects services.ObjectStore) (http.Handler, *fakeUserRepo, *reloadRecorder) {
	t.Helper()
	identity := newFakeIdentity()
	identity.grant("tok", 1, true)
	users := &fakeUserRepo{users: map[int]types.User{1: {ID: 1, Username: "ada", Email: "ada@example.com"}}}
	avatars := services.NewAvatarService(objects, users, &fakeScoreRepo{}, "http://localhost:8080", nil)
	reloader := &reloadRecorder{}

	r := chi.NewRouter()
	r.Use(LoadSession(identity))
	r.With(RequireAccess).Route("/profile", func(r chi.Router) {
		ProfileRouter(r, users, avatars, reloader)
	})
	r.Route("/avatars", func(r chi.Router) {
		AvatarRouter(r, avatars)
	})
	return r, users, reloader
}

func TestProfileAvatarUpload(t *testing.T) {
	h, users, reloader := newProfileRouter(t, storage.NewMemory("avatars"))
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR-avatar")

	rec := doJSON(t, h, http.MethodGet, "/profile/", "tok", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decodeBody[ProfileResponse](t, rec)
	assert.True(t, profile.AvatarsEnabled)
	assert.Empty(t, profile.User.PhotoURL)

	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	part, err := mw.CreateFormFile("avatar", "me.png")
	require.NoError(t, err)
	_, _ = part.Write(png)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPut, "/profile/avatar", &form)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer tok")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	photoURL := users.users[1].PhotoURL
	require.True(t, strings.HasPrefix(photoURL, "http://localhost:8080/avatars/1/"))
	assert.Equal(t, []int{1}, reloader.reloaded)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, strings.TrimPrefix(photoURL, "http://localhost:8080"), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, png, rec.Body.Bytes())

	req = httptest.NewRequest(http.MethodPut, "/profile/avatar", strings.NewReader("not an image"))
	req.Header.Set("Authorization", "Bearer tok")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/avatars/1/"+strings.Repeat("0", 64)+".png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProfileAvatarDisabled(t *testing.T) {
	h, _, _ := newProfileRouter(t, nil)

	req := httptest.NewRequest(http.MethodPut, "/profile/avatar", bytes.NewReader([]byte("\x89PNG\r\n\x1a\n")))
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestResources(t *testing.T) {
	builtin, err := LoadResources("")
	require.NoError(t, err)
	require.NotEmpty(t, builtin)
	for _, res := range builtin {
		assert.NotEmpty(t, res.Title)
		assert.True(t, strings.HasPrefix(res.URL, "https://"), res.URL)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "resources.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- title: Docs\n  url: https://go.dev/doc/\n"), 0o600))
	custom, err := LoadResources(path)
	require.NoError(t, err)
	assert.Equal(t, []Resource{{Title: "Docs", URL: "https://go.dev/doc/"}}, custom)

	require.NoError(t, os.WriteFile(path, []byte("- title: Missing url\n"), 0o600))
	_, err = LoadResources(path)
	assert.Error(t, err)

	_, err = LoadResources(filepath.Join(dir, "absent.yaml"))
	assert.Error(t, err)

	identity := newFakeIdentity()
	identity.grant("tok", 1, true)
	r := chi.NewRouter()
	r.Use(LoadSession(identity))
	r.With(RequireAccess).Route("/resources", func(r chi.Router) {
		ResourcesRouter(r, custom)
	})
	rec := doJSON(t, r, http.MethodGet, "/resources/", "tok", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.JSONEq(t, `[{"category":"","title":"Docs","url":"https://go.dev/doc/"}]`, string(body))
}
