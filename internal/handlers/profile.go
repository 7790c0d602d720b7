package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jjudge-oj/practice/internal/services"
	"github.com/jjudge-oj/practice/internal/session"
	"github.com/jjudge-oj/practice/internal/storage"
	"github.com/jjudge-oj/practice/internal/store"
	"github.com/jjudge-oj/practice/types"
)

const formFieldAvatar = "avatar"

// Users reads account records.
type Users interface {
	GetByID(ctx context.Context, id int) (types.User, error)
}

// Avatars stores and serves profile pictures.
type Avatars interface {
	Enabled() bool
	Upload(ctx context.Context, userID int, r io.Reader) (types.User, error)
	Open(ctx context.Context, key string) (io.ReadCloser, string, error)
}

// Reloader refreshes an identity after its record changed.
type Reloader interface {
	ReloadIdentity(ctx context.Context, identity *session.Identity) (session.Session, error)
}

// ProfileHandler serves the account page and its avatar uploads.
type ProfileHandler struct {
	users    Users
	avatars  Avatars
	reloader Reloader
}

func NewProfileHandler(users Users, avatars Avatars, reloader Reloader) *ProfileHandler {
	return &ProfileHandler{users: users, avatars: avatars, reloader: reloader}
}

// ProfileRouter registers profile routes. Callers mount it behind
// RequireAccess.
func ProfileRouter(r chi.Router, users Users, avatars Avatars, reloader Reloader) {
	handler := NewProfileHandler(users, avatars, reloader)
	r.Get("/", handler.Get)
	r.Put("/avatar", handler.UploadAvatar)
}

// AvatarRouter serves stored avatars. It is public so leaderboard images
// load without credentials.
func AvatarRouter(r chi.Router, avatars Avatars) {
	handler := NewProfileHandler(nil, avatars, nil)
	r.Get("/*", handler.ServeAvatar)
}

type ProfileResponse struct {
	User           types.User `json:"user"`
	AvatarsEnabled bool       `json:"avatars_enabled"`
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := SessionFromContext(r.Context()).UserID()
	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	writeJSON(w, http.StatusOK, ProfileResponse{User: user, AvatarsEnabled: h.avatars.Enabled()})
}

// UploadAvatar accepts either a raw image body or a multipart form with an
// "avatar" file field.
func (h *ProfileHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	if !h.avatars.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "avatar uploads are disabled")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, services.MaxAvatarBytes+(64<<10))
	var body io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile(formFieldAvatar)
		if err != nil {
			writeError(w, http.StatusBadRequest, "missing avatar file")
			return
		}
		defer file.Close()
		body = file
	}

	s := SessionFromContext(r.Context())
	user, err := h.avatars.Upload(r.Context(), s.UserID(), body)
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, services.ErrAvatarTooLarge), errors.As(err, &maxErr):
			writeError(w, http.StatusRequestEntityTooLarge, "avatar is too large")
		case errors.Is(err, services.ErrUnsupportedImage):
			writeError(w, http.StatusUnsupportedMediaType, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to store avatar")
		}
		return
	}

	// Push the new photo to the user's other open clients.
	if h.reloader != nil {
		_, _ = h.reloader.ReloadIdentity(r.Context(), s.Identity)
	}
	writeJSON(w, http.StatusOK, ProfileResponse{User: user, AvatarsEnabled: true})
}

func (h *ProfileHandler) ServeAvatar(w http.ResponseWriter, r *http.Request) {
	key := "avatars/" + chi.URLParam(r, "*")
	rc, contentType, err := h.avatars.Open(r.Context(), key)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAvatarsDisabled),
			errors.Is(err, services.ErrUnsupportedImage),
			errors.Is(err, storage.ErrObjectNotFound):
			writeError(w, http.StatusNotFound, "avatar not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to load avatar")
		}
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentType)
	// Keys are content addressed, so a key never changes its bytes.
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}
