package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/jjudge-oj/practice/types"
	"go.uber.org/zap"
)

// MaxAvatarBytes bounds an uploaded avatar.
const MaxAvatarBytes = 2 << 20

var (
	ErrAvatarsDisabled  = errors.New("avatar storage is not configured")
	ErrAvatarTooLarge   = errors.New("avatar exceeds size limit")
	ErrUnsupportedImage = errors.New("avatar must be a PNG, JPEG, GIF or WebP image")
)

var avatarExtensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// ObjectStore is the part of object storage avatars need.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// AvatarService stores profile pictures under content-addressed keys and
// keeps the user and leaderboard records pointing at them.
type AvatarService struct {
	objects   ObjectStore
	users     UserRepository
	scores    ScoreRepository
	publicURL string
	logger    *zap.Logger
}

// NewAvatarService returns a service that rejects uploads when objects is nil.
func NewAvatarService(objects ObjectStore, users UserRepository, scores ScoreRepository, publicURL string, logger *zap.Logger) *AvatarService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvatarService{
		objects:   objects,
		users:     users,
		scores:    scores,
		publicURL: strings.TrimSuffix(publicURL, "/"),
		logger:    logger,
	}
}

// Enabled reports whether uploads are possible.
func (s *AvatarService) Enabled() bool {
	return s.objects != nil
}

// Upload stores the image read from r and points the user at it.
func (s *AvatarService) Upload(ctx context.Context, userID int, r io.Reader) (types.User, error) {
	if !s.Enabled() {
		return types.User{}, ErrAvatarsDisabled
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxAvatarBytes+1))
	if err != nil {
		return types.User{}, err
	}
	if len(data) > MaxAvatarBytes {
		return types.User{}, ErrAvatarTooLarge
	}
	contentType := http.DetectContentType(data)
	ext, ok := avatarExtensions[contentType]
	if !ok {
		return types.User{}, ErrUnsupportedImage
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return types.User{}, err
	}

	sum := sha256.Sum256(data)
	key := AvatarKey(userID, hex.EncodeToString(sum[:]), ext)
	if err := s.objects.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return types.User{}, fmt.Errorf("store avatar: %w", err)
	}

	previous := s.keyFromURL(user.PhotoURL)
	user.PhotoURL = s.publicURL + "/" + key
	user, err = s.users.Update(ctx, user)
	if err != nil {
		return types.User{}, err
	}
	if err := s.scores.SetPhotoURL(ctx, userID, user.PhotoURL); err != nil {
		return types.User{}, err
	}

	if previous != "" && previous != key {
		if err := s.objects.Delete(ctx, previous); err != nil {
			s.logger.Warn("delete previous avatar", zap.String("key", previous), zap.Error(err))
		}
	}
	return user, nil
}

// Open streams a stored avatar together with its content type.
func (s *AvatarService) Open(ctx context.Context, key string) (io.ReadCloser, string, error) {
	if !s.Enabled() {
		return nil, "", ErrAvatarsDisabled
	}
	if !validAvatarKey(key) {
		return nil, "", ErrUnsupportedImage
	}
	r, err := s.objects.Get(ctx, key)
	if err != nil {
		return nil, "", err
	}
	ext := strings.TrimPrefix(path.Ext(key), ".")
	for contentType, e := range avatarExtensions {
		if e == ext {
			return r, contentType, nil
		}
	}
	return r, "application/octet-stream", nil
}

// AvatarKey is the object key of an avatar with the given content digest.
func AvatarKey(userID int, digest, ext string) string {
	return fmt.Sprintf("avatars/%d/%s.%s", userID, digest, ext)
}

func (s *AvatarService) keyFromURL(photoURL string) string {
	key, ok := strings.CutPrefix(photoURL, s.publicURL+"/")
	if !ok || !validAvatarKey(key) {
		return ""
	}
	return key
}

// validAvatarKey accepts only keys shaped like AvatarKey output.
func validAvatarKey(key string) bool {
	parts := strings.Split(key, "/")
	if len(parts) != 3 || parts[0] != "avatars" {
		return false
	}
	if id, err := strconv.Atoi(parts[1]); err != nil || id < 1 {
		return false
	}
	name, ext, ok := strings.Cut(parts[2], ".")
	if !ok || len(name) != sha256.Size*2 {
		return false
	}
	if _, err := hex.DecodeString(name); err != nil {
		return false
	}
	for _, e := range avatarExtensions {
		if e == ext {
			return true
		}
	}
	return false
}
