package services

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/jjudge-oj/practice/internal/storage"
	"github.com/jjudge-oj/practice/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func pngWith(tail byte) []byte {
	out := make([]byte, 0, len(pngHeader)+1)
	out = append(out, pngHeader...)
	return append(out, tail)
}

type fakeScores struct {
	records []types.ScoreRecord
	photos  map[int]string
	err     error
}

func (f *fakeScores) FetchTopScores(_ context.Context, limit int) ([]types.ScoreRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.records) {
		return f.records[:limit], nil
	}
	return f.records, nil
}

func (f *fakeScores) Upsert(_ context.Context, record types.ScoreRecord) error {
	f.records = append(f.records, record)
	return nil
}

func (f *fakeScores) SetPhotoURL(_ context.Context, userID int, photoURL string) error {
	if f.photos == nil {
		f.photos = map[int]string{}
	}
	f.photos[userID] = photoURL
	return nil
}

func newAvatarFixture(t *testing.T) (*AvatarService, *storage.Memory, *fakeUsers, *fakeScores) {
	t.Helper()
	objects := storage.NewMemory("avatars")
	users := newFakeUsers()
	_, err := users.Create(context.Background(), types.User{Email: "ada@example.com", Username: "ada"})
	require.NoError(t, err)
	scores := &fakeScores{}
	return NewAvatarService(objects, users, scores, "http://localhost:8080", nil), objects, users, scores
}

func TestAvatarUpload(t *testing.T) {
	ctx := context.Background()
	svc, objects, users, scores := newAvatarFixture(t)

	first, err := svc.Upload(ctx, 1, bytes.NewReader(pngWith(1)))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(first.PhotoURL, "http://localhost:8080/avatars/1/"))
	assert.True(t, strings.HasSuffix(first.PhotoURL, ".png"))
	assert.Equal(t, first.PhotoURL, users.byID[1].PhotoURL)
	assert.Equal(t, first.PhotoURL, scores.photos[1])

	firstKey := strings.TrimPrefix(first.PhotoURL, "http://localhost:8080/")
	ct, ok := objects.ContentType(firstKey)
	require.True(t, ok)
	assert.Equal(t, "image/png", ct)

	second, err := svc.Upload(ctx, 1, bytes.NewReader(pngWith(2)))
	require.NoError(t, err)
	assert.NotEqual(t, first.PhotoURL, second.PhotoURL)
	_, ok = objects.ContentType(firstKey)
	assert.False(t, ok, "previous avatar is removed")

	r, contentType, err := svc.Open(ctx, strings.TrimPrefix(second.PhotoURL, "http://localhost:8080/"))
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "image/png", contentType)
	assert.Equal(t, pngWith(2), data)
}

func TestAvatarUploadRejects(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newAvatarFixture(t)

	_, err := svc.Upload(ctx, 1, strings.NewReader("plain text"))
	assert.ErrorIs(t, err, ErrUnsupportedImage)

	big := append(append([]byte{}, pngHeader...), make([]byte, MaxAvatarBytes)...)
	_, err = svc.Upload(ctx, 1, bytes.NewReader(big))
	assert.ErrorIs(t, err, ErrAvatarTooLarge)

	disabled := NewAvatarService(nil, newFakeUsers(), &fakeScores{}, "http://localhost:8080", nil)
	assert.False(t, disabled.Enabled())
	_, err = disabled.Upload(ctx, 1, bytes.NewReader(pngHeader))
	assert.ErrorIs(t, err, ErrAvatarsDisabled)
}

func TestAvatarOpenRejectsForeignKeys(t *testing.T) {
	svc, _, _, _ := newAvatarFixture(t)
	for _, key := range []string{
		"../secrets",
		"avatars/1/not-a-digest.png",
		"avatars/x/" + strings.Repeat("a", 64) + ".png",
		"avatars/1/" + strings.Repeat("a", 64) + ".exe",
	} {
		_, _, err := svc.Open(context.Background(), key)
		assert.ErrorIs(t, err, ErrUnsupportedImage, key)
	}

	_, _, err := svc.Open(context.Background(), AvatarKey(1, strings.Repeat("a", 64), "png"))
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
}
