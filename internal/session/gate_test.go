package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanAccess(t *testing.T) {
	cases := []struct {
		name    string
		session Session
		want    Decision
	}{
		{
			name:    "no identity",
			session: Anonymous,
			want:    RedirectTo(LoginView),
		},
		{
			name:    "unverified",
			session: Session{Identity: &Identity{ID: 1}, EmailVerified: false},
			want:    RedirectTo(VerifyView),
		},
		{
			name:    "verified",
			session: Session{Identity: &Identity{ID: 1}, EmailVerified: true},
			want:    Allowed,
		},
		{
			name:    "verified flag without identity",
			session: Session{EmailVerified: true},
			want:    RedirectTo(LoginView),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CanAccess(tc.session)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.want == Allowed, got.IsAllowed())
		})
	}
}
