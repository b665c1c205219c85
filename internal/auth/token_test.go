package auth

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"taxi/internal/domain"
)

func testUser() *domain.User {
	return &domain.User{ID: "rider-1", Username: "alice", Group: domain.UserGroupRider}
}

func TestAuthenticate_BearerHeader(t *testing.T) {
	t.Parallel()

	a := NewAuthenticator("secret", "taxi", time.Hour)
	token, err := a.Issue(testUser())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest("GET", "/taxi/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	identity, err := a.Authenticate(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if identity.Anonymous {
		t.Fatal("expected authenticated identity")
	}
	if identity.UserID != "rider-1" || identity.Username != "alice" || identity.Group != domain.UserGroupRider {
		t.Errorf("unexpected identity: %+v", identity)
	}
}

func TestAuthenticate_QueryParameter(t *testing.T) {
	t.Parallel()

	a := NewAuthenticator("secret", "", time.Hour)
	token, err := a.Issue(&domain.User{ID: "driver-1", Username: "bob", Group: domain.UserGroupDriver})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest("GET", "/taxi/?token="+token, nil)

	identity, err := a.Authenticate(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !identity.IsDriver() {
		t.Errorf("expected driver identity, got %+v", identity)
	}
}

func TestAuthenticate_RejectsBadTokens(t *testing.T) {
	t.Parallel()

	a := NewAuthenticator("secret", "taxi", time.Hour)

	other := NewAuthenticator("other-secret", "taxi", time.Hour)
	forged, _ := other.Issue(testUser())

	wrongIssuer := NewAuthenticator("secret", "someone-else", time.Hour)
	foreign, _ := wrongIssuer.Issue(testUser())

	expiredAuth := NewAuthenticator("secret", "taxi", time.Hour)
	expiredAuth.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _ := expiredAuth.Issue(testUser())

	testCases := []struct {
		name    string
		header  string
		wantErr error
	}{
		{name: "no token", header: "", wantErr: ErrMissingToken},
		{name: "garbage", header: "Bearer not-a-jwt", wantErr: ErrInvalidToken},
		{name: "wrong secret", header: "Bearer " + forged, wantErr: ErrInvalidToken},
		{name: "wrong issuer", header: "Bearer " + foreign, wantErr: ErrInvalidToken},
		{name: "expired", header: "Bearer " + expired, wantErr: ErrInvalidToken},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest("GET", "/taxi/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}

			identity, err := a.Authenticate(req)

			if !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
			if !identity.Anonymous {
				t.Errorf("expected anonymous identity, got %+v", identity)
			}
		})
	}
}
