package services

import (
	"context"
	"testing"
	"time"

	"github.com/kestrelworks/orgvault/internal/repos"
	"github.com/kestrelworks/orgvault/internal/requestdata"
)

func newAuthService(t *testing.T) (AuthService, UserService) {
	t.Helper()
	db := newServiceDB(t)
	log := newTestLogger(t)
	userService := NewUserService(db, log, repos.NewUserRepo(db, log))
	authService := NewAuthService(db, log, userService, NewMemoryTokenStore(), "test-secret", time.Minute, time.Hour)
	return authService, userService
}

func TestLoginRefreshLogoutFlow(t *testing.T) {
	ctx := context.Background()
	auth, _ := newAuthService(t)

	if _, _, err := auth.RegisterUser(ctx, CreateUserInput{
		Email:    "flow@example.com",
		Password: "longenough",
		FullName: "Flow",
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, _, err := auth.LoginUser(ctx, "flow@example.com", "wrong-password"); err == nil {
		t.Fatal("login with wrong password succeeded")
	}

	access, refresh, err := auth.LoginUser(ctx, "flow@example.com", "longenough")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if access == "" || refresh == "" {
		t.Fatal("login returned empty tokens")
	}

	// Rotation: the old refresh token is consumed.
	access2, refresh2, err := auth.RefreshUser(ctx, refresh)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if access2 == "" || refresh2 == refresh {
		t.Fatal("refresh did not rotate the token pair")
	}
	if _, _, err := auth.RefreshUser(ctx, refresh); err == nil {
		t.Fatal("reused refresh token accepted")
	}

	if err := auth.LogoutUser(ctx, refresh2); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, _, err := auth.RefreshUser(ctx, refresh2); err == nil {
		t.Fatal("refresh after logout accepted")
	}
}

func TestSetContextFromToken(t *testing.T) {
	ctx := context.Background()
	auth, userService := newAuthService(t)

	user, _, err := auth.RegisterUser(ctx, CreateUserInput{
		Email:    "claims@example.com",
		Password: "longenough",
		FullName: "Claims",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	access, _, err := auth.LoginUser(ctx, "claims@example.com", "longenough")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	authed, err := auth.SetContextFromToken(ctx, access)
	if err != nil {
		t.Fatalf("set context: %v", err)
	}
	rd := requestdata.GetRequestData(authed)
	if rd == nil || rd.UserID != user.ID {
		t.Fatalf("request data = %+v, want user %s", rd, user.ID)
	}

	if _, err := auth.SetContextFromToken(ctx, "not-a-jwt"); err == nil {
		t.Fatal("garbage token accepted")
	}

	// Deactivated accounts cannot authenticate even with a valid JWT.
	inactive := false
	if _, _, err := userService.Update(ctx, user.ID, UpdateUserInput{IsActive: &inactive}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := auth.SetContextFromToken(ctx, access); err == nil {
		t.Fatal("deactivated account authenticated")
	}
}

func TestLoginDeactivatedAccount(t *testing.T) {
	ctx := context.Background()
	auth, userService := newAuthService(t)

	user, _, err := auth.RegisterUser(ctx, CreateUserInput{
		Email:    "inactive@example.com",
		Password: "longenough",
		FullName: "Inactive",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	inactive := false
	if _, _, err := userService.Update(ctx, user.ID, UpdateUserInput{IsActive: &inactive}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, _, err := auth.LoginUser(ctx, "inactive@example.com", "longenough"); err == nil {
		t.Fatal("deactivated account logged in")
	}
}
