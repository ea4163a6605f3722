package services

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/kestrelworks/orgvault/internal/logger"
	"github.com/kestrelworks/orgvault/internal/requestdata"
	"github.com/kestrelworks/orgvault/internal/types"
)

type JWTClaims struct {
	jwt.RegisteredClaims
}

func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("Failed to hash password: %w", err)
	}
	return string(hashed), nil
}

type AuthService interface {
	RegisterUser(ctx context.Context, input CreateUserInput) (*types.User, *types.UserVersion, error)
	LoginUser(ctx context.Context, email, password string) (string, string, error)
	RefreshUser(ctx context.Context, refreshToken string) (string, string, error)
	LogoutUser(ctx context.Context, refreshToken string) error
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	GetAccessTTL() time.Duration
}

type authService struct {
	db           *gorm.DB
	log          *logger.Logger
	userService  UserService
	tokenStore   TokenStore
	jwtSecretKey string
	accessTTL    time.Duration
	refreshTTL   time.Duration
}

func NewAuthService(
	db *gorm.DB,
	log *logger.Logger,
	userService UserService,
	tokenStore TokenStore,
	jwtSecretKey string,
	accessTTL time.Duration,
	refreshTTL time.Duration,
) AuthService {
	serviceLog := log.With("service", "AuthService")
	return &authService{
		db:           db,
		log:          serviceLog,
		userService:  userService,
		tokenStore:   tokenStore,
		jwtSecretKey: jwtSecretKey,
		accessTTL:    accessTTL,
		refreshTTL:   refreshTTL,
	}
}

func (as *authService) RegisterUser(ctx context.Context, input CreateUserInput) (*types.User, *types.UserVersion, error) {
	user, version, _, err := as.userService.Create(ctx, input)
	if err != nil {
		return nil, nil, err
	}
	return user, version, nil
}

func (as *authService) LoginUser(ctx context.Context, email, password string) (string, string, error) {
	user, version, err := as.userService.GetByEmail(ctx, email)
	if err != nil {
		return "", "", err
	}
	if user == nil {
		return "", "", fmt.Errorf("Invalid email or password")
	}
	if version == nil || !version.IsActive {
		return "", "", fmt.Errorf("Account is deactivated")
	}
	if hErr := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); hErr != nil {
		return "", "", fmt.Errorf("Invalid email or password")
	}
	return as.issueTokens(ctx, user.ID)
}

// RefreshUser rotates: the presented refresh token is consumed and a fresh
// pair comes back. A reused token finds nothing in the store and fails.
func (as *authService) RefreshUser(ctx context.Context, refreshToken string) (string, string, error) {
	if refreshToken == "" {
		return "", "", fmt.Errorf("Refresh token required")
	}
	session, err := as.tokenStore.Get(ctx, refreshToken)
	if err != nil {
		return "", "", fmt.Errorf("Error fetching refresh token: %w", err)
	}
	if session == nil || session.ExpiresAt.Before(time.Now()) {
		return "", "", fmt.Errorf("Refresh token expired or revoked")
	}
	version, err := as.userService.GetCurrent(ctx, session.UserID)
	if err != nil {
		return "", "", err
	}
	if version == nil || !version.IsActive {
		_ = as.tokenStore.DeleteByUser(ctx, session.UserID)
		return "", "", fmt.Errorf("Account is deactivated")
	}
	if err := as.tokenStore.Delete(ctx, refreshToken); err != nil {
		return "", "", fmt.Errorf("Failed to rotate refresh token: %w", err)
	}
	return as.issueTokens(ctx, session.UserID)
}

func (as *authService) LogoutUser(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return fmt.Errorf("Refresh token required")
	}
	return as.tokenStore.Delete(ctx, refreshToken)
}

func (as *authService) issueTokens(ctx context.Context, userID uuid.UUID) (string, string, error) {
	accessToken, err := as.generateAccessToken(userID)
	if err != nil {
		return "", "", fmt.Errorf("Generate access token error: %w", err)
	}
	refreshToken := uuid.New().String()
	session := TokenSession{
		UserID:       userID,
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(as.refreshTTL),
	}
	if err := as.tokenStore.Save(ctx, session, as.refreshTTL); err != nil {
		return "", "", fmt.Errorf("Failed to persist refresh token: %w", err)
	}
	return accessToken, refreshToken, nil
}

func (as *authService) generateAccessToken(userID uuid.UUID) (string, error) {
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(as.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(as.jwtSecretKey))
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	if tokenString == "" {
		return ctx, nil
	}
	parsedToken, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(as.jwtSecretKey), nil
	})
	if err != nil {
		return ctx, fmt.Errorf("Failed to parse token: %w", err)
	}
	claims, ok := parsedToken.Claims.(*JWTClaims)
	if !ok || !parsedToken.Valid {
		return ctx, fmt.Errorf("Invalid or expired JWT token")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ctx, fmt.Errorf("Invalid user id in token: %w", err)
	}
	version, err := as.userService.GetCurrent(ctx, userID)
	if err != nil {
		return ctx, err
	}
	if version == nil || !version.IsActive {
		return ctx, fmt.Errorf("Account is deactivated")
	}
	rd := &requestdata.RequestData{
		TokenString: tokenString,
		UserID:      userID,
	}
	return requestdata.WithRequestData(ctx, rd), nil
}

func (as *authService) GetAccessTTL() time.Duration {
	return as.accessTTL
}
