// Package auth signs users in with email and password and keeps the session
// token in the local store so the app starts signed in.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/travelog/travelog/internal/model"
	"github.com/travelog/travelog/internal/observe"
	"github.com/travelog/travelog/internal/repository"
	"github.com/travelog/travelog/internal/validation"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrInvalidToken       = errors.New("invalid token")
)

// Authenticator issues user ids and tracks who is signed in.
type Authenticator interface {
	// CurrentUserID returns the signed-in user, or false when nobody is.
	CurrentUserID(ctx context.Context) (string, bool)
	Register(ctx context.Context, email, password string) (string, error)
	Login(ctx context.Context, email, password string) (string, error)
	Logout(ctx context.Context) error
	// Changes delivers the signed-in user id, "" when signed out, now and on
	// every change.
	Changes() (<-chan string, func())
}

type Service struct {
	accounts    AccountStore
	credentials repository.CredentialRepository
	jwtSecret   string
	jwtExpiry   time.Duration
	current     *observe.Value[string]
}

func NewService(
	accounts AccountStore,
	credentials repository.CredentialRepository,
	jwtSecret string,
	jwtExpiry time.Duration,
) *Service {
	return &Service{
		accounts:    accounts,
		credentials: credentials,
		jwtSecret:   jwtSecret,
		jwtExpiry:   jwtExpiry,
		current:     observe.NewValue(""),
	}
}

func (s *Service) Register(ctx context.Context, email, password string) (string, error) {
	email = validation.NormalizeEmail(email)

	err := validation.ValidateEmail(email)
	if err != nil {
		return "", err
	}

	err = validation.ValidatePassword(password)
	if err != nil {
		return "", err
	}

	hash, err := s.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	account := &model.Account{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    model.Now(),
	}

	err = s.accounts.Create(ctx, account)
	if err != nil {
		return "", err
	}

	slog.Info("account registered", "user_id", account.ID)

	err = s.signIn(ctx, account)
	if err != nil {
		return "", err
	}
	return account.ID, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	email = validation.NormalizeEmail(email)

	account, err := s.accounts.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return "", fmt.Errorf("invalid credentials: %w", ErrInvalidCredentials)
		}
		return "", fmt.Errorf("failed to get account: %w", err)
	}

	err = s.ComparePassword(password, account.PasswordHash)
	if err != nil {
		return "", fmt.Errorf("invalid credentials: %w", ErrInvalidCredentials)
	}

	err = s.signIn(ctx, account)
	if err != nil {
		return "", err
	}
	return account.ID, nil
}

func (s *Service) signIn(ctx context.Context, account *model.Account) error {
	expiresAt := time.Now().Add(s.jwtExpiry)

	token, err := s.GenerateJWT(account.ID, account.Email, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}

	err = s.credentials.Save(ctx, &model.Credential{
		UserID:    account.ID,
		Email:     account.Email,
		Token:     token,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	s.current.Set(account.ID)
	return nil
}

func (s *Service) Logout(ctx context.Context) error {
	err := s.credentials.Clear(ctx)
	if err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	s.current.Set("")
	return nil
}

// CurrentUserID checks the stored token. Expired or tampered tokens are removed.
func (s *Service) CurrentUserID(ctx context.Context) (string, bool) {
	credential, err := s.credentials.Current(ctx)
	if err != nil {
		if !errors.Is(err, repository.ErrCredentialNotFound) {
			slog.Error("failed to read session", "error", err)
		}
		s.current.Set("")
		return "", false
	}

	claims, err := s.VerifyJWT(credential.Token)
	if err != nil || claims.UserID != credential.UserID {
		slog.Warn("discarding stored session", "user_id", credential.UserID, "error", err)
		if err := s.credentials.Clear(ctx); err != nil {
			slog.Error("failed to clear session", "error", err)
		}
		s.current.Set("")
		return "", false
	}

	if s.current.Get() != claims.UserID {
		s.current.Set(claims.UserID)
	}
	return claims.UserID, true
}

func (s *Service) Changes() (<-chan string, func()) {
	return s.current.Subscribe()
}

func (s *Service) HashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

func (s *Service) ComparePassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

func (s *Service) GenerateJWT(userID, email string, expiresAt time.Time) (string, error) {
	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

func (s *Service) VerifyJWT(tokenString string) (*Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}
