package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Dan9191/winprob-gateway/internal/config"
	"github.com/Dan9191/winprob-gateway/internal/models"
	"github.com/Dan9191/winprob-gateway/internal/repository"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const (
	// PasswordCost is the bcrypt cost factor for stored password hashes.
	PasswordCost = 10
	// TokenTTL is how long an issued session token stays valid.
	TokenTTL = time.Hour
)

// UserStore is the credential store used by AuthService
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// Claims are the session token claims
type Claims struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// AuthService registers users, verifies credentials and issues session tokens
type AuthService struct {
	users  UserStore
	log    *logrus.Logger
	secret []byte
	now    func() time.Time
}

// NewAuthService initializes a new auth service
func NewAuthService(users UserStore, log *logrus.Logger, cfg *config.Config) *AuthService {
	return &AuthService{
		users:  users,
		log:    log,
		secret: []byte(cfg.JWTSecret),
		now:    time.Now,
	}
}

// Register creates a new user with a hashed password
func (s *AuthService) Register(ctx context.Context, username, password string) error {
	if strings.TrimSpace(username) == "" || password == "" {
		return ErrInvalidInput
	}

	_, err := s.users.FindUserByUsername(ctx, username)
	switch {
	case err == nil:
		return ErrDuplicateUser
	case !errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("failed to look up user: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return ErrInvalidInput
	}
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		PasswordHash: string(hashedPassword),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		// lost a race with a concurrent registration
		if errors.Is(err, repository.ErrDuplicate) {
			return ErrDuplicateUser
		}
		return err
	}

	s.log.WithField("user_id", user.ID).Infof("User registered: %s", user.Username)
	return nil
}

// Login authenticates a user and returns a signed session token
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.users.FindUserByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	// NumericDate drops sub-second precision; exp never lands after now+TokenTTL.
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	})
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	s.log.WithField("user_id", user.ID).Infof("User logged in: %s", user.Username)
	return tokenString, nil
}

// ParseToken validates a session token and returns its claims
func (s *AuthService) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if !token.Valid {
		return nil, ErrUnauthorized
	}
	return claims, nil
}
