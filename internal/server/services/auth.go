package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/bigdatakeeper/internal/common"
	"github.com/dmitrijs2005/bigdatakeeper/internal/dbx"
	"github.com/dmitrijs2005/bigdatakeeper/internal/logging"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/auth"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/config"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/models"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// Session is a signed-in account and its bearer token.
type Session struct {
	User      *models.User
	Token     string
	ExpiresAt time.Time
}

// RegisterInput is a self-service sign-up request.
type RegisterInput struct {
	Email     string
	Username  string
	FirstName string
	LastName  string
	Password  string
}

// ProfileUpdate changes the caller's own display fields; nil leaves a field as is.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Avatar    *string
}

// Profile is an account together with its usage numbers.
type Profile struct {
	User  *models.User      `json:"user"`
	Stats *models.UserStats `json:"stats"`
}

// AuthService registers accounts, checks credentials, issues tokens and
// resolves tokens back to live accounts.
type AuthService struct {
	db           dbx.Transactor
	repomanager  repomanager.RepositoryManager
	tokens       auth.TokenManager
	cache        *PrincipalCache
	passwordCost int
	log          logging.Logger
}

func NewAuthService(db dbx.Transactor, m repomanager.RepositoryManager, tokens auth.TokenManager,
	cache *PrincipalCache, cfg *config.Config, log logging.Logger) *AuthService {
	return &AuthService{
		db:           db,
		repomanager:  m,
		tokens:       tokens,
		cache:        cache,
		passwordCost: cfg.BcryptCostRegister,
		log:          log.With("module", "auth"),
	}
}

// Register creates a USER account and signs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	username := strings.TrimSpace(in.Username)

	repo := s.repomanager.Users(s.db)

	emailTaken, usernameTaken, err := repo.Taken(ctx, email, username, "")
	if err != nil {
		return nil, fmt.Errorf("error checking user uniqueness: %w", err)
	}
	if emailTaken || usernameTaken {
		return nil, common.NewError(common.ErrorConflict, "User with this email or username already exists")
	}

	digest, err := auth.HashPassword(in.Password, s.passwordCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user, err := repo.Create(ctx, &models.User{
		ID:             uuid.NewString(),
		Email:          email,
		Username:       username,
		FirstName:      strings.TrimSpace(in.FirstName),
		LastName:       strings.TrimSpace(in.LastName),
		PasswordDigest: digest,
		Role:           models.RoleUser,
		IsActive:       true,
	})
	if err != nil {
		// a concurrent registration can still win the unique index
		if errors.Is(err, common.ErrorConflict) {
			return nil, common.NewError(common.ErrorConflict, "User with this email or username already exists")
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	s.log.Info(ctx, "user registered", "user_id", user.ID)
	return s.session(user)
}

// Login checks credentials. Unknown email, inactive account and wrong
// password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NewError(common.ErrorUnauthorized, "Invalid credentials")
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}
	if !user.IsActive || !auth.CheckPassword(user.PasswordDigest, password) {
		return nil, common.NewError(common.ErrorUnauthorized, "Invalid credentials")
	}

	recordEvent(ctx, s.db, s.repomanager, s.log, user.ID, nil, models.ActionUserLogin, nil)
	return s.session(user)
}

func (s *AuthService) session(user *models.User) (*Session, error) {
	token, exp, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("error issuing token: %w", err)
	}
	return &Session{User: user, Token: token, ExpiresAt: exp}, nil
}

// Authenticate verifies a bearer token and resolves it to an active
// account. Bad or expired tokens are Forbidden; tokens of deleted or
// deactivated accounts are Unauthorized.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, common.NewError(common.ErrorForbidden, "Invalid or expired token")
	}

	if u, ok := s.cache.Get(claims.UserID); ok {
		return u, nil
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NewError(common.ErrorUnauthorized, "User not found or inactive")
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}
	if !user.IsActive {
		return nil, common.NewError(common.ErrorUnauthorized, "User not found or inactive")
	}

	s.cache.Add(user)
	return user, nil
}

// Profile returns the caller's account and usage stats.
func (s *AuthService) Profile(ctx context.Context, p *auth.Principal) (*Profile, error) {
	if p == nil {
		return nil, common.NewError(common.ErrorUnauthorized, "User not authenticated")
	}

	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByID(ctx, p.UserID)
	if err != nil {
		return nil, notFound(err, "User not found", "error loading user")
	}
	stats, err := repo.Stats(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("error loading user stats: %w", err)
	}
	return &Profile{User: user, Stats: stats}, nil
}

// UpdateProfile changes first name, last name and avatar only.
func (s *AuthService) UpdateProfile(ctx context.Context, p *auth.Principal, in ProfileUpdate) (*models.User, error) {
	if p == nil {
		return nil, common.NewError(common.ErrorUnauthorized, "User not authenticated")
	}

	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByID(ctx, p.UserID)
	if err != nil {
		return nil, notFound(err, "User not found", "error loading user")
	}

	if in.FirstName != nil {
		user.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		user.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.Avatar != nil {
		user.Avatar = strings.TrimSpace(*in.Avatar)
	}

	updated, err := repo.Update(ctx, user)
	if err != nil {
		return nil, notFound(err, "User not found", "error updating user")
	}
	s.cache.Remove(p.UserID)
	return updated, nil
}
