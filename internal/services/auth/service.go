package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BearBump/xtreeshop/internal/models"
	"github.com/BearBump/xtreeshop/internal/validation"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

const (
	bcryptCost = 10

	adminRedirect    = "/admin/dashboard"
	customerRedirect = "/"
)

type Repository interface {
	CreateUser(ctx context.Context, u *models.User) (*models.User, error)
	GetUserByID(ctx context.Context, id uint64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UserExists(ctx context.Context, email, username string) (emailTaken, usernameTaken bool, err error)
	UpdateProfile(ctx context.Context, userID uint64, firstName, lastName, address string) error
	UpdatePassword(ctx context.Context, userID uint64, hash string) error
	GetProfileStats(ctx context.Context, userID uint64) (orders, spent int64, err error)
	UpsertSuperadmin(ctx context.Context, u *models.User) (*models.User, bool, error)

	CreateSession(ctx context.Context, sess *models.Session) error
	GetSessionUser(ctx context.Context, sessionID string, now time.Time) (*models.User, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type Service struct {
	repo Repository
	rl   RateLimiter

	sessionTTL     time.Duration
	loginPerMinute int64

	now func() time.Time
}

func New(repo Repository, rl RateLimiter, sessionTTL time.Duration, loginPerMinute int) *Service {
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	return &Service{
		repo:           repo,
		rl:             rl,
		sessionTTL:     sessionTTL,
		loginPerMinute: int64(loginPerMinute),
		now:            time.Now,
	}
}

type RegisterInput struct {
	Username        string `json:"username" validate:"required,username"`
	FirstName       string `json:"first_name" validate:"required,min=2,max=50,personname"`
	LastName        string `json:"last_name" validate:"required,min=2,max=50,personname"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,password"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
	Address         string `json:"address" validate:"required,min=10,max=500"`
}

func (in *RegisterInput) normalize() {
	in.Username = strings.TrimSpace(in.Username)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Address = strings.TrimSpace(in.Address)
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.normalize()
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	emailTaken, usernameTaken, err := s.repo.UserExists(ctx, in.Email, in.Username)
	if err != nil {
		return nil, err
	}
	if emailTaken {
		return nil, models.NewConflict("email already registered")
	}
	if usernameTaken {
		return nil, models.NewConflict("username already taken")
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	return s.repo.CreateUser(ctx, &models.User{
		Username:     in.Username,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		PasswordHash: hash,
		Address:      in.Address,
		Role:         models.RoleCustomer,
	})
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
	Redirect  string       `json:"redirect"`
}

// Login checks the credentials and opens a session. Attempts are counted per
// client IP per minute, successful ones included.
func (s *Service) Login(ctx context.Context, in LoginInput, clientIP string) (*LoginResult, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if s.rl != nil && s.loginPerMinute > 0 {
		allowed, _, err := s.rl.Allow(ctx, loginKey(clientIP, now), s.loginPerMinute, 70*time.Second)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, models.ErrRateLimited
		}
	}

	u, err := s.repo.GetUserByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)) != nil {
		return nil, models.ErrInvalidCredentials
	}

	sess := &models.Session{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		ExpiresAt: now.Add(s.sessionTTL),
		CreatedAt: now,
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return nil, err
	}

	redirect := customerRedirect
	if u.Role.IsAdmin() {
		redirect = adminRedirect
	}
	return &LoginResult{Token: sess.ID, ExpiresAt: sess.ExpiresAt, User: u, Redirect: redirect}, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	if _, err := uuid.Parse(token); err != nil {
		return nil
	}
	return s.repo.DeleteSession(ctx, token)
}

// Authenticate resolves a session token to its user. Malformed, unknown and
// expired tokens all report ErrUnauthenticated.
func (s *Service) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, models.ErrUnauthenticated
	}
	if _, err := uuid.Parse(token); err != nil {
		return nil, models.ErrUnauthenticated
	}
	u, err := s.repo.GetSessionUser(ctx, token, s.now().UTC())
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthenticated
		}
		return nil, err
	}
	return u, nil
}

type Profile struct {
	User  *models.User        `json:"user"`
	Stats models.ProfileStats `json:"stats"`
}

func (s *Service) Profile(ctx context.Context, userID uint64) (*Profile, error) {
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	orders, spent, err := s.repo.GetProfileStats(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Profile{User: u, Stats: models.NewProfileStats(orders, spent)}, nil
}

type ProfileInput struct {
	FirstName string `json:"first_name" validate:"required,min=2"`
	LastName  string `json:"last_name" validate:"required,min=2"`
	Address   string `json:"address" validate:"required,min=10"`
}

func (s *Service) UpdateProfile(ctx context.Context, userID uint64, in ProfileInput) (*models.User, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Address = strings.TrimSpace(in.Address)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateProfile(ctx, userID, in.FirstName, in.LastName, in.Address); err != nil {
		return nil, err
	}
	return s.repo.GetUserByID(ctx, userID)
}

type PasswordChangeInput struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,password"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}

func (s *Service) ChangePassword(ctx context.Context, userID uint64, in PasswordChangeInput) error {
	if err := validation.Struct(in); err != nil {
		return err
	}
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.CurrentPassword)) != nil {
		return models.NewValidationError("current_password", "current password is incorrect")
	}
	hash, err := hashPassword(in.NewPassword)
	if err != nil {
		return err
	}
	return s.repo.UpdatePassword(ctx, userID, hash)
}

type SuperadminInput struct {
	Email     string `json:"email" validate:"required,email"`
	Username  string `json:"username" validate:"required,username"`
	Password  string `json:"password" validate:"required,password"`
	FirstName string `json:"first_name" validate:"required,min=2,max=50"`
	LastName  string `json:"last_name" validate:"required,min=2,max=50"`
}

// EnsureSuperadmin creates the account or promotes and re-keys an existing one
// that shares the email or username.
func (s *Service) EnsureSuperadmin(ctx context.Context, in SuperadminInput) (*models.User, bool, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.TrimSpace(in.Username)
	if err := validation.Struct(in); err != nil {
		return nil, false, err
	}
	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, false, err
	}
	return s.repo.UpsertSuperadmin(ctx, &models.User{
		Username:     in.Username,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         models.RoleSuperadmin,
	})
}

func hashPassword(p string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(p), bcryptCost)
	if err != nil {
		return "", errors.Wrap(err, "hash password")
	}
	return string(b), nil
}

func loginKey(ip string, now time.Time) string {
	if ip == "" {
		ip = "unknown"
	}
	return fmt.Sprintf("rl:login:%s:%s", ip, now.Format("200601021504"))
}
