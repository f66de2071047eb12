package user

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/domain"
)

type userRepo interface {
	Create(ctx context.Context, u domain.User) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	SetRole(ctx context.Context, id string, role domain.Role) error
}

// Service handles signup, password login and bearer token lookup.
type Service struct {
	repo        userRepo
	tokens      *tokenManager
	tokenTTL    time.Duration
	passwordMin int
	cost        int
}

// New creates a Service. A zero ttl defaults to 48 hours.
func New(repo userRepo, tokens tokenStore, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &Service{
		repo:        repo,
		tokens:      newTokenManager(tokens),
		tokenTTL:    ttl,
		passwordMin: 8,
		cost:        bcrypt.DefaultCost,
	}
}

type SignupInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
}

// Session is the result of a successful login.
type Session struct {
	User      *domain.User `json:"user"`
	Token     string       `json:"accessToken"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

// Signup registers a customer account.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*domain.User, error) {
	const op = "user.Signup"
	email := domain.NormalizeEmail(in.Email)
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, domain.Invalid(op, "a valid email is required")
	}
	password := strings.TrimSpace(in.Password)
	if err := validatePassword(password, s.passwordMin); err != nil {
		return nil, domain.Invalid(op, "%s", err.Error())
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, domain.Internal(err, op, "hash password")
	}

	u, err := s.repo.Create(ctx, domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hashed),
		FullName:     strings.TrimSpace(in.FullName),
		Role:         domain.RoleCustomer,
		CreatedAt:    time.Now().UTC(),
	})
	if errors.Is(err, domain.ErrAlreadyExists) {
		return nil, domain.Conflict(op, "email %s is already registered", email)
	}
	if err != nil {
		return nil, domain.Internal(err, op, "create user")
	}
	return u, nil
}

// Login validates credentials and issues a bearer token.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	const op = "user.Login"
	u, err := s.repo.GetByEmail(ctx, domain.NormalizeEmail(email))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.Unauthorized(op, "invalid credentials")
	}
	if err != nil {
		return nil, domain.Internal(err, op, "load user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(strings.TrimSpace(password))); err != nil {
		return nil, domain.Unauthorized(op, "invalid credentials")
	}

	token, expiresAt, err := s.tokens.Issue(ctx, u.ID, s.tokenTTL)
	if err != nil {
		return nil, domain.Internal(err, op, "issue token")
	}
	return &Session{User: u, Token: token, ExpiresAt: expiresAt}, nil
}

// Authenticate resolves a bearer token to the caller identity.
func (s *Service) Authenticate(ctx context.Context, token string) (domain.Identity, error) {
	const op = "user.Authenticate"
	userID, ok := s.tokens.Validate(ctx, token)
	if !ok {
		return domain.Identity{}, domain.Unauthorized(op, "invalid or expired token")
	}
	u, err := s.repo.GetByID(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Identity{}, domain.Unauthorized(op, "invalid or expired token")
	}
	if err != nil {
		return domain.Identity{}, domain.Internal(err, op, "load user")
	}
	return domain.Identity{UserID: u.ID, Role: u.Role}, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	return domain.Internal(s.tokens.Revoke(ctx, token), "user.Logout", "revoke token")
}

func (s *Service) Get(ctx context.Context, id string) (*domain.User, error) {
	const op = "user.Get"
	u, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NotFound(op, "user", id)
	}
	if err != nil {
		return nil, domain.Internal(err, op, "load user")
	}
	return u, nil
}

// EnsureAdmin creates the account when missing and grants it the admin role.
func (s *Service) EnsureAdmin(ctx context.Context, in SignupInput) (*domain.User, error) {
	const op = "user.EnsureAdmin"
	u, err := s.Signup(ctx, in)
	if domain.IsKind(err, domain.KindConflict) {
		u, err = s.repo.GetByEmail(ctx, domain.NormalizeEmail(in.Email))
	}
	if err != nil {
		return nil, domain.Internal(err, op, "load admin")
	}
	if u.Role != domain.RoleAdmin {
		if err := s.repo.SetRole(ctx, u.ID, domain.RoleAdmin); err != nil {
			return nil, domain.Internal(err, op, "grant admin")
		}
		u.Role = domain.RoleAdmin
	}
	return u, nil
}

// TokenTTLSeconds exposes the token lifetime in seconds.
func (s *Service) TokenTTLSeconds() int {
	return int(s.tokenTTL.Seconds())
}

func validatePassword(p string, min int) error {
	if len(p) < min {
		return fmt.Errorf("password must be at least %d characters", min)
	}
	hasUpper := false
	hasLower := false
	hasDigit := false
	for _, r := range p {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return errors.New("password must contain at least 1 uppercase letter, 1 lowercase letter, and 1 number")
	}
	return nil
}

// SweepExpiredTokens removes expired tokens and reports how many went.
func (s *Service) SweepExpiredTokens(ctx context.Context) (int64, error) {
	n, err := s.tokens.Sweep(ctx)
	if err != nil {
		return 0, domain.Internal(err, "user.SweepExpiredTokens", "sweep tokens")
	}
	return n, nil
}

// RunTokenSweeper calls SweepExpiredTokens every interval until ctx is
// cancelled.
func (s *Service) RunTokenSweeper(ctx context.Context, interval time.Duration, logger logrus.FieldLogger) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.SweepExpiredTokens(ctx)
			if err != nil {
				if ctx.Err() == nil {
					logger.WithError(err).Warn("sweep expired tokens")
				}
				continue
			}
			if n > 0 {
				logger.WithField("deleted", n).Info("swept expired tokens")
			}
		}
	}
}
