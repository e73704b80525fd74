// Package service contains the application services of the auth backend.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/ieazie/doc-extract/internal/authz"
	pkgcrypto "github.com/ieazie/doc-extract/internal/crypto"
	"github.com/ieazie/doc-extract/internal/errs"
	"github.com/ieazie/doc-extract/internal/limiter"
	"github.com/ieazie/doc-extract/internal/model"
	"github.com/ieazie/doc-extract/internal/repository"
)

// TokenType is the scheme of issued access tokens.
const TokenType = "bearer"

// AuthService defines the authentication operations exposed over HTTP.
type AuthService interface {
	// Login applies rate limiting and exchanges credentials for an access token.
	Login(ctx context.Context, creds model.Credentials, remoteAddr string) (model.LoginResult, error)
	// Authenticate verifies an access token and returns the user ID it was issued to.
	Authenticate(ctx context.Context, token string) (string, error)
	// CurrentUser returns the active user with the given ID.
	CurrentUser(ctx context.Context, userID string) (model.User, error)
	// CurrentTenant returns the tenant the user is working in.
	CurrentTenant(ctx context.Context, userID string) (model.Tenant, error)
	// SwitchTenant moves the user into another tenant.
	SwitchTenant(ctx context.Context, userID, tenantID string) error
	// Register creates an account.
	Register(ctx context.Context, in NewAccount) (string, error)
}

// NewAccount is the input of Register.
type NewAccount struct {
	Email     string     `validate:"required,email"`
	Password  string     `validate:"required,min=8"`
	FirstName string     `validate:"max=100"`
	LastName  string     `validate:"max=100"`
	Role      authz.Role `validate:"required"`
	TenantID  string
	Inactive  bool
}

// Options configure AuthServiceImpl.
type Options struct {
	SignKey       []byte
	AccessTTL     time.Duration
	LimiterPepper string
	Hasher        *pkgcrypto.Hasher
}

// AuthServiceImpl implements AuthService on top of repositories.
type AuthServiceImpl struct {
	users    repository.UserRepository
	tenants  repository.TenantRepository
	lim      limiter.Limiter
	hasher   *pkgcrypto.Hasher
	opts     Options
	validate *validator.Validate
	now      func() time.Time
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(users repository.UserRepository, tenants repository.TenantRepository, lim limiter.Limiter, opts Options) *AuthServiceImpl {
	if opts.Hasher == nil {
		opts.Hasher = pkgcrypto.NewHasher(pkgcrypto.DefaultParams())
	}
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = time.Hour
	}
	return &AuthServiceImpl{
		users:    users,
		tenants:  tenants,
		lim:      lim,
		hasher:   opts.Hasher,
		opts:     opts,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
}

// Register creates an account with a fresh salt and returns its ID.
func (s *AuthServiceImpl) Register(ctx context.Context, in NewAccount) (string, error) {
	if err := s.validate.Struct(in); err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrInvalidInput, err)
	}
	if !in.Role.Valid() {
		return "", fmt.Errorf("%w: unknown role %q", errs.ErrInvalidInput, in.Role)
	}
	if in.Role.TenantScoped() && in.TenantID == "" {
		return "", fmt.Errorf("%w: role %s requires a tenant", errs.ErrInvalidInput, in.Role)
	}
	uid, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	hash, salt, err := s.hasher.Hash(in.Password)
	if err != nil {
		return "", err
	}
	a := &model.Account{
		User: model.User{
			ID:        uid.String(),
			Email:     limiter.NormalizeAccount(in.Email),
			FirstName: in.FirstName,
			LastName:  in.LastName,
			Role:      in.Role,
			Status:    model.UserActive,
		},
		PwdHash:  hash,
		SaltAuth: salt,
	}
	if in.Inactive {
		a.Status = model.UserInactive
	}
	if in.TenantID != "" {
		tid := in.TenantID
		a.TenantID = &tid
	}
	if err := s.users.Create(ctx, a); err != nil {
		return "", err
	}
	return a.ID, nil
}

// Login authenticates with rate limiting by (email, client address).
// Unknown accounts, wrong passwords and inactive accounts all yield ErrUnauthorized.
func (s *AuthServiceImpl) Login(ctx context.Context, creds model.Credentials, remoteAddr string) (model.LoginResult, error) {
	if err := s.validate.Struct(creds); err != nil {
		return model.LoginResult{}, fmt.Errorf("%w: %v", errs.ErrInvalidInput, err)
	}
	account := limiter.NormalizeAccount(creds.Email)
	client := limiter.HashClient(s.opts.LimiterPepper, remoteAddr)

	allowed, _, err := s.lim.Allow(ctx, account, client)
	if err != nil {
		return model.LoginResult{}, err
	}
	if !allowed {
		return model.LoginResult{}, errs.ErrRateLimited
	}

	a, err := s.users.GetByEmail(ctx, account)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		s.hasher.Burn(creds.Password)
		return model.LoginResult{}, s.failure(ctx, account, client)
	case err != nil:
		return model.LoginResult{}, err
	}
	if !s.hasher.Verify(creds.Password, a.SaltAuth, a.PwdHash) {
		return model.LoginResult{}, s.failure(ctx, account, client)
	}
	if a.Status != model.UserActive {
		return model.LoginResult{}, errs.ErrUnauthorized
	}

	// best-effort bookkeeping
	_ = s.lim.Success(ctx, account, client)
	now := s.now()
	if err := s.users.TouchLastLogin(ctx, a.ID, now); err == nil {
		a.LastLogin = &now
	}

	access, err := s.issueAccessToken(a.ID, now)
	if err != nil {
		return model.LoginResult{}, err
	}
	return model.LoginResult{
		Tokens: model.Tokens{
			AccessToken: access,
			TokenType:   TokenType,
			ExpiresIn:   int(s.opts.AccessTTL / time.Second),
		},
		User: a.User,
	}, nil
}

func (s *AuthServiceImpl) failure(ctx context.Context, account string, client []byte) error {
	if blocked, _, err := s.lim.Failure(ctx, account, client); err == nil && blocked {
		return errs.ErrRateLimited
	}
	return errs.ErrUnauthorized
}

// issueAccessToken creates a signed HS256 JWT for the given subject.
func (s *AuthServiceImpl) issueAccessToken(userID string, now time.Time) (string, error) {
	jti, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	claims := jwt.RegisteredClaims{
		ID:        jti.String(),
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.opts.AccessTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.opts.SignKey)
}

// Authenticate parses and verifies an HS256 access token.
func (s *AuthServiceImpl) Authenticate(_ context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errs.ErrUnauthorized
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.opts.SignKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return "", errs.ErrUnauthorized
	}
	return claims.Subject, nil
}

// CurrentUser loads an active user. Missing or inactive users are unauthorized.
func (s *AuthServiceImpl) CurrentUser(ctx context.Context, userID string) (model.User, error) {
	a, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, errs.ErrNotFound) {
		return model.User{}, errs.ErrUnauthorized
	}
	if err != nil {
		return model.User{}, err
	}
	if a.Status != model.UserActive {
		return model.User{}, errs.ErrUnauthorized
	}
	return a.User, nil
}

// CurrentTenant returns the user's current tenant or ErrNotFound when there is none.
func (s *AuthServiceImpl) CurrentTenant(ctx context.Context, userID string) (model.Tenant, error) {
	u, err := s.CurrentUser(ctx, userID)
	if err != nil {
		return model.Tenant{}, err
	}
	if !u.HasTenant() {
		return model.Tenant{}, errs.ErrNotFound
	}
	t, err := s.tenants.GetByID(ctx, u.TenantRef())
	if err != nil {
		return model.Tenant{}, err
	}
	return *t, nil
}

// SwitchTenant moves the user into tenantID.
//
// Platform admins may enter any active tenant; other roles need a membership.
// The choice is stored as the user's tenant, so for a platform admin it is a
// working tenant reported by CurrentUser and CurrentTenant until the next switch.
// Rejections wrap errs.ErrTenantSwitch, and additionally errs.ErrNotFound for
// unknown tenants.
func (s *AuthServiceImpl) SwitchTenant(ctx context.Context, userID, tenantID string) error {
	if strings.TrimSpace(tenantID) == "" {
		return fmt.Errorf("%w: %w: empty tenant id", errs.ErrTenantSwitch, errs.ErrInvalidInput)
	}
	u, err := s.CurrentUser(ctx, userID)
	if err != nil {
		return err
	}
	t, err := s.tenants.GetByID(ctx, tenantID)
	if errors.Is(err, errs.ErrNotFound) {
		return fmt.Errorf("%w: %w", errs.ErrTenantSwitch, errs.ErrNotFound)
	}
	if err != nil {
		return err
	}
	if t.Status != model.TenantActive {
		return fmt.Errorf("%w: tenant %s is %s", errs.ErrTenantSwitch, t.ID, t.Status)
	}
	if u.Role != authz.RolePlatformAdmin {
		ok, err := s.tenants.IsMember(ctx, model.Membership{UserID: u.ID, TenantID: t.ID})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: no access to tenant %s", errs.ErrTenantSwitch, t.ID)
		}
	}
	return s.users.SetTenant(ctx, u.ID, t.ID)
}
