package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dhuni-backend/internal/account"
	"dhuni-backend/internal/apperr"
	"dhuni-backend/internal/config"
	"dhuni-backend/internal/database"
	"dhuni-backend/internal/models"
	"dhuni-backend/internal/tenant"
	"dhuni-backend/internal/validation"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const minPasswordLength = 6

type ScopeResolver interface {
	ResolveScope(ctx context.Context, principalID uuid.UUID) (tenant.Scope, error)
}

type Session struct {
	Token     string
	ExpiresAt time.Time
	Email     string
	FullName  string
	Scope     tenant.Scope
}

type Service struct {
	db          *gorm.DB
	provisioner account.Provisioner
	resolver    ScopeResolver
	tokens      *TokenIssuer
	denylist    Denylist
	resets      PasswordResets
	events      *eventBroker
	now         func() time.Time
}

func NewService(db *gorm.DB, accounts *account.Service, tokens *TokenIssuer, denylist Denylist, resets PasswordResets) *Service {
	if resets.Store == nil {
		resets.Store = NewMemoryResetStore()
	}
	if resets.Sender == nil {
		resets.Sender = LogResetSender{}
	}
	if resets.TTL <= 0 {
		resets.TTL = defaultResetTTL
	}
	return &Service{
		db:          db,
		provisioner: accounts,
		resolver:    accounts,
		tokens:      tokens,
		denylist:    denylist,
		resets:      resets,
		events:      newEventBroker(),
		now:         time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func checkEmail(email string) error {
	return validation.Struct(struct {
		Email string `json:"email" validate:"required,email"`
	}{email})
}

func checkPassword(password string) error {
	if len(password) < minPasswordLength {
		return apperr.Validationf("password must be at least %d characters", minPasswordLength)
	}
	return nil
}

// SignUp creates the credential and runs vendor provisioning in one
// transaction, then signs the new owner in.
func (s *Service) SignUp(ctx context.Context, email, password string, attrs account.ProfileAttrs) (*Session, error) {
	email = normalizeEmail(email)
	attrs.FullName = strings.TrimSpace(attrs.FullName)
	attrs.Email = email
	if err := checkEmail(email); err != nil {
		return nil, err
	}
	if attrs.FullName == "" {
		return nil, apperr.Validation("full name is required")
	}
	if err := checkPassword(password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	skip := tenant.WithoutScope(ctx)
	var (
		cred  models.Credential
		scope tenant.Scope
	)
	err = s.db.WithContext(skip).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Credential{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if count > 0 {
			return apperr.Conflict("an account with this email already exists")
		}

		cred = models.Credential{Email: email, PasswordHash: string(hash), FullName: attrs.FullName}
		if err := tx.Create(&cred).Error; err != nil {
			if database.IsDuplicateKey(err) {
				return apperr.Conflict("an account with this email already exists")
			}
			return fmt.Errorf("create credential: %w", err)
		}

		var err error
		scope, err = s.provisioner.Provision(skip, tx, cred.ID, attrs)
		if err != nil {
			return fmt.Errorf("provision vendor: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sess, err := s.issue(cred, scope)
	if err != nil {
		return nil, err
	}
	s.publish(SessionSignedUp, scope)
	return sess, nil
}

func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	invalid := &apperr.Error{Kind: apperr.KindNotAuthenticated, Message: "invalid email or password"}

	var cred models.Credential
	err := s.db.WithContext(tenant.WithoutScope(ctx)).Where("email = ?", email).First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, invalid
	}
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return nil, invalid
	}

	scope, err := s.resolver.ResolveScope(ctx, cred.ID)
	if err != nil {
		return nil, err
	}
	sess, err := s.issue(cred, scope)
	if err != nil {
		return nil, err
	}
	s.publish(SessionSignedIn, scope)
	return sess, nil
}

// SignOut revokes the token until its natural expiry.
func (s *Service) SignOut(ctx context.Context, claims *Claims) error {
	until := s.now()
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	if err := s.denylist.Revoke(ctx, claims.ID, until); err != nil {
		return err
	}
	if scope, err := claims.Scope(); err == nil {
		s.publish(SessionSignedOut, scope)
	}
	return nil
}

// Authenticate returns the claims of a valid, non-revoked token.
func (s *Service) Authenticate(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
	if err != nil {
		config.LogError(config.GetLogger(), "auth", "Authenticate", "denylist lookup", nil, err)
		return nil, apperr.NotAuthenticated()
	}
	if revoked {
		return nil, apperr.NotAuthenticated()
	}
	return claims, nil
}

// CurrentPrincipal returns the principal of a token, or uuid.Nil when the
// token is missing or invalid.
func (s *Service) CurrentPrincipal(ctx context.Context, token string) uuid.UUID {
	if token == "" {
		return uuid.Nil
	}
	claims, err := s.Authenticate(ctx, token)
	if err != nil {
		return uuid.Nil
	}
	id, _ := claims.PrincipalID()
	return id
}

func (s *Service) ChangePassword(ctx context.Context, password, confirm string) error {
	scope, err := tenant.Require(ctx)
	if err != nil {
		return err
	}
	if password != confirm {
		return apperr.Validation("passwords do not match")
	}
	if err := checkPassword(password); err != nil {
		return err
	}
	return s.setPassword(ctx, scope.UserID, password)
}

func (s *Service) setPassword(ctx context.Context, credentialID uuid.UUID, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	res := s.db.WithContext(tenant.WithoutScope(ctx)).
		Model(&models.Credential{}).
		Where("id = ?", credentialID).
		Update("password_hash", string(hash))
	if res.Error != nil {
		return fmt.Errorf("update password: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("account")
	}
	return nil
}

// RequestPasswordReset sends a single-use reset token to the account. An
// unknown email is not an error, so callers cannot probe for accounts.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := checkEmail(email); err != nil {
		return err
	}

	var cred models.Credential
	err := s.db.WithContext(tenant.WithoutScope(ctx)).Where("email = ?", email).First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		config.GetLogger().WithField("email", email).Debug("[auth.password_reset] unknown email")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load credential: %w", err)
	}

	token, err := newResetToken()
	if err != nil {
		return err
	}
	if err := s.resets.Store.Save(ctx, hashResetToken(token), cred.ID, s.resets.TTL); err != nil {
		return err
	}
	if err := s.resets.Sender.SendPasswordReset(ctx, cred.Email, token, s.now().Add(s.resets.TTL)); err != nil {
		return fmt.Errorf("send reset token: %w", err)
	}
	return nil
}

// ResetPassword redeems a reset token. The token is only consumed once the
// new password passes validation.
func (s *Service) ResetPassword(ctx context.Context, token, password, confirm string) error {
	invalid := apperr.Validation("reset link is invalid or has expired")
	token = strings.TrimSpace(token)
	if token == "" {
		return invalid
	}
	if password != confirm {
		return apperr.Validation("passwords do not match")
	}
	if err := checkPassword(password); err != nil {
		return err
	}

	credentialID, ok, err := s.resets.Store.Take(ctx, hashResetToken(token))
	if err != nil {
		return err
	}
	if !ok {
		return invalid
	}
	if err := s.setPassword(ctx, credentialID, password); err != nil {
		return err
	}
	if scope, err := s.resolver.ResolveScope(ctx, credentialID); err == nil {
		s.publish(SessionPasswordReset, scope)
	}
	return nil
}

// Profile loads the credential and vendor behind a scope.
func (s *Service) Profile(ctx context.Context) (*models.Credential, *models.Vendor, error) {
	scope, err := tenant.Require(ctx)
	if err != nil {
		return nil, nil, err
	}
	skip := tenant.WithoutScope(ctx)
	var cred models.Credential
	if err := s.db.WithContext(skip).First(&cred, "id = ?", scope.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperr.NotFound("account")
		}
		return nil, nil, fmt.Errorf("load credential: %w", err)
	}
	var vendor models.Vendor
	if err := s.db.WithContext(skip).First(&vendor, "id = ?", scope.VendorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperr.NotFound("vendor link")
		}
		return nil, nil, fmt.Errorf("load vendor: %w", err)
	}
	return &cred, &vendor, nil
}

// Subscribe streams session changes until the returned func is called.
func (s *Service) Subscribe() (<-chan SessionEvent, func()) {
	return s.events.subscribe(16)
}

func (s *Service) issue(cred models.Credential, scope tenant.Scope) (*Session, error) {
	token, claims, err := s.tokens.Issue(cred.Email, scope)
	if err != nil {
		return nil, err
	}
	return &Session{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		Email:     cred.Email,
		FullName:  cred.FullName,
		Scope:     scope,
	}, nil
}

func (s *Service) publish(kind SessionEventKind, scope tenant.Scope) {
	s.events.publish(SessionEvent{Kind: kind, PrincipalID: scope.UserID, VendorID: scope.VendorID, At: s.now()})
	config.GetLogger().WithFields(logrus.Fields{
		"event":     kind,
		"principal": scope.UserID,
		"vendor_id": scope.VendorID,
	}).Debug("[auth.session]")
}
