// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel/trace"

	"github.com/cr0nhq/cr0n/internal/activity"
	"github.com/cr0nhq/cr0n/pkg/errutil"
)

// Service provides login, registration and logout.
type Service struct {
	users         UserRepository
	sessions      *SessionStore
	hasher        PasswordHasher
	verifications *VerificationService
	opts          options
	tracer        trace.Tracer
}

// NewAuthService creates a new Service.
func NewAuthService(
	users UserRepository,
	sessions *SessionStore,
	hasher PasswordHasher,
	verifications *VerificationService,
	opts ...Option,
) (*Service, error) {
	if users == nil {
		return nil, oops.Errorf("users repository is required")
	}
	if sessions == nil {
		return nil, oops.Errorf("session store is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if verifications == nil {
		return nil, oops.Errorf("verification service is required")
	}
	o := buildOptions(opts)
	return &Service{
		users:         users,
		sessions:      sessions,
		hasher:        hasher,
		verifications: verifications,
		opts:          o,
		tracer:        o.tracerProvider.Tracer(TracerName),
	}, nil
}

// dummyPasswordHash is verified when the account does not exist so that
// response time does not reveal whether an email is registered.
//
//nolint:gosec // G101: intentionally fake hash, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// LoginResult is returned by a successful Login or Register.
type LoginResult struct {
	User    *User
	Session *Session
	Token   string
	SiteID  *ulid.ULID
}

// Login authenticates an email/password pair and creates a session.
func (s *Service) Login(ctx context.Context, email, password string, meta RequestMeta) (result *LoginResult, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.login")
	defer func() {
		traceResult(span, result)
		endSpan(span, err)
	}()
	return s.login(ctx, email, password, meta)
}

func (s *Service) login(ctx context.Context, email, password string, meta RequestMeta) (*LoginResult, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, oops.Code(CodeMissingFields).Errorf("email and password are required")
	}

	if s.opts.throttle != nil {
		state, err := s.opts.throttle.Check(ctx, email)
		if err != nil {
			errutil.LogError(s.opts.logger, "login throttle check failed", err)
		} else if state.IsLockedOut {
			return nil, oops.Code(CodeAccountLocked).
				With("retry_after", state.LockoutRemaining.String()).
				Errorf("too many failed attempts")
		}
	}

	user, lookupErr := s.users.GetByEmail(ctx, email)

	var targetHash string
	userExists := false
	switch {
	case lookupErr == nil:
		targetHash = user.PasswordHash
		userExists = true
	case errors.Is(lookupErr, ErrNotFound):
		targetHash = dummyPasswordHash
	default:
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get user by email").
			Wrap(lookupErr)
	}

	// Always verify so unknown and known emails cost the same.
	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil && userExists {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}

	if !userExists || !valid {
		s.recordFailure(ctx, email)
		return nil, oops.Code(CodeInvalidCredentials).Errorf("invalid email or password")
	}

	if !user.IsActive() {
		return nil, oops.Code(CodeAccountSuspended).
			With("user_id", user.ID.String()).
			Errorf("account is suspended")
	}

	if s.opts.throttle != nil {
		if err := s.opts.throttle.Reset(ctx, email); err != nil {
			errutil.LogError(s.opts.logger, "login throttle reset failed", err)
		}
	}

	s.upgradeHash(ctx, user, password)

	if _, err := s.sessions.Prune(ctx, user.ID); err != nil {
		errutil.LogError(s.opts.logger, "session retention failed", err)
	}

	token, session, err := s.sessions.Create(ctx, user.ID, meta)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "create session").
			Wrap(err)
	}

	now := s.opts.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		errutil.LogError(s.opts.logger, "failed to record last login", err)
	} else {
		user.LastLoginAt = &now
	}

	s.opts.activity.Record(ctx, activity.Entry{
		Action:    activity.ActionLogin,
		UserID:    activity.Ref(user.ID),
		Details:   map[string]any{"email": user.Email},
		IPAddress: meta.IPAddress,
	})

	return &LoginResult{User: user, Session: session, Token: token}, nil
}

func (s *Service) recordFailure(ctx context.Context, email string) {
	if s.opts.throttle == nil {
		return
	}
	if err := s.opts.throttle.RecordFailure(ctx, email); err != nil {
		errutil.LogError(s.opts.logger, "login throttle record failed", err)
	}
}

// upgradeHash re-hashes a credential produced by a non-primary algorithm.
// Failures are logged; login succeeds regardless.
func (s *Service) upgradeHash(ctx context.Context, user *User, password string) {
	if !s.hasher.NeedsUpgrade(user.PasswordHash) {
		return
	}
	newHash, err := s.hasher.Hash(password)
	if err != nil {
		errutil.LogError(s.opts.logger, "credential upgrade hash failed", err)
		return
	}
	if err := s.users.UpdatePassword(ctx, user.ID, newHash); err != nil {
		errutil.LogError(s.opts.logger, "credential upgrade store failed", err)
		return
	}
	user.PasswordHash = newHash
}

// RegisterInput holds registration fields.
type RegisterInput struct {
	Email    string
	Password string
	FullName *string
	Meta     RequestMeta
}

// Register creates an account with its default site, issues an email
// verification, provisions external records best-effort and logs the user in.
func (s *Service) Register(ctx context.Context, in RegisterInput) (result *LoginResult, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.register")
	defer func() {
		traceResult(span, result)
		endSpan(span, err)
	}()
	return s.register(ctx, in)
}

func (s *Service) register(ctx context.Context, in RegisterInput) (*LoginResult, error) {
	email := NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, oops.Code(CodeMissingFields).Errorf("email and password are required")
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(in.Password); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, oops.Code(CodeEmailTaken).Errorf("an account with this email already exists")
	} else if !errors.Is(err, ErrNotFound) {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "check existing email").
			Wrap(err)
	}

	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := NewUser(email, passwordHash, in.FullName)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "build user").
			Wrap(err)
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, oops.Code(CodeEmailTaken).Errorf("an account with this email already exists")
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create user").
			Wrap(err)
	}

	logger := s.opts.logger.With("user_id", user.ID.String())

	var siteID *ulid.ULID
	if s.opts.sites != nil {
		id, err := s.opts.sites.CreateDefaultSite(ctx, user.ID, user.FullName)
		if err != nil {
			errutil.LogError(logger, "default site creation failed", err)
		} else {
			siteID = &id
		}
	}

	verifyToken, err := s.verifications.Issue(ctx, user.ID)
	if err != nil {
		errutil.LogError(logger, "verification issue failed", err)
	}

	s.provision(ctx, user)
	s.sendRegistrationEmails(user, verifyToken)

	token, session, err := s.sessions.Create(ctx, user.ID, in.Meta)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create session").
			Wrap(err)
	}

	s.opts.activity.Record(ctx, activity.Entry{
		Action:    activity.ActionSignup,
		UserID:    activity.Ref(user.ID),
		SiteID:    siteID,
		Details:   map[string]any{"email": user.Email},
		IPAddress: in.Meta.IPAddress,
	})

	return &LoginResult{User: user, Session: session, Token: token, SiteID: siteID}, nil
}

// provision runs every provisioner concurrently and stores whatever
// references succeeded.
func (s *Service) provision(ctx context.Context, user *User) {
	if len(s.opts.provisioners) == 0 {
		return
	}

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		refs ExternalRefs
	)
	for _, p := range s.opts.provisioners {
		wg.Add(1)
		go func(p Provisioner) {
			defer wg.Done()
			got, err := p.Provision(ctx, user)
			if err != nil {
				errutil.LogError(s.opts.logger.With("provisioner", p.Name(), "user_id", user.ID.String()),
					"provisioning failed", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if got.BillingCustomerID != nil {
				refs.BillingCustomerID = got.BillingCustomerID
			}
			if got.CRMContactID != nil {
				refs.CRMContactID = got.CRMContactID
			}
		}(p)
	}
	wg.Wait()

	if refs.IsEmpty() {
		return
	}
	if err := s.users.SetExternalRefs(ctx, user.ID, refs); err != nil {
		errutil.LogError(s.opts.logger, "failed to store external references", err)
		return
	}
	if refs.BillingCustomerID != nil {
		user.BillingCustomerID = refs.BillingCustomerID
	}
	if refs.CRMContactID != nil {
		user.CRMContactID = refs.CRMContactID
	}
}

func (s *Service) sendRegistrationEmails(user *User, verifyToken string) {
	if s.opts.notifier == nil {
		return
	}
	email, fullName := user.Email, user.FullName
	s.opts.dispatcher.Go("welcome_email", func(ctx context.Context) error {
		return s.opts.notifier.SendWelcome(ctx, email, fullName)
	})
	if verifyToken != "" {
		s.opts.dispatcher.Go("verification_email", func(ctx context.Context) error {
			return s.opts.notifier.SendVerification(ctx, email, verifyToken)
		})
	}
}

// Logout revokes the session behind token. Unknown tokens succeed.
func (s *Service) Logout(ctx context.Context, token string, meta RequestMeta) error {
	if token == "" {
		return nil
	}

	var userID *ulid.ULID
	if found, err := s.sessions.Lookup(ctx, token); err == nil {
		userID = activity.Ref(found.User.ID)
	} else if !errors.Is(err, ErrNotFound) {
		errutil.LogError(s.opts.logger, "logout session lookup failed", err)
	}

	if err := s.sessions.Delete(ctx, token); err != nil {
		return oops.Code("AUTH_LOGOUT_FAILED").Wrap(err)
	}

	if userID != nil {
		s.opts.activity.Record(ctx, activity.Entry{
			Action:    activity.ActionLogout,
			UserID:    userID,
			IPAddress: meta.IPAddress,
		})
	}
	return nil
}

// ValidatePassword enforces the minimum password length.
func ValidatePassword(password string) error {
	if strings.TrimSpace(password) == "" {
		return oops.Code(CodeMissingFields).Errorf("password is required")
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return oops.Code(CodePasswordTooShort).
			With("min_length", MinPasswordLength).
			Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}
