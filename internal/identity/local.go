package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/campus-skillshare/backend/internal/models"
	"github.com/campus-skillshare/backend/internal/repositories"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// FirebaseVerifier checks Firebase ID tokens. *auth.Client satisfies it.
type FirebaseVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// ProfileStore creates the document-store profile that goes with a credential.
type ProfileStore interface {
	CreateUser(ctx context.Context, account *models.Account) error
	Exists(ctx context.Context, uid string) (bool, error)
	UpdateProfile(ctx context.Context, uid string, fields map[string]any) error
}

type Config struct {
	Secret string
	TTL    time.Duration
}

type Option func(*Local)

func WithFirebase(v FirebaseVerifier) Option {
	return func(l *Local) { l.firebase = v }
}

func WithLogger(logger *zap.Logger) Option {
	return func(l *Local) { l.logger = logger.Named("identity") }
}

// Local signs HS256 session tokens for bcrypt-checked local accounts and for verified
// Firebase users. The token's jti is the session id; signing out revokes it in the
// revocation table, so the token stays dead across restarts and instances.
type Local struct {
	creds       repositories.CredentialRepository
	revocations repositories.RevocationRepository
	profiles    ProfileStore
	firebase FirebaseVerifier
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
	logger   *zap.Logger

	mu        sync.Mutex
	listeners map[int]func(AuthEvent)
	nextID    int
}

func NewLocal(creds repositories.CredentialRepository, revocations repositories.RevocationRepository, profiles ProfileStore, cfg Config, opts ...Option) *Local {
	if cfg.TTL <= 0 {
		cfg.TTL = 72 * time.Hour
	}
	l := &Local{
		creds:       creds,
		revocations: revocations,
		profiles:    profiles,
		secret:      []byte(cfg.Secret),
		ttl:         cfg.TTL,
		now:         time.Now,
		logger:      zap.NewNop(),
		listeners:   make(map[int]func(AuthEvent)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Register creates a local account and signs it in.
func (l *Local) Register(ctx context.Context, name, email, password string) (Grant, error) {
	email = strings.TrimSpace(email)
	if _, err := l.creds.GetByEmail(email); err == nil {
		return Grant{}, ErrEmailTaken
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return Grant{}, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Grant{}, fmt.Errorf("hash password: %w", err)
	}

	cred := &models.Credential{
		UID:          uuid.NewString(),
		Email:        email,
		DisplayName:  strings.TrimSpace(name),
		PasswordHash: string(hashedPassword),
	}
	if err := l.creds.CreateCredential(cred); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return Grant{}, ErrEmailTaken
		}
		return Grant{}, err
	}
	return l.signIn(ctx, cred)
}

// SignIn checks an email and password pair.
func (l *Local) SignIn(ctx context.Context, email, password string) (Grant, error) {
	cred, err := l.creds.GetByEmail(strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return Grant{}, ErrInvalidCredentials
		}
		return Grant{}, err
	}
	if cred.PasswordHash == "" {
		return Grant{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return Grant{}, ErrInvalidCredentials
	}
	return l.signIn(ctx, cred)
}

// FirebaseLogin verifies a Firebase ID token and issues a local session. New Firebase
// users keep their Firebase uid as account uid. An existing local account with the
// same email is linked only when Firebase reports the email as verified.
func (l *Local) FirebaseLogin(ctx context.Context, idToken string) (Grant, error) {
	if l.firebase == nil {
		return Grant{}, ErrFirebaseUnavailable
	}
	token, err := l.firebase.VerifyIDToken(ctx, idToken)
	if err != nil {
		return Grant{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	email, _ := token.Claims["email"].(string)
	name, _ := token.Claims["name"].(string)
	verified, _ := token.Claims["email_verified"].(bool)

	cred, err := l.creds.GetByFirebaseUID(token.UID)
	switch {
	case err == nil:
		if email != "" {
			cred.Email = email
		}
		if name != "" {
			cred.DisplayName = name
		}
		if err := l.creds.UpdateCredential(cred); err != nil {
			return Grant{}, err
		}
	case errors.Is(err, repositories.ErrNotFound):
		cred, err = l.linkOrCreate(token.UID, email, name, verified)
		if err != nil {
			return Grant{}, err
		}
	default:
		return Grant{}, err
	}
	return l.signIn(ctx, cred)
}

func (l *Local) linkOrCreate(firebaseUID, email, name string, verified bool) (*models.Credential, error) {
	if email != "" {
		cred, err := l.creds.GetByEmail(email)
		if err == nil {
			if !verified || cred.FirebaseUID != "" {
				l.logger.Warn("refused to link firebase account", zap.String("firebase_uid", firebaseUID), zap.Bool("email_verified", verified))
				return nil, ErrEmailTaken
			}
			cred.FirebaseUID = firebaseUID
			if err := l.creds.UpdateCredential(cred); err != nil {
				return nil, err
			}
			return cred, nil
		}
		if !errors.Is(err, repositories.ErrNotFound) {
			return nil, err
		}
	}
	cred := &models.Credential{UID: firebaseUID, Email: email, DisplayName: name, FirebaseUID: firebaseUID}
	if err := l.creds.CreateCredential(cred); err != nil {
		return nil, err
	}
	return cred, nil
}

// SignOut revokes the session and tells listeners. Revocations of tokens that have
// since expired are pruned on the way.
func (l *Local) SignOut(_ context.Context, id Identity) error {
	expiresAt := id.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = l.now().Add(l.ttl)
	}
	if err := l.revocations.Revoke(id.SessionID, id.UID, expiresAt); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	if _, err := l.revocations.PruneExpired(l.now()); err != nil {
		l.logger.Warn("prune revocations", zap.Error(err))
	}

	l.emit(AuthEvent{Kind: SignedOut, Identity: id})
	return nil
}

// Verify parses a session token and rejects revoked sessions.
func (l *Local) Verify(tokenString string) (Identity, error) {
	claims := &models.JwtCustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return l.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}
	if claims.ID == "" || claims.UID == "" {
		return Identity{}, ErrInvalidToken
	}

	revoked, err := l.revocations.IsRevoked(claims.ID)
	if err != nil {
		l.logger.Warn("revocation lookup failed", zap.String("session", claims.ID), zap.Error(err))
		return Identity{}, ErrInvalidToken
	}
	if revoked {
		return Identity{}, ErrInvalidToken
	}

	id := Identity{UID: claims.UID, Email: claims.Email, Name: claims.Name, SessionID: claims.ID}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}

// UpdateDisplayName renames the account on both the credential and the profile.
func (l *Local) UpdateDisplayName(ctx context.Context, id Identity, name string) error {
	name = strings.TrimSpace(name)
	cred, err := l.creds.GetByUID(id.UID)
	if err != nil {
		return err
	}
	cred.DisplayName = name
	if err := l.creds.UpdateCredential(cred); err != nil {
		return err
	}
	return l.profiles.UpdateProfile(ctx, id.UID, map[string]any{"name": name})
}

// OnAuthStateChanged registers listener for every later sign-in and sign-out.
func (l *Local) OnAuthStateChanged(listener func(AuthEvent)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextID
	l.nextID++
	l.listeners[id] = listener
	return func() {
		l.mu.Lock()
		delete(l.listeners, id)
		l.mu.Unlock()
	}
}

func (l *Local) signIn(ctx context.Context, cred *models.Credential) (Grant, error) {
	if err := l.ensureProfile(ctx, cred); err != nil {
		return Grant{}, err
	}

	now := l.now()
	sessionID := uuid.NewString()
	expiresAt := now.Add(l.ttl)
	claims := &models.JwtCustomClaims{
		UID:   cred.UID,
		Email: cred.Email,
		Name:  cred.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Subject:   cred.UID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(l.secret)
	if err != nil {
		return Grant{}, fmt.Errorf("sign token: %w", err)
	}

	id := Identity{UID: cred.UID, Email: cred.Email, Name: cred.DisplayName, SessionID: sessionID, ExpiresAt: expiresAt.Truncate(time.Second)}
	l.emit(AuthEvent{Kind: SignedIn, Identity: id})
	return Grant{Token: signed, Identity: id}, nil
}

// ensureProfile creates users/{uid} on first sign-in.
func (l *Local) ensureProfile(ctx context.Context, cred *models.Credential) error {
	exists, err := l.profiles.Exists(ctx, cred.UID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	err = l.profiles.CreateUser(ctx, &models.Account{
		UID:           cred.UID,
		Name:          cred.DisplayName,
		Email:         cred.Email,
		SkillsToTeach: []string{},
		SkillsToLearn: []string{},
		CreatedAt:     l.now().UTC(),
	})
	if err != nil && !errors.Is(err, repositories.ErrConflict) {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

func (l *Local) emit(event AuthEvent) {
	l.mu.Lock()
	listeners := make([]func(AuthEvent), 0, len(l.listeners))
	for _, fn := range l.listeners {
		listeners = append(listeners, fn)
	}
	l.mu.Unlock()
	for _, fn := range listeners {
		fn(event)
	}
}
