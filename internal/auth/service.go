// Package auth はメールアドレスとパスワードによる認証、セッション管理、
// セッション変更イベントの配信を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/hagwonmatch/internal/localstore"
	"github.com/hitoshi/hagwonmatch/internal/model"
	"github.com/hitoshi/hagwonmatch/internal/repository"
)

// MinPasswordLength はパスワードの最小文字数。
const MinPasswordLength = 6

// Credentials はメールアドレスとパスワードの組。
type Credentials struct {
	Email    string
	Password string
}

// SessionStore は現在のセッションをローカルに保持する保存先。
type SessionStore interface {
	Load(ctx context.Context) (*localstore.StoredSession, error)
	Save(ctx context.Context, sessionID, accessToken string) error
	Clear(ctx context.Context) error
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge            int  // セッション有効期間（秒）
	RequireEmailConfirmation bool // trueの場合、メール未確認ユーザーはログインできない
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.AuthUserRepository
	sessionRepo repository.SessionRepository
	store       SessionStore
	tokens      *TokenIssuer
	bus         EventBus
	config      ServiceConfig
	logger      *slog.Logger
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.AuthUserRepository,
	sessionRepo repository.SessionRepository,
	store SessionStore,
	tokens *TokenIssuer,
	bus EventBus,
	config ServiceConfig,
	logger *slog.Logger,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		store:       store,
		tokens:      tokens,
		bus:         bus,
		config:      config,
		logger:      logger,
		now:         time.Now,
	}
}

// SignUp はユーザーを登録する。
// メール確認が必要な設定の場合はセッションを発行せずnilを返す。
// それ以外の場合はそのままログインし、セッションを返す。
func (s *Service) SignUp(ctx context.Context, creds Credentials, meta model.UserMetadata) (*model.Session, *model.User, error) {
	email, err := validateCredentials(creds)
	if err != nil {
		return nil, nil, err
	}
	meta.FullName = strings.TrimSpace(meta.FullName)
	if meta.FullName == "" {
		return nil, nil, model.NewValidationError("Full name is required")
	}
	if !meta.UserType.Valid() {
		return nil, nil, model.NewValidationError("Please choose whether you are a teacher or a hagwon")
	}

	hash, err := HashPassword(creds.Password)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	userID := uuid.New().String()
	user := &repository.AuthUser{
		User: model.User{
			ID:        userID,
			Email:     email,
			Metadata:  meta,
			CreatedAt: now,
			UpdatedAt: now,
		},
		PasswordHash: hash,
	}
	if !s.config.RequireEmailConfirmation {
		user.EmailConfirmedAt = &now
	}
	profile := &model.Profile{
		ID:        userID,
		UserType:  meta.UserType,
		Email:     email,
		FullName:  meta.FullName,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.userRepo.CreateWithProfile(ctx, user, profile); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, nil, model.NewEmailAlreadyRegisteredError()
		}
		return nil, nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user signed up",
		slog.String("user_id", userID),
		slog.String("user_type", string(meta.UserType)),
	)

	if s.config.RequireEmailConfirmation {
		return nil, &user.User, nil
	}

	session, err := s.startSession(ctx, &user.User)
	if err != nil {
		return nil, nil, err
	}
	return session, &user.User, nil
}

// SignInWithPassword はメールアドレスとパスワードでログインする。
func (s *Service) SignInWithPassword(ctx context.Context, creds Credentials) (*model.Session, error) {
	email := strings.TrimSpace(creds.Email)
	if email == "" || creds.Password == "" {
		return nil, model.NewInvalidCredentialsError()
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewInvalidCredentialsError()
	}
	if err := ComparePassword(user.PasswordHash, creds.Password); err != nil {
		return nil, model.NewInvalidCredentialsError()
	}
	if s.config.RequireEmailConfirmation && user.EmailConfirmedAt == nil {
		return nil, model.NewEmailNotConfirmedError()
	}

	return s.startSession(ctx, &user.User)
}

// GetSession はローカルに保存されたセッションを検証して返す。
// 保存されていない、または無効・期限切れの場合はローカルの保存を消してnilを返す。
func (s *Service) GetSession(ctx context.Context) (*model.Session, error) {
	stored, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stored session: %w", err)
	}
	if stored == nil {
		return nil, nil
	}

	claims, err := s.tokens.Parse(stored.AccessToken)
	if err != nil || claims.SessionID != stored.SessionID {
		s.logger.Info("discarding invalid stored session", slog.String("session_id", stored.SessionID))
		return nil, s.clearStore(ctx)
	}

	session, err := s.sessionRepo.FindByID(ctx, stored.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		s.logger.Info("stored session expired", slog.String("session_id", stored.SessionID))
		return nil, s.clearStore(ctx)
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, s.clearStore(ctx)
	}

	session.AccessToken = stored.AccessToken
	session.User = user
	return session, nil
}

// SignOut はセッションを破棄する。
// リモートのセッション削除に失敗してもローカルの保存は消去し、SIGNED_OUTを発行したうえでエラーを返す。
func (s *Service) SignOut(ctx context.Context) error {
	stored, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load stored session: %w", err)
	}

	var remoteErr error
	if stored != nil {
		if err := s.sessionRepo.DeleteByID(ctx, stored.SessionID); err != nil {
			remoteErr = fmt.Errorf("failed to delete session: %w", err)
		}
	}
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear stored session: %w", err)
	}

	s.publish(ctx, model.AuthEvent{Kind: model.AuthEventSignedOut, At: s.now()})
	if stored != nil {
		s.logger.Info("user signed out", slog.String("session_id", stored.SessionID))
	}
	return remoteErr
}

// RefreshSession は現在のセッションの有効期限を延長し、アクセストークンを再発行する。
// セッションがない場合はnilを返す。
func (s *Service) RefreshSession(ctx context.Context) (*model.Session, error) {
	session, err := s.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, nil
	}

	now := s.now()
	expiresAt := now.Add(time.Duration(s.config.SessionMaxAge) * time.Second)
	if err := s.sessionRepo.Extend(ctx, session.ID, expiresAt); err != nil {
		return nil, fmt.Errorf("failed to extend session: %w", err)
	}
	token, err := s.tokens.Issue(session.UserID, session.ID, now, expiresAt)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, session.ID, token); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	session.AccessToken = token
	session.ExpiresAt = expiresAt
	s.publish(ctx, model.AuthEvent{Kind: model.AuthEventTokenRefreshed, Session: session, At: now})
	s.logger.Info("session refreshed",
		slog.String("session_id", session.ID),
		slog.Time("expires_at", expiresAt),
	)
	return session, nil
}

// Subscribe はセッション変更イベントの購読を開始する。
func (s *Service) Subscribe(ctx context.Context) (<-chan model.AuthEvent, func(), error) {
	return s.bus.Subscribe(ctx)
}

// startSession はセッションを作成して永続化し、SIGNED_INを発行する。
func (s *Service) startSession(ctx context.Context, user *model.User) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    user.ID,
		User:      user,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}
	session.AccessToken, err = s.tokens.Issue(user.ID, sessionID, now, session.ExpiresAt)
	if err != nil {
		return nil, err
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	if err := s.store.Save(ctx, session.ID, session.AccessToken); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	s.publish(ctx, model.AuthEvent{Kind: model.AuthEventSignedIn, Session: session, At: now})
	s.logger.Info("user signed in", slog.String("user_id", user.ID))
	return session, nil
}

// publish はイベントを発行する。配信失敗はログに記録するのみ。
func (s *Service) publish(ctx context.Context, ev model.AuthEvent) {
	if err := s.bus.Publish(ctx, ev); err != nil {
		s.logger.Warn("failed to publish auth event",
			slog.String("kind", string(ev.Kind)),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) clearStore(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear stored session: %w", err)
	}
	return nil
}

// validateCredentials はサインアップ時のメールアドレスとパスワードを検証し、
// 正規化したメールアドレスを返す。
func validateCredentials(creds Credentials) (string, error) {
	email := strings.TrimSpace(creds.Email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", model.NewValidationError("Unable to validate email address: invalid format")
	}
	if len(creds.Password) < MinPasswordLength {
		return "", model.NewValidationError(fmt.Sprintf("Password should be at least %d characters", MinPasswordLength))
	}
	return strings.ToLower(email), nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
