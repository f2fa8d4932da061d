// Package auth はパスワード認証とベアラートークンの発行・検証を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/poethaven/internal/metrics"
	"github.com/hitoshi/poethaven/internal/model"
	"github.com/hitoshi/poethaven/internal/repository"
	"github.com/hitoshi/poethaven/internal/security"
	"github.com/hitoshi/poethaven/internal/upload"
)

// UploadGateway はアバター画像の保存とロールバックに使うアップロード境界。
type UploadGateway interface {
	Accept(policy upload.Policy, f *upload.File) (string, error)
	Remove(storedPath string) error
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	BcryptCost int
}

// RegisterInput は登録フォームの内容。RoleとBioとAvatarは省略可能。
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
	Bio      string
	Avatar   *upload.File
}

// AuthResult は登録・ログイン成功時に返すトークンとユーザー。
type AuthResult struct {
	Token string
	User  *model.User
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo  repository.UserRepository
	tokens    *TokenIssuer
	uploads   UploadGateway
	sanitizer security.TextSanitizer
	metrics   metrics.MetricsCollector
	config    ServiceConfig
	now       func() time.Time

	// dummyHash は未登録メールのログインでも同じコストのbcrypt比較を行うためのハッシュ。
	// 登録済みかどうかで応答時間が変わらないようにする。
	dummyHash string
	compare   func(hash, password string) bool
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	tokens *TokenIssuer,
	uploads UploadGateway,
	sanitizer security.TextSanitizer,
	mc metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	if mc == nil {
		mc = metrics.Nop{}
	}
	dummyHash, err := hashPassword(dummyPassword, config.BcryptCost)
	if err != nil {
		slog.Warn("failed to prepare dummy password hash", slog.String("error", err.Error()))
	}
	return &Service{
		userRepo:  userRepo,
		tokens:    tokens,
		uploads:   uploads,
		sanitizer: sanitizer,
		metrics:   mc,
		config:    config,
		now:       time.Now,
		dummyHash: dummyHash,
		compare:   comparePassword,
	}
}

// NormalizeEmail はメールアドレスを前後空白除去・小文字化する。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register は新規ユーザーを作成し、トークンを発行する。
// 入力検証とメール重複確認はアバター保存より前に行い、
// 保存後に永続化が失敗した場合はアバターを削除する。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	name := s.sanitizer.Sanitize(in.Name)
	email := NormalizeEmail(in.Email)
	bio := s.sanitizer.Sanitize(in.Bio)

	switch {
	case name == "":
		return nil, model.NewInvalidArgumentError("Name is required")
	case utf8.RuneCountInString(name) > model.MaxNameLength:
		return nil, model.NewInvalidArgumentError(fmt.Sprintf("Name must be at most %d characters", model.MaxNameLength))
	case email == "":
		return nil, model.NewInvalidArgumentError("Email is required")
	case !isValidEmail(email):
		return nil, model.NewInvalidArgumentError("Invalid email")
	case in.Password == "":
		return nil, model.NewInvalidArgumentError("Password is required")
	case utf8.RuneCountInString(in.Password) < MinPasswordLength:
		return nil, model.NewInvalidArgumentError(fmt.Sprintf("Password must be at least %d characters", MinPasswordLength))
	}

	role := model.DefaultRole
	if in.Role != "" {
		r, ok := model.ParseRole(strings.TrimSpace(in.Role))
		if !ok {
			return nil, model.NewInvalidArgumentError("Invalid role")
		}
		role = r
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, model.NewConflictError("User already exists")
	}

	hash, err := hashPassword(in.Password, s.config.BcryptCost)
	if errors.Is(err, errPasswordTooLong) {
		return nil, model.NewInvalidArgumentError("Password must be at most 72 bytes")
	}
	if err != nil {
		return nil, err
	}

	var avatar string
	if in.Avatar != nil {
		avatar, err = s.uploads.Accept(upload.AvatarPolicy, in.Avatar)
		if err != nil {
			return nil, err
		}
	}

	now := s.now()
	user := &model.User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Bio:          bio,
		Avatar:       avatar,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		s.rollbackUpload(avatar)
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewConflictError("User already exists")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordRegistration()
	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
		slog.Bool("has_avatar", avatar != ""),
	)

	return &AuthResult{Token: token, User: user}, nil
}

// Login はメールアドレスとパスワードを検証してトークンを発行する。
// 未登録メールとパスワード不一致は同じUnauthorizedエラーを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.userRepo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	hash := s.dummyHash
	if user != nil {
		hash = user.PasswordHash
	}
	if !s.compare(hash, password) || user == nil {
		s.metrics.RecordLoginFailure()
		return nil, model.NewUnauthorizedError(model.ErrInvalidCredentials)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))
	return &AuthResult{Token: token, User: user}, nil
}

// Authenticate はベアラートークンを検証し、現在のユーザーをストアから取得する。
// トークンの内容ではなくストアのレコードを正とする。
func (s *Service) Authenticate(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, model.NewUnauthorizedError("Not authorized, no token")
	}

	userID, err := s.tokens.Parse(token)
	if err != nil {
		slog.Debug("token rejected", slog.String("error", err.Error()))
		return nil, model.NewUnauthorizedError("Not authorized, token failed")
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUnauthorizedError("Not authorized, user not found")
	}

	return user, nil
}

// GetSelf は認証済みユーザー自身を取得する。
func (s *Service) GetSelf(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

func (s *Service) rollbackUpload(storedPath string) {
	if storedPath == "" {
		return
	}
	if err := s.uploads.Remove(storedPath); err != nil {
		slog.Error("failed to roll back upload",
			slog.String("path", storedPath),
			slog.String("error", err.Error()),
		)
	}
}

// isValidEmail はアドレス部のみからなる形式かを判定する。"Name <a@b>"形式は受け付けない。
func isValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
