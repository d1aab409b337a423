// Package user はアカウント管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/cliptube/internal/model"
	"github.com/hitoshi/cliptube/internal/password"
	"github.com/hitoshi/cliptube/internal/repository"
	"github.com/hitoshi/cliptube/internal/security"
)

// usernamePattern はユーザー名として許可する文字種。
// 小文字英数字とアンダースコアのみ、3〜30文字。
var usernamePattern = regexp.MustCompile(`^[a-z0-9_]{3,30}$`)

// emailPattern はメールアドレスの形式検査。厳密なRFC検証ではなく、
// 明らかな入力ミスを弾くための緩いチェック。
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// RegisterInput はアカウント登録の入力。
type RegisterInput struct {
	Username string
	Email    string
	FullName string
	Password string
}

// Service はアカウント管理のサービス層。
// 登録・プロフィール取得・更新のビジネスロジックを提供する。
type Service struct {
	users     repository.UserRepository
	hasher    password.Hasher
	sanitizer security.ProfileSanitizerService
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	users repository.UserRepository,
	hasher password.Hasher,
	sanitizer security.ProfileSanitizerService,
) *Service {
	return &Service{
		users:     users,
		hasher:    hasher,
		sanitizer: sanitizer,
	}
}

// Register は新規アカウントを作成する。
// ユーザー名は小文字に正規化し、ユーザー名・メールアドレスの重複は
// それぞれ別のエラーコードで返す。表示名は保存前にサニタイズされる。
func (s *Service) Register(ctx context.Context, input RegisterInput) (*model.User, error) {
	username := strings.ToLower(strings.TrimSpace(input.Username))
	email := strings.ToLower(strings.TrimSpace(input.Email))
	fullName := s.sanitizer.Sanitize(input.FullName)

	if !usernamePattern.MatchString(username) {
		return nil, model.NewValidationError("ユーザー名は3〜30文字の小文字英数字とアンダースコアのみ使用できます")
	}
	if !emailPattern.MatchString(email) {
		return nil, model.NewValidationError("メールアドレスの形式が正しくありません")
	}
	if fullName == "" {
		return nil, model.NewValidationError("表示名は必須です")
	}
	if len(input.Password) < 8 {
		return nil, model.NewValidationError("パスワードは8文字以上にしてください")
	}

	existing, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if existing != nil {
		return nil, model.NewUsernameTakenError(username)
	}

	existing, err = s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailTakenError()
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	newUser := &model.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		FullName:     fullName,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, newUser); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user registered",
		slog.String("user_id", newUser.ID),
		slog.String("username", username),
	)

	return newUser, nil
}

// GetByID は指定IDのユーザーを取得する。見つからない場合はエラーを返す。
func (s *Service) GetByID(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// UpdateDetails は表示名とメールアドレスを更新する。
// 少なくともどちらか一方の指定が必要で、省略されたフィールドは現状を維持する。
// メールアドレスの変更は他アカウントとの重複を検査する。
func (s *Service) UpdateDetails(ctx context.Context, userID, fullName, email string) (*model.User, error) {
	fullName = s.sanitizer.Sanitize(fullName)
	email = strings.ToLower(strings.TrimSpace(email))

	if fullName == "" && email == "" {
		return nil, model.NewValidationError("表示名またはメールアドレスを指定してください")
	}

	current, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if current == nil {
		return nil, model.NewUserNotFoundError()
	}

	if fullName == "" {
		fullName = current.FullName
	}
	if email == "" {
		email = current.Email
	} else if !emailPattern.MatchString(email) {
		return nil, model.NewValidationError("メールアドレスの形式が正しくありません")
	}

	if email != current.Email {
		existing, err := s.users.FindByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("failed to check email: %w", err)
		}
		if existing != nil && existing.ID != userID {
			return nil, model.NewEmailTakenError()
		}
	}

	updated, err := s.users.UpdateDetails(ctx, userID, fullName, email)
	if err != nil {
		return nil, fmt.Errorf("failed to update details: %w", err)
	}
	if updated == nil {
		return nil, model.NewUserNotFoundError()
	}

	slog.Info("user details updated", slog.String("user_id", userID))
	return updated, nil
}

// SetAvatarURL はアバター画像のURLを差し替える。
// URLの生成（アップロード）はmediaパッケージの責務で、ここでは保存のみ行う。
func (s *Service) SetAvatarURL(ctx context.Context, userID, url string) (*model.User, error) {
	if url == "" {
		return nil, model.NewValidationError("画像URLは必須です")
	}
	updated, err := s.users.UpdateAvatarURL(ctx, userID, url)
	if err != nil {
		return nil, fmt.Errorf("failed to set avatar URL: %w", err)
	}
	if updated == nil {
		return nil, model.NewUserNotFoundError()
	}
	slog.Info("avatar updated", slog.String("user_id", userID))
	return updated, nil
}

// SetCoverImageURL はカバー画像のURLを差し替える。
func (s *Service) SetCoverImageURL(ctx context.Context, userID, url string) (*model.User, error) {
	if url == "" {
		return nil, model.NewValidationError("画像URLは必須です")
	}
	updated, err := s.users.UpdateCoverImageURL(ctx, userID, url)
	if err != nil {
		return nil, fmt.Errorf("failed to set cover image URL: %w", err)
	}
	if updated == nil {
		return nil, model.NewUserNotFoundError()
	}
	slog.Info("cover image updated", slog.String("user_id", userID))
	return updated, nil
}
