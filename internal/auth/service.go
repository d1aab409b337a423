// Package auth はログイン・ログアウト・リフレッシュローテーションの
// プロトコルを提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/cliptube/internal/model"
	"github.com/hitoshi/cliptube/internal/password"
	"github.com/hitoshi/cliptube/internal/repository"
	"github.com/hitoshi/cliptube/internal/token"
)

// MetricsCollector は認証イベントのメトリクス収集インターフェース。
// nilの場合は記録しない。
type MetricsCollector interface {
	RecordLoginSuccess()
	RecordLoginFailure()
	RecordTokenIssued(role string)
	RecordRefreshRotation()
	RecordRefreshReuseRejected()
}

// Service は認証プロトコルのサービス層。
// アカウントの状態遷移はすべてこのサービスを経由する。
type Service struct {
	users   repository.UserRepository
	slots   repository.RefreshTokenRepository
	codec   *token.Codec
	hasher  password.Hasher
	metrics MetricsCollector
}

// NewService はServiceを生成する。metricsはnil可。
func NewService(
	users repository.UserRepository,
	slots repository.RefreshTokenRepository,
	codec *token.Codec,
	hasher password.Hasher,
	metrics MetricsCollector,
) *Service {
	return &Service{
		users:   users,
		slots:   slots,
		codec:   codec,
		hasher:  hasher,
		metrics: metrics,
	}
}

// Login はユーザー名とパスワードを検証し、トークンペアを発行する。
// 発行したリフレッシュトークンを保存し、同一アカウントの既存セッションを
// 置き換える。「ユーザーが存在しない」と「パスワード不一致」は呼び出し元に
// 区別させない。
func (s *Service) Login(ctx context.Context, username, plainPassword string) (*model.TokenPair, *model.User, error) {
	if username == "" {
		return nil, nil, model.NewValidationError("ユーザー名は必須です")
	}
	if plainPassword == "" {
		return nil, nil, model.NewValidationError("パスワードは必須です")
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		// 詳細はログのみ。レスポンスは汎用メッセージに収束させる。
		slog.Warn("login failed: unknown username", slog.String("username", username))
		s.recordLoginFailure()
		return nil, nil, model.NewInvalidCredentialsError()
	}

	if !s.hasher.Verify(user.PasswordHash, plainPassword) {
		slog.Warn("login failed: password mismatch", slog.String("user_id", user.ID))
		s.recordLoginFailure()
		return nil, nil, model.NewInvalidCredentialsError()
	}

	pair, err := s.issuePair(user.ID)
	if err != nil {
		return nil, nil, err
	}

	if err := s.slots.Store(ctx, user.ID, pair.RefreshToken); err != nil {
		return nil, nil, fmt.Errorf("failed to persist refresh token: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordLoginSuccess()
	}
	slog.Info("user logged in", slog.String("user_id", user.ID))

	return pair, user, nil
}

// Logout は保存済みリフレッシュトークンを削除し、セッションを終了する。
// どの端末のトークンで呼ばれても同じ（端末単位の粒度は持たない）。冪等。
func (s *Service) Logout(ctx context.Context, userID string) error {
	if err := s.slots.Clear(ctx, userID); err != nil {
		return fmt.Errorf("failed to clear refresh token: %w", err)
	}
	slog.Info("user logged out", slog.String("user_id", userID))
	return nil
}

// Refresh は提示されたリフレッシュトークンを検証し、新しいトークンペアに
// ローテーションする。保存値との比較と差し替えはストレージ層の条件付き更新
// 1回で行われるため、同じトークンによる並行リフレッシュは1つしか成功しない。
// ローテーション済みトークンの再提示は自然期限前でも拒否される。
func (s *Service) Refresh(ctx context.Context, presented string) (*model.TokenPair, error) {
	if presented == "" {
		return nil, model.NewUnauthorizedError()
	}

	userID, _, err := s.codec.Verify(presented, token.RoleRefresh)
	if err != nil {
		if errors.Is(err, token.ErrTokenExpired) {
			return nil, model.NewRefreshTokenReusedError()
		}
		slog.Warn("refresh failed: invalid token", slog.String("reason", err.Error()))
		return nil, model.NewUnauthorizedError()
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUnauthorizedError()
	}

	pair, err := s.issuePair(user.ID)
	if err != nil {
		return nil, err
	}

	// 新ペアはCASが成立した場合にのみ呼び出し元へ渡る。
	// 競合に敗れた場合はここで破棄され、部分的な発行は起きない。
	if err := s.slots.Rotate(ctx, user.ID, presented, pair.RefreshToken); err != nil {
		if errors.Is(err, repository.ErrRefreshTokenMismatch) {
			slog.Warn("refresh rejected: token already rotated or cleared",
				slog.String("user_id", user.ID),
			)
			if s.metrics != nil {
				s.metrics.RecordRefreshReuseRejected()
			}
			return nil, model.NewRefreshTokenReusedError()
		}
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordRefreshRotation()
	}
	slog.Info("refresh token rotated", slog.String("user_id", user.ID))

	return pair, nil
}

// ChangePassword は現在のパスワードを検証したうえで新しいハッシュを保存する。
// 保存済みリフレッシュトークンも同時に削除する。パスワード変更は資格情報
// 漏えいの兆候であり、旧セッションを生かしたままにしない。
// 既発行のアクセストークンは自然期限まで有効なまま残る。
func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if oldPassword == "" {
		return model.NewValidationError("現在のパスワードは必須です")
	}
	if len(newPassword) < 8 {
		return model.NewValidationError("新しいパスワードは8文字以上にしてください")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	if !s.hasher.Verify(user.PasswordHash, oldPassword) {
		return model.NewInvalidCredentialsError()
	}

	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash new password: %w", err)
	}

	if err := s.users.UpdatePasswordHash(ctx, userID, newHash); err != nil {
		return fmt.Errorf("failed to update password hash: %w", err)
	}

	if err := s.slots.Clear(ctx, userID); err != nil {
		return fmt.Errorf("failed to clear refresh token after password change: %w", err)
	}

	slog.Info("password changed", slog.String("user_id", userID))
	return nil
}

// issuePair はアクセス・リフレッシュのトークンペアを発行する。
func (s *Service) issuePair(userID string) (*model.TokenPair, error) {
	accessToken, err := s.codec.Issue(userID, token.RoleAccess)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}
	refreshToken, err := s.codec.Issue(userID, token.RoleRefresh)
	if err != nil {
		return nil, fmt.Errorf("failed to issue refresh token: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordTokenIssued(string(token.RoleAccess))
		s.metrics.RecordTokenIssued(string(token.RoleRefresh))
	}

	return &model.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

func (s *Service) recordLoginFailure() {
	if s.metrics != nil {
		s.metrics.RecordLoginFailure()
	}
}
