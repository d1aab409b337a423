// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/cliptube/internal/model"
)

// ErrRefreshTokenMismatch は条件付き更新時に、保存済みリフレッシュトークンが
// 提示された値と一致しなかったことを表す。
// ローテーション済みトークンの再提示（リプレイ）と、並行リフレッシュの
// 敗者の両方がこのエラーになる。
var ErrRefreshTokenMismatch = errors.New("stored refresh token does not match")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByUsername はユーザー名でユーザーを検索する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// UpdateDetails はfullNameとemailを更新し、更新後のユーザーを返す。
	UpdateDetails(ctx context.Context, id, fullName, email string) (*model.User, error)

	// UpdatePasswordHash はパスワードハッシュを更新する。
	UpdatePasswordHash(ctx context.Context, id, hash string) error

	// UpdateAvatarURL はアバターURLを更新し、更新後のユーザーを返す。
	UpdateAvatarURL(ctx context.Context, id, url string) (*model.User, error)

	// UpdateCoverImageURL はカバー画像URLを更新し、更新後のユーザーを返す。
	UpdateCoverImageURL(ctx context.Context, id, url string) (*model.User, error)
}

// RefreshTokenRepository はアカウントごとに1つのリフレッシュトークン枠を
// 管理する永続化インターフェース。usersテーブルのrefresh_token列が実体。
type RefreshTokenRepository interface {
	// Store はリフレッシュトークンを無条件に上書き保存する。
	// ログイン時に使用し、既存セッションがあれば置き換える（last-writer-wins）。
	Store(ctx context.Context, userID, token string) error

	// Rotate は保存値がpresentedと一致する場合に限りnextへ差し替える。
	// 比較と書き込みは単一のUPDATE文で行われ、他のリフレッシュと競合しても
	// 成功するのは1つだけ。値が一致しない場合はErrRefreshTokenMismatchを返す。
	Rotate(ctx context.Context, userID, presented, next string) error

	// Clear は保存済みリフレッシュトークンを削除する。冪等。
	Clear(ctx context.Context, userID string) error
}
