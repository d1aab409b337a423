// Package model はドメインモデルを定義する。
package model

import (
	"database/sql"
	"time"
)

// User はサービス利用ユーザーを表す。
// PasswordHashとRefreshTokenは認証コアの外に公開してはならない。
type User struct {
	ID            string
	Username      string
	Email         string
	FullName      string
	AvatarURL     string
	CoverImageURL string

	// PasswordHash はbcryptハッシュ。検証はpasswordパッケージのみが行う。
	PasswordHash string

	// RefreshToken は現在有効なリフレッシュトークン。
	// アカウントごとに最大1つ。未ログイン時はNULL。
	// 「このリフレッシュトークンはまだ有効か」の唯一の真実源であり、
	// 更新はauthプロトコル経由のStore/Rotate/Clearに限る。
	RefreshToken sql.NullString

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PublicUser はAPIレスポンスに載せてよいユーザー表現。
// パスワードハッシュとリフレッシュトークンを含まない。
type PublicUser struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	FullName      string `json:"fullName"`
	AvatarURL     string `json:"avatarUrl,omitempty"`
	CoverImageURL string `json:"coverImageUrl,omitempty"`
}

// Public は資格情報フィールドを落とした表現を返す。
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		FullName:      u.FullName,
		AvatarURL:     u.AvatarURL,
		CoverImageURL: u.CoverImageURL,
	}
}

// TokenPair は発行済みのアクセストークンとリフレッシュトークンの組。
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}
