// Package token は署名付き・期限付きトークンの発行と検証を提供する。
//
// アクセストークンとリフレッシュトークンはロールごとに独立した署名鍵と
// 有効期間を持つ。一方のロールで発行されたトークンを他方として提示しても、
// 署名鍵とロールクレームの両方で拒否される。
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role はトークンの用途を表す。
type Role string

const (
	// RoleAccess は毎リクエストの身元証明に使う短命トークン。
	RoleAccess Role = "access"
	// RoleRefresh はアクセストークン再発行に使う長命トークン。
	RoleRefresh Role = "refresh"
)

// 検証失敗の種別。呼び出し側はerrors.Isで区別できる。
var (
	// ErrTokenExpired は有効期限切れ。
	ErrTokenExpired = errors.New("token is expired")
	// ErrInvalidSignature は署名不一致。改ざんまたは別ロールの鍵で署名されたトークン。
	ErrInvalidSignature = errors.New("token signature is invalid")
	// ErrMalformedToken は構造を解析できないトークン。
	ErrMalformedToken = errors.New("token is malformed")
	// ErrRoleMismatch は構造・署名は正しいがロールクレームが一致しないトークン。
	ErrRoleMismatch = errors.New("token role mismatch")
)

// Claims はトークンに載せるクレーム。
// subjectにアカウントID、roleに用途を持つ。
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Config はCodecの設定。
type Config struct {
	AccessSecret  []byte
	AccessTTL     time.Duration
	RefreshSecret []byte
	RefreshTTL    time.Duration
}

// Codec はHS256署名のJWTを発行・検証する。
// 署名・検証ともI/Oを行わず、並行利用に対して安全。
type Codec struct {
	secrets map[Role][]byte
	ttls    map[Role]time.Duration
}

// NewCodec はCodecを生成する。
// 鍵が空、TTLが非正、または両ロールの鍵が同一の場合はエラーを返す。
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, fmt.Errorf("token secrets must not be empty")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, fmt.Errorf("access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, fmt.Errorf("token TTLs must be positive")
	}

	return &Codec{
		secrets: map[Role][]byte{
			RoleAccess:  cfg.AccessSecret,
			RoleRefresh: cfg.RefreshSecret,
		},
		ttls: map[Role]time.Duration{
			RoleAccess:  cfg.AccessTTL,
			RoleRefresh: cfg.RefreshTTL,
		},
	}, nil
}

// TTL は指定ロールの有効期間を返す。
func (c *Codec) TTL(role Role) time.Duration {
	return c.ttls[role]
}

// Issue は指定アカウントID・ロールのトークンを発行する。
func (c *Codec) Issue(userID string, role Role) (string, error) {
	secret, ok := c.secrets[role]
	if !ok {
		return "", fmt.Errorf("unknown token role: %s", role)
	}
	if userID == "" {
		return "", fmt.Errorf("user ID must not be empty")
	}

	now := time.Now()
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttls[role])),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", role, err)
	}
	return signed, nil
}

// Verify はトークンを指定ロールとして検証し、アカウントIDと有効期限を返す。
// 失敗はErrTokenExpired / ErrInvalidSignature / ErrMalformedToken /
// ErrRoleMismatchのいずれかに分類される。
func (c *Codec) Verify(tokenString string, role Role) (string, time.Time, error) {
	secret, ok := c.secrets[role]
	if !ok {
		return "", time.Time{}, fmt.Errorf("unknown token role: %s", role)
	}
	if tokenString == "" {
		return "", time.Time{}, ErrMalformedToken
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", time.Time{}, classifyParseError(err)
	}

	if claims.Role != string(role) {
		return "", time.Time{}, ErrRoleMismatch
	}
	if claims.Subject == "" || claims.ExpiresAt == nil {
		return "", time.Time{}, ErrMalformedToken
	}

	return claims.Subject, claims.ExpiresAt.Time, nil
}

// classifyParseError はjwtライブラリのエラーを公開エラー種別に分類する。
func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformedToken
	default:
		// 未知の検証失敗は解析不能として扱う
		return ErrMalformedToken
	}
}
