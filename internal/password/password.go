// Package password はパスワードのハッシュ化と照合を提供する。
//
// bcryptによる低速・ソルト付きの一方向ハッシュを使用する。
// 平文パスワードとハッシュはこのパッケージの外へログ出力してはならない。
package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher はパスワードのハッシュ化と照合のインターフェース。
type Hasher interface {
	// Hash は平文パスワードからbcryptハッシュを生成する。
	Hash(plain string) (string, error)

	// Verify は保存済みハッシュと候補パスワードを照合する。
	// 不一致・ハッシュ不正のいずれもfalseを返し、エラーは返さない。
	Verify(hash, candidate string) bool
}

// BcryptHasher はbcryptによるHasherの実装。
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher はデフォルトコストのBcryptHasherを生成する。
func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{cost: bcrypt.DefaultCost}
}

// Hash は平文パスワードからbcryptハッシュを生成する。
// ソルトはbcryptがハッシュごとに自動生成する。
func (h *BcryptHasher) Hash(plain string) (string, error) {
	if plain == "" {
		return "", fmt.Errorf("password must not be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify は保存済みハッシュと候補パスワードを照合する。
// bcryptの比較はハッシュ計算を伴うため、総当たりには1回ごとのコストがかかる。
func (h *BcryptHasher) Verify(hash, candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate)) == nil
}

// compile-time interface check
var _ Hasher = (*BcryptHasher)(nil)
