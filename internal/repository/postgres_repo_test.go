package repository

import (
	"errors"
	"testing"
)

// PostgresUserRepoはUserRepositoryインターフェースを満たすことを検証
func TestPostgresUserRepo_ImplementsInterface(t *testing.T) {
	var _ UserRepository = (*PostgresUserRepo)(nil)
}

// PostgresRefreshTokenRepoはRefreshTokenRepositoryインターフェースを満たすことを検証
func TestPostgresRefreshTokenRepo_ImplementsInterface(t *testing.T) {
	var _ RefreshTokenRepository = (*PostgresRefreshTokenRepo)(nil)
}

// NewPostgresUserRepoが正しく初期化されることを検証
func TestNewPostgresUserRepo_Initializes(t *testing.T) {
	repo := NewPostgresUserRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// NewPostgresRefreshTokenRepoが正しく初期化されることを検証
func TestNewPostgresRefreshTokenRepo_Initializes(t *testing.T) {
	repo := NewPostgresRefreshTokenRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// ErrRefreshTokenMismatchがerrors.Isで判別できることを検証
func TestErrRefreshTokenMismatch_IsSentinel(t *testing.T) {
	wrapped := errors.Join(errors.New("outer"), ErrRefreshTokenMismatch)
	if !errors.Is(wrapped, ErrRefreshTokenMismatch) {
		t.Error("wrapped error should match ErrRefreshTokenMismatch")
	}
}
