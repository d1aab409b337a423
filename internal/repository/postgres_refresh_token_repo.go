package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresRefreshTokenRepo はusersテーブルのrefresh_token列を
// アカウントごとの単一セッション枠として操作するリポジトリ。
type PostgresRefreshTokenRepo struct {
	db *sql.DB
}

// NewPostgresRefreshTokenRepo はPostgresRefreshTokenRepoを生成する。
func NewPostgresRefreshTokenRepo(db *sql.DB) *PostgresRefreshTokenRepo {
	return &PostgresRefreshTokenRepo{db: db}
}

// Store はリフレッシュトークンを無条件に上書き保存する。
// 同一アカウントの既存セッションはこの時点で失効する。
func (r *PostgresRefreshTokenRepo) Store(ctx context.Context, userID, token string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET refresh_token = $2, updated_at = now() WHERE id = $1`,
		userID, token,
	)
	if err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", userID)
	}
	return nil
}

// Rotate は保存値がpresentedと一致する場合に限りnextへ差し替える。
// 比較と書き込みは単一のUPDATE文で行われるため、同じトークンを提示する
// 並行リフレッシュのうち行ロックを先に取った1つだけが成功する。
// 一致しなかった場合はErrRefreshTokenMismatchを返す。
func (r *PostgresRefreshTokenRepo) Rotate(ctx context.Context, userID, presented, next string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET refresh_token = $3, updated_at = now()
		 WHERE id = $1 AND refresh_token = $2`,
		userID, presented, next,
	)
	if err != nil {
		return fmt.Errorf("failed to rotate refresh token: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrRefreshTokenMismatch
	}
	return nil
}

// Clear は保存済みリフレッシュトークンを削除する。
// トークンが保存されていないアカウントに対しても成功する（冪等）。
func (r *PostgresRefreshTokenRepo) Clear(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET refresh_token = NULL, updated_at = now() WHERE id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to clear refresh token: %w", err)
	}
	return nil
}

// compile-time interface check
var _ RefreshTokenRepository = (*PostgresRefreshTokenRepo)(nil)
