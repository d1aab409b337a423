// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/cliptube/internal/model"
	"github.com/hitoshi/cliptube/internal/token"
)

// AccessTokenCookieName はアクセストークンを格納するCookie名。
const AccessTokenCookieName = "accessToken"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
var userIDContextKey = contextKey("user_id")

// userContextKey はリクエストコンテキストに認証済みアカウントを格納するためのキー。
var userContextKey = contextKey("user")

// AccessTokenVerifier はアクセストークンの検証に必要なインターフェース。
// token.Codecの部分集合として定義する。
type AccessTokenVerifier interface {
	Verify(tokenString string, role token.Role) (userID string, expiresAt time.Time, err error)
}

// AccountLoader はトークンが参照するアカウントの取得に必要なインターフェース。
// repository.UserRepositoryの部分集合として定義する。
type AccountLoader interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// NewAuthMiddleware はリクエストからアクセストークンを取り出して検証する
// ミドルウェアを返す。トークンはaccessToken CookieまたはAuthorization:
// Bearerヘッダーから読み取る（Cookie優先）。
// 検証に成功したら参照先アカウントをロードし、リクエストコンテキストに
// 注入する。トークンが欠落・期限切れ・改ざん・ロール不一致の場合、
// またはアカウントが既に存在しない場合は401を返す。
// セッションレコードには一切触れない（アクセストークンは署名のみで検証する）。
func NewAuthMiddleware(verifier AccessTokenVerifier, accounts AccountLoader) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractAccessToken(r)
			if tokenString == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			// リフレッシュトークンをここに提示しても、独立した署名鍵と
			// ロールクレームの両方で弾かれる。
			userID, _, err := verifier.Verify(tokenString, token.RoleAccess)
			if err != nil {
				slog.Warn("access token rejected",
					slog.String("reason", err.Error()),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			user, err := accounts.FindByID(r.Context(), userID)
			if err != nil {
				slog.Error("failed to load authenticated account",
					slog.String("user_id", userID),
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}
			if user == nil {
				// 有効なトークンでもアカウント削除後は通さない
				slog.Warn("access token references missing account",
					slog.String("user_id", userID),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			ctx := context.WithValue(r.Context(), userIDContextKey, user.ID)
			ctx = context.WithValue(ctx, userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractAccessToken はCookieまたはAuthorizationヘッダーからトークンを取り出す。
func extractAccessToken(r *http.Request) string {
	if cookie, err := r.Cookie(AccessTokenCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authz := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if strings.HasPrefix(authz, prefix) {
		return strings.TrimSpace(authz[len(prefix):])
	}
	return ""
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// UserFromContext はリクエストコンテキストから認証済みアカウントを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserFromContext(ctx context.Context) (*model.User, error) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	if !ok || user == nil {
		return nil, fmt.Errorf("authenticated user not found in context")
	}
	return user, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}
