package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/cliptube/internal/middleware"
	"github.com/hitoshi/cliptube/internal/model"
)

const (
	accessTokenCookieName  = "accessToken"
	refreshTokenCookieName = "refreshToken"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, username, password string) (*model.TokenPair, *model.User, error)
	Logout(ctx context.Context, userID string) error
	Refresh(ctx context.Context, presented string) (*model.TokenPair, error)
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
}

// CookieConfig は認証Cookieの設定。
type CookieConfig struct {
	Domain        string
	Secure        bool
	AccessMaxAge  int // アクセストークンCookieの有効期間（秒）
	RefreshMaxAge int // リフレッシュトークンCookieの有効期間（秒）
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	cookies CookieConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, cookies CookieConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		cookies: cookies,
	}
}

// Login はユーザー名とパスワードでログインする。
// POST /api/users/login
// 成功時はトークンペアをCookieに設定し、ボディにユーザーと
// アクセストークンを返す。失敗時はCookieを一切設定しない。
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディを読み取れません"))
		return
	}

	pair, user, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.setAuthCookies(w, pair)
	writeJSON(w, http.StatusOK, map[string]any{
		"user":        user.Public(),
		"accessToken": pair.AccessToken,
	})
}

// Logout はセッションを終了する。
// POST /api/users/logout
// サーバー側のリフレッシュトークンを削除し、両Cookieをクリアする。
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := h.service.Logout(r.Context(), userID); err != nil {
		// 失敗してもCookieはクリアする
		slog.Error("logout failed", slog.String("error", err.Error()))
	}

	h.clearAuthCookies(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "ログアウトしました。"})
}

// RefreshToken はリフレッシュトークンを新しいトークンペアに交換する。
// POST /api/users/refresh-token
// トークンはCookieまたはボディから読み取る（Cookie優先）。
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	presented := h.extractRefreshToken(r)

	pair, err := h.service.Refresh(r.Context(), presented)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.setAuthCookies(w, pair)
	writeJSON(w, http.StatusOK, map[string]string{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

// ChangePassword は現在のパスワードを検証して新しいパスワードに変更する。
// POST /api/users/change-password
// 変更後はサーバー側のリフレッシュトークンが無効化されるため、
// Cookieもクリアして再ログインを促す。
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req struct {
		OldPassword string `json:"oldPassword"`
		NewPassword string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディを読み取れません"))
		return
	}

	if err := h.service.ChangePassword(r.Context(), userID, req.OldPassword, req.NewPassword); err != nil {
		handleServiceError(w, err)
		return
	}

	h.clearAuthCookies(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "パスワードを変更しました。再度ログインしてください。"})
}

// extractRefreshToken はCookieまたはボディからリフレッシュトークンを取り出す。
func (h *AuthHandler) extractRefreshToken(r *http.Request) string {
	if cookie, err := r.Cookie(refreshTokenCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
		return req.RefreshToken
	}
	return ""
}

// setAuthCookies はアクセス・リフレッシュ両トークンをHTTP Only Cookieに設定する。
func (h *AuthHandler) setAuthCookies(w http.ResponseWriter, pair *model.TokenPair) {
	http.SetCookie(w, h.newAuthCookie(accessTokenCookieName, pair.AccessToken, h.cookies.AccessMaxAge))
	http.SetCookie(w, h.newAuthCookie(refreshTokenCookieName, pair.RefreshToken, h.cookies.RefreshMaxAge))
}

// clearAuthCookies は両トークンのCookieを失効させる。
func (h *AuthHandler) clearAuthCookies(w http.ResponseWriter) {
	http.SetCookie(w, h.newAuthCookie(accessTokenCookieName, "", -1))
	http.SetCookie(w, h.newAuthCookie(refreshTokenCookieName, "", -1))
}

func (h *AuthHandler) newAuthCookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.cookies.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
