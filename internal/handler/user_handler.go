package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/cliptube/internal/media"
	"github.com/hitoshi/cliptube/internal/middleware"
	"github.com/hitoshi/cliptube/internal/model"
	"github.com/hitoshi/cliptube/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	Register(ctx context.Context, input user.RegisterInput) (*model.User, error)
	GetByID(ctx context.Context, userID string) (*model.User, error)
	UpdateDetails(ctx context.Context, userID, fullName, email string) (*model.User, error)
	SetAvatarURL(ctx context.Context, userID, url string) (*model.User, error)
	SetCoverImageURL(ctx context.Context, userID, url string) (*model.User, error)
}

// UserHandler はアカウント管理のHTTPハンドラー。
// uploaderとfetcherはメディアストレージ未構成の場合nil。
type UserHandler struct {
	service       UserServiceInterface
	uploader      media.UploaderService
	fetcher       media.RemoteFetcherService
	maxUploadSize int64
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(
	service UserServiceInterface,
	uploader media.UploaderService,
	fetcher media.RemoteFetcherService,
	maxUploadSize int64,
) *UserHandler {
	return &UserHandler{
		service:       service,
		uploader:      uploader,
		fetcher:       fetcher,
		maxUploadSize: maxUploadSize,
	}
}

// Register は新規アカウントを作成する。
// POST /api/users/register
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		FullName string `json:"fullName"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディを読み取れません"))
		return
	}

	created, err := h.service.Register(r.Context(), user.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		FullName: req.FullName,
		Password: req.Password,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"user": created.Public()})
}

// Profile は現在のログインユーザーのプロフィールを返す。
// GET /api/users/profile
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	u, err := h.service.GetByID(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": h.publicWithMedia(r.Context(), u)})
}

// UpdateDetails は表示名・メールアドレスを更新する。
// PATCH /api/users/update-details
func (h *UserHandler) UpdateDetails(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req struct {
		FullName string `json:"fullName"`
		Email    string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディを読み取れません"))
		return
	}

	updated, err := h.service.UpdateDetails(r.Context(), userID, req.FullName, req.Email)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": h.publicWithMedia(r.Context(), updated)})
}

// UpdateAvatar はアバター画像を差し替える。
// POST /api/users/update-avatar
// multipart/form-dataのavatarフィールド、またはJSONボディのurlフィールド
// （リモート取得）のどちらかで画像を受け取る。
func (h *UserHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "avatars", "avatar", h.service.SetAvatarURL)
}

// UpdateCoverImage はカバー画像を差し替える。
// POST /api/users/update-coverimage
func (h *UserHandler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "covers", "coverImage", h.service.SetCoverImageURL)
}

// updateImage は画像受信からストレージ保存までの共通処理。
func (h *UserHandler) updateImage(
	w http.ResponseWriter,
	r *http.Request,
	kind, formField string,
	save func(ctx context.Context, userID, url string) (*model.User, error),
) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if h.uploader == nil {
		writeAPIErrorResponse(w, http.StatusServiceUnavailable, model.NewMediaDisabledError())
		return
	}

	data, contentType, err := h.readImage(r, formField)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	key, putURL, err := h.uploader.PresignUpload(r.Context(), kind, contentType)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if err := h.uploader.UploadViaPresign(r.Context(), putURL, contentType, data); err != nil {
		handleServiceError(w, err)
		return
	}

	updated, err := save(r.Context(), userID, key)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	slog.Info("profile image updated",
		slog.String("user_id", userID),
		slog.String("kind", kind),
	)
	writeJSON(w, http.StatusOK, map[string]any{"user": h.publicWithMedia(r.Context(), updated)})
}

// readImage はリクエストから画像データとContent-Typeを取り出す。
// multipartアップロードとリモートURL指定の両方に対応する。
func (h *UserHandler) readImage(r *http.Request, formField string) ([]byte, string, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return h.readMultipartImage(r, formField)
	}

	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		return nil, "", model.NewInvalidImageError("画像ファイルまたはURLを指定してください")
	}
	if h.fetcher == nil {
		return nil, "", model.NewMediaDisabledError()
	}
	return h.fetcher.FetchImage(r.Context(), req.URL)
}

// readMultipartImage はmultipartフォームから画像を読み取る。
func (h *UserHandler) readMultipartImage(r *http.Request, formField string) ([]byte, string, error) {
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		return nil, "", model.NewInvalidImageError("フォームを読み取れません")
	}

	file, _, err := r.FormFile(formField)
	if err != nil {
		return nil, "", model.NewInvalidImageError("画像ファイルが見つかりません")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadSize+1))
	if err != nil {
		return nil, "", model.NewInvalidImageError("画像の読み取りに失敗しました")
	}
	if int64(len(data)) > h.maxUploadSize {
		return nil, "", model.NewInvalidImageError("画像のサイズが大きすぎます")
	}

	contentType := http.DetectContentType(data)
	if !media.IsSupportedImage(contentType) {
		return nil, "", model.NewInvalidImageError("対応していない画像形式です")
	}
	return data, contentType, nil
}

// publicWithMedia は公開用表現を生成し、ストレージキーを署名付きURLへ解決する。
// メディア未構成時や解決失敗時は保存値をそのまま返す。
func (h *UserHandler) publicWithMedia(ctx context.Context, u *model.User) model.PublicUser {
	pub := u.Public()
	if h.uploader == nil {
		return pub
	}

	if pub.AvatarURL != "" {
		if resolved, err := h.uploader.ResolveURL(ctx, pub.AvatarURL); err == nil {
			pub.AvatarURL = resolved
		}
	}
	if pub.CoverImageURL != "" {
		if resolved, err := h.uploader.ResolveURL(ctx, pub.CoverImageURL); err == nil {
			pub.CoverImageURL = resolved
		}
	}
	return pub
}
