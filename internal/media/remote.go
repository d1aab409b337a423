package media

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/cliptube/internal/model"
)

// SSRFValidator はSSRF防止機能のインターフェース。
// 実装はsecurityパッケージが提供する。
type SSRFValidator interface {
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
	ValidateURL(rawURL string) error
}

// RemoteFetcherService はリモートURLからの画像取得インターフェース。
type RemoteFetcherService interface {
	// FetchImage は指定URLから画像を取得する。
	// 画像として扱えない場合はINVALID_IMAGEエラーを返す。
	FetchImage(ctx context.Context, imageURL string) (data []byte, contentType string, err error)
}

// RemoteFetcher はユーザー指定のURLから画像を取得する。
// プライベートネットワークへのアクセスはSSRFガードで遮断される。
type RemoteFetcher struct {
	guard   SSRFValidator
	timeout time.Duration
	maxSize int64
}

// NewRemoteFetcher はRemoteFetcherを生成する。
func NewRemoteFetcher(guard SSRFValidator, timeout time.Duration, maxSize int64) *RemoteFetcher {
	return &RemoteFetcher{
		guard:   guard,
		timeout: timeout,
		maxSize: maxSize,
	}
}

// FetchImage は指定URLから画像を取得する。
// faviconの取得と違い、失敗は呼び出したユーザーに報告する必要があるため
// エラーとして返す。
func (f *RemoteFetcher) FetchImage(ctx context.Context, imageURL string) ([]byte, string, error) {
	if imageURL == "" {
		return nil, "", model.NewInvalidImageError("URLが指定されていません")
	}

	if err := f.guard.ValidateURL(imageURL); err != nil {
		slog.Warn("image fetch blocked", "url", imageURL, "error", err)
		return nil, "", model.NewInvalidImageError("このURLからは取得できません")
	}

	client := f.guard.NewSafeClient(f.timeout, f.maxSize)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", model.NewInvalidImageError("URLの形式が正しくありません")
	}
	req.Header.Set("User-Agent", "Cliptube/1.0")

	resp, err := client.Do(req)
	if err != nil {
		slog.Warn("image fetch failed", "url", imageURL, "error", err)
		return nil, "", model.NewInvalidImageError("画像の取得に失敗しました")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("image fetch: unexpected status", "url", imageURL, "status", resp.StatusCode)
		return nil, "", model.NewInvalidImageError("画像の取得に失敗しました")
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return nil, "", model.NewInvalidImageError("画像の読み取りに失敗しました")
	}
	if int64(len(body)) > f.maxSize {
		return nil, "", model.NewInvalidImageError("画像のサイズが大きすぎます")
	}

	contentType := normalizeContentType(resp.Header.Get("Content-Type"))
	if !IsSupportedImage(contentType) {
		// ヘッダーが信用できないサーバーもあるため、中身でも判定する
		contentType = normalizeContentType(http.DetectContentType(body))
		if !IsSupportedImage(contentType) {
			return nil, "", model.NewInvalidImageError("画像ではないコンテンツです")
		}
	}

	return body, contentType, nil
}

// normalizeContentType はContent-Typeヘッダーからメディアタイプを抽出する。
func normalizeContentType(contentType string) string {
	parts := strings.SplitN(contentType, ";", 2)
	return strings.TrimSpace(strings.ToLower(parts[0]))
}

// IsSupportedImage はメディアタイプが対応画像形式かどうかを判定する。
// SVGはスクリプトを含みうるため対応形式に含めない。
func IsSupportedImage(contentType string) bool {
	switch contentType {
	case "image/png", "image/jpeg", "image/gif", "image/webp":
		return true
	}
	return false
}

// compile-time interface check
var _ RemoteFetcherService = (*RemoteFetcher)(nil)
