// Package media はプロフィール画像のオブジェクトストレージ連携を提供する。
//
// 画像本体はS3互換ストレージに置き、データベースにはストレージキーのみを
// 保存する。アップロードは署名付きPUT URL経由で行い、参照時に署名付き
// GET URLへ解決する。
package media

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/hitoshi/cliptube/internal/config"
)

// UploaderService は画像ストレージ操作のインターフェースを定義する。
type UploaderService interface {
	// PresignUpload は指定された種別・Content-Typeの画像をアップロードする
	// ための署名付きPUT URLとストレージキーを生成する。
	PresignUpload(ctx context.Context, kind, contentType string) (key, putURL string, err error)

	// ResolveURL はストレージキーを署名付きGET URLへ解決する。
	ResolveURL(ctx context.Context, key string) (string, error)

	// UploadViaPresign は署名付きPUT URLへ画像データを送信する。
	UploadViaPresign(ctx context.Context, putURL, contentType string, data []byte) error
}

// S3Uploader はUploaderServiceのS3互換ストレージ実装。
// MinIO等のセルフホスト環境ではエンドポイントを差し替えて使う。
type S3Uploader struct {
	presign    *s3.PresignClient
	httpClient *http.Client
	bucket     string
	expires    time.Duration
}

// NewS3Uploader はS3Uploaderを生成する。
// メディアストレージが構成されていない場合はエラーを返す。
func NewS3Uploader(cfg *config.Config) (*S3Uploader, error) {
	if !cfg.MediaEnabled() {
		return nil, fmt.Errorf("media storage is not configured (S3_BUCKET is empty)")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKey,
			cfg.S3SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
	})

	return &S3Uploader{
		presign:    s3.NewPresignClient(client),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		bucket:     cfg.S3Bucket,
		expires:    cfg.PresignExpires,
	}, nil
}

// newStorageKey は日付プレフィックス付きの一意なストレージキーを生成する。
// 例: avatars/2026/8/27/<uuid>.png
func newStorageKey(kind, contentType string) string {
	d := time.Now()
	return fmt.Sprintf("%s/%d/%d/%d/%s%s",
		kind, d.Year(), d.Month(), d.Day(), uuid.NewString(), extensionFor(contentType))
}

// extensionFor はContent-Typeに対応するファイル拡張子を返す。
func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}

// PresignUpload は署名付きPUT URLとストレージキーを生成する。
func (u *S3Uploader) PresignUpload(ctx context.Context, kind, contentType string) (string, string, error) {
	key := newStorageKey(kind, contentType)

	req, err := u.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      &u.bucket,
		Key:         &key,
		ContentType: &contentType,
	}, s3.WithPresignExpires(u.expires))
	if err != nil {
		return "", "", fmt.Errorf("failed to presign PUT: %w", err)
	}

	return key, req.URL, nil
}

// ResolveURL はストレージキーを署名付きGET URLへ解決する。
func (u *S3Uploader) ResolveURL(ctx context.Context, key string) (string, error) {
	req, err := u.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &u.bucket,
		Key:    &key,
	}, s3.WithPresignExpires(u.expires))
	if err != nil {
		return "", fmt.Errorf("failed to presign GET: %w", err)
	}
	return req.URL, nil
}

// UploadViaPresign は署名付きPUT URLへ画像データを送信する。
func (u *S3Uploader) UploadViaPresign(ctx context.Context, putURL, contentType string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, putURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("object storage returned status %d", resp.StatusCode)
	}
	return nil
}

// compile-time interface check
var _ UploaderService = (*S3Uploader)(nil)
