// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, media, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeRefreshTokenReused = "REFRESH_TOKEN_EXPIRED_OR_USED"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeUsernameTaken      = "USERNAME_TAKEN"
	ErrCodeEmailTaken         = "EMAIL_TAKEN"
	ErrCodeInvalidImage       = "INVALID_IMAGE"
	ErrCodeMediaDisabled      = "MEDIA_DISABLED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewValidationError は入力値不正エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力内容に誤りがあります: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewInvalidCredentialsError は認証失敗エラーを生成する。
// ユーザー名の存在有無を推測されないよう、
// 「ユーザーが存在しない」と「パスワード不一致」を区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "ユーザー名またはパスワードが正しくありません。",
		Category: "auth",
		Action:   "ユーザー名とパスワードを確認してください。",
	}
}

// NewUnauthorizedError は認証が必要なリクエストの失敗エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewRefreshTokenReusedError はローテーション済み・期限切れの
// リフレッシュトークンが提示された場合のエラーを生成する。
func NewRefreshTokenReusedError() *APIError {
	return &APIError{
		Code:     ErrCodeRefreshTokenReused,
		Message:  "リフレッシュトークンは期限切れか、すでに使用されています。",
		Category: "auth",
		Action:   "再度ログインしてください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewUsernameTakenError はユーザー名重複エラーを生成する。
func NewUsernameTakenError(username string) *APIError {
	return &APIError{
		Code:     ErrCodeUsernameTaken,
		Message:  fmt.Sprintf("このユーザー名はすでに使用されています: %s", username),
		Category: "validation",
		Action:   "別のユーザー名を指定してください。",
	}
}

// NewEmailTakenError はメールアドレス重複エラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスはすでに登録されています。",
		Category: "validation",
		Action:   "登録済みのアカウントでログインしてください。",
	}
}

// NewInvalidImageError は画像として扱えない入力のエラーを生成する。
func NewInvalidImageError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidImage,
		Message:  fmt.Sprintf("画像を取得できませんでした: %s", reason),
		Category: "media",
		Action:   "画像のURLまたはファイルを確認してください。",
	}
}

// NewMediaDisabledError はメディアストレージ未設定時のエラーを生成する。
func NewMediaDisabledError() *APIError {
	return &APIError{
		Code:     ErrCodeMediaDisabled,
		Message:  "メディアストレージが構成されていません。",
		Category: "media",
		Action:   "管理者に問い合わせてください。",
	}
}
