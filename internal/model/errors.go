// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, registry, attendance, backup, sync, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeParticipantNotFound  = "PARTICIPANT_NOT_FOUND"
	ErrCodeNoSessionSelected    = "NO_SESSION_SELECTED"
	ErrCodeInvalidSession       = "INVALID_SESSION"
	ErrCodePersistenceFailed    = "PERSISTENCE_FAILED"
	ErrCodeSyncDisabled         = "SYNC_DISABLED"
	ErrCodeSyncFailed           = "SYNC_FAILED"
	ErrCodeImportFormat         = "IMPORT_FORMAT_ERROR"
	ErrCodeImportNotFound       = "IMPORT_NOT_FOUND"
	ErrCodeScannerError         = "SCANNER_ERROR"
	ErrCodeConfirmationRequired = "CONFIRMATION_REQUIRED"
)

// NewValidationError は入力値検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力値が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewParticipantNotFoundError は参加者未検出エラーを生成する。
func NewParticipantNotFoundError(participantID string) *APIError {
	return &APIError{
		Code:     ErrCodeParticipantNotFound,
		Message:  fmt.Sprintf("指定された参加者が見つかりません: %s", participantID),
		Category: "registry",
		Action:   "参加者IDを確認してください。",
	}
}

// NewNoSessionSelectedError はセッション未選択エラーを生成する。
func NewNoSessionSelectedError() *APIError {
	return &APIError{
		Code:     ErrCodeNoSessionSelected,
		Message:  "セッションが選択されていません。",
		Category: "attendance",
		Action:   "出欠を記録するセッションを先に選択してください。",
	}
}

// NewInvalidSessionError は未定義セッションエラーを生成する。
func NewInvalidSessionError(session string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSession,
		Message:  fmt.Sprintf("未定義のセッションです: %s", session),
		Category: "validation",
		Action:   "Day1〜Day3の午前・午後セッションのいずれかを指定してください。",
	}
}

// NewPersistenceFailedError は永続化失敗エラーを生成する。
func NewPersistenceFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodePersistenceFailed,
		Message:  fmt.Sprintf("ワークショップデータの保存に失敗しました: %s", reason),
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。変更は適用されていません。",
	}
}

// NewSyncDisabledError は同期先未設定エラーを生成する。
func NewSyncDisabledError() *APIError {
	return &APIError{
		Code:     ErrCodeSyncDisabled,
		Message:  "同期先のWebhook URLが設定されていません。",
		Category: "sync",
		Action:   "WEBHOOK_URL を設定してから同期を実行してください。",
	}
}

// NewSyncFailedError は同期失敗エラーを生成する。
func NewSyncFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeSyncFailed,
		Message:  fmt.Sprintf("スプレッドシートへの同期に失敗しました: %s", reason),
		Category: "sync",
		Action:   "Webhook URLと通信状態を確認して再度お試しください。",
	}
}

// NewImportFormatError はインポートデータ形式エラーを生成する。
func NewImportFormatError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeImportFormat,
		Message:  fmt.Sprintf("バックアップファイルの形式が不正です: %s", reason),
		Category: "backup",
		Action:   "エクスポートされたJSONバックアップファイルを指定してください。",
	}
}

// NewImportNotFoundError はインポートトークン未検出エラーを生成する。
// トークンの有効期限切れも同じエラーになる。
func NewImportNotFoundError(token string) *APIError {
	return &APIError{
		Code:     ErrCodeImportNotFound,
		Message:  fmt.Sprintf("指定されたインポートが見つかりません: %s", token),
		Category: "backup",
		Action:   "インポートを最初からやり直してください。",
	}
}

// NewScannerError はスキャナー起動・読み取り失敗エラーを生成する。
func NewScannerError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeScannerError,
		Message:  fmt.Sprintf("スキャナーの開始に失敗しました: %s", reason),
		Category: "attendance",
		Action:   "スキャナーの接続を確認して再度お試しください。",
	}
}

// NewConfirmationRequiredError は確認フラグ未指定エラーを生成する。
func NewConfirmationRequiredError(operation string) *APIError {
	return &APIError{
		Code:     ErrCodeConfirmationRequired,
		Message:  fmt.Sprintf("この操作には確認が必要です: %s", operation),
		Category: "validation",
		Action:   "confirm=true を指定して再度実行してください。",
	}
}
