// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, chat, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidParticipants  = "INVALID_PARTICIPANTS"
	ErrCodeThreadNotFound       = "THREAD_NOT_FOUND"
	ErrCodeNotThreadParticipant = "NOT_THREAD_PARTICIPANT"
	ErrCodeInvalidMessageText   = "INVALID_MESSAGE_TEXT"
	ErrCodeInvalidThread        = "INVALID_THREAD"
	ErrCodeMessageNotFound      = "MESSAGE_NOT_FOUND"
	ErrCodeUserNotFound         = "USER_NOT_FOUND"
	ErrCodeInvalidCredentials   = "INVALID_CREDENTIALS"
)

// NewInvalidParticipantsError は参加者指定が不正な場合のエラーを生成する。
// スレッドは常にちょうど2名の相異なる参加者を持つ。
func NewInvalidParticipantsError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidParticipants,
		Message:  fmt.Sprintf("参加者の指定が不正です: %s", reason),
		Category: "validation",
		Action:   "相異なる2名のユーザーIDを指定してください。",
	}
}

// NewThreadNotFoundError はスレッドが見つからない場合のエラーを生成する。
func NewThreadNotFoundError(threadID string) *APIError {
	return &APIError{
		Code:     ErrCodeThreadNotFound,
		Message:  fmt.Sprintf("指定されたスレッドが見つかりません: %s", threadID),
		Category: "chat",
		Action:   "スレッドIDを確認してください。",
	}
}

// NewNotThreadParticipantError はスレッドの参加者でないユーザーによる操作エラーを生成する。
func NewNotThreadParticipantError() *APIError {
	return &APIError{
		Code:     ErrCodeNotThreadParticipant,
		Message:  "このスレッドの参加者ではありません。",
		Category: "auth",
		Action:   "自分が参加しているスレッドに対してのみ操作できます。",
	}
}

// NewInvalidMessageTextError はメッセージ本文が不正な場合のエラーを生成する。
func NewInvalidMessageTextError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidMessageText,
		Message:  "メッセージ本文が空です。",
		Category: "validation",
		Action:   "空白以外の本文を入力してください。",
	}
}

// NewInvalidThreadError はメッセージ送信先スレッドの参照が不正な場合のエラーを生成する。
// スレッドが存在しない場合と送信者が参加者でない場合の両方で同一のエラーを返し、
// 非参加者にスレッドの存在有無を漏らさない。
func NewInvalidThreadError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidThread,
		Message:  "指定されたスレッドに送信できません。",
		Category: "validation",
		Action:   "自分が参加しているスレッドのIDを指定してください。",
	}
}

// NewMessageNotFoundError はメッセージが見つからない場合のエラーを生成する。
func NewMessageNotFoundError(messageID string) *APIError {
	return &APIError{
		Code:     ErrCodeMessageNotFound,
		Message:  fmt.Sprintf("指定されたメッセージが見つかりません: %s", messageID),
		Category: "chat",
		Action:   "メッセージIDを確認してください。",
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

// NewInvalidCredentialsError は認証情報が不正な場合のエラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "ユーザー名またはパスワードが正しくありません。",
		Category: "auth",
		Action:   "認証情報を確認して再度お試しください。",
	}
}
