// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/chatman/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByUsername はユーザー名でユーザーを検索する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// ThreadRepository は会話スレッドの永続化インターフェース。
// スレッドと参加者（常にちょうど2名）をまとめて扱う。
type ThreadRepository interface {
	// FindByID は指定IDのスレッドを参加者付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Thread, error)

	// FindByPairKey は正規化ペアキーでスレッドを検索する。見つからない場合はnilを返す。
	// ペアキーのUNIQUE制約により、一致するスレッドは高々1件。
	FindByPairKey(ctx context.Context, pairKey string) (*model.Thread, error)

	// Create はスレッドと2名の参加者を同一トランザクションで作成する。
	// pair_keyのUNIQUE制約に違反した場合はErrDuplicatePairを返す。
	// 呼び出し側は競合時にFindByPairKeyで勝者を取得し直す。
	Create(ctx context.Context, thread *model.Thread, pairKey string) error

	// ListByParticipant は指定ユーザーが参加する全スレッドを
	// updated_at降順（同時刻はID昇順）で返す。
	ListByParticipant(ctx context.Context, userID string, limit, offset int) ([]*model.Thread, error)

	// CountByParticipant は指定ユーザーが参加するスレッド数を返す。
	CountByParticipant(ctx context.Context, userID string) (int, error)

	// Delete は指定IDのスレッドを削除する。
	// 参加者行とメッセージはCASCADE削除される。
	Delete(ctx context.Context, id string) error

	// TouchUpdated はスレッドのupdated_atを現在時刻に更新する。
	// メッセージ作成などスレッド所有の変更時に呼ぶ。
	TouchUpdated(ctx context.Context, id string) error

	// IsParticipant は指定ユーザーが指定スレッドの参加者かどうかを返す。
	IsParticipant(ctx context.Context, userID, threadID string) (bool, error)
}

// MessageRepository はメッセージの永続化インターフェース。
// 全ての一覧クエリは参加者スコープ（requestingUserが参加するスレッドのみ）で動作する。
type MessageRepository interface {
	// FindByID は指定IDのメッセージを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Message, error)

	// Create はメッセージを作成する。
	Create(ctx context.Context, message *model.Message) error

	// ListVisible は指定ユーザーが参加するスレッドのメッセージを
	// created_at昇順（同時刻はID昇順）で返す。
	// threadIDが空でない場合はそのスレッドに限定する。
	ListVisible(ctx context.Context, userID, threadID string, limit, offset int) ([]*model.Message, error)

	// CountVisible はListVisibleと同じ条件でのメッセージ総数を返す。
	CountVisible(ctx context.Context, userID, threadID string) (int, error)

	// MarkRead はメッセージを既読にする。
	// 既に既読の場合も成功として扱う（冪等）。
	MarkRead(ctx context.Context, id string) error

	// CountUnread は指定ユーザーが参加するスレッドの未読メッセージ数を返す。
	// ユーザー自身が送信したメッセージは未読に数えない。
	CountUnread(ctx context.Context, userID string) (int, error)
}
