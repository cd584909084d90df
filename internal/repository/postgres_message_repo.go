package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/chatman/internal/model"
)

// PostgresMessageRepo はPostgreSQLを使用したメッセージリポジトリ。
type PostgresMessageRepo struct {
	db *sql.DB
}

// NewPostgresMessageRepo はPostgresMessageRepoを生成する。
func NewPostgresMessageRepo(db *sql.DB) *PostgresMessageRepo {
	return &PostgresMessageRepo{db: db}
}

// FindByID は指定IDのメッセージを取得する。見つからない場合はnilを返す。
func (r *PostgresMessageRepo) FindByID(ctx context.Context, id string) (*model.Message, error) {
	msg := &model.Message{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, thread_id, sender_id, text, is_read, created_at
		 FROM messages WHERE id = $1`,
		id,
	).Scan(&msg.ID, &msg.ThreadID, &msg.SenderID, &msg.Text, &msg.IsRead, &msg.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("メッセージの取得に失敗しました: %w", err)
	}
	return msg, nil
}

// Create はメッセージを作成する。
func (r *PostgresMessageRepo) Create(ctx context.Context, msg *model.Message) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO messages (id, thread_id, sender_id, text, is_read, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, msg.ThreadID, msg.SenderID, msg.Text, msg.IsRead, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("メッセージの作成に失敗しました: %w", err)
	}
	return nil
}

// ListVisible は指定ユーザーが参加するスレッドのメッセージを
// created_at昇順（同時刻はID昇順）で返す。
// threadIDが空でない場合はそのスレッドに限定する。
// 参加者スコープはthread_participantsとのJOINで強制する。
func (r *PostgresMessageRepo) ListVisible(ctx context.Context, userID, threadID string, limit, offset int) ([]*model.Message, error) {
	query := `SELECT m.id, m.thread_id, m.sender_id, m.text, m.is_read, m.created_at
	          FROM messages m
	          JOIN thread_participants tp ON tp.thread_id = m.thread_id AND tp.user_id = $1`
	args := []interface{}{userID}

	if threadID != "" {
		query += ` WHERE m.thread_id = $2 ORDER BY m.created_at ASC, m.id ASC LIMIT $3 OFFSET $4`
		args = append(args, threadID, limit, offset)
	} else {
		query += ` ORDER BY m.created_at ASC, m.id ASC LIMIT $2 OFFSET $3`
		args = append(args, limit, offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("メッセージ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var msgs []*model.Message
	for rows.Next() {
		msg := &model.Message{}
		if err := rows.Scan(&msg.ID, &msg.ThreadID, &msg.SenderID, &msg.Text, &msg.IsRead, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("メッセージ行の読み取りに失敗しました: %w", err)
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("メッセージ一覧の走査に失敗しました: %w", err)
	}
	return msgs, nil
}

// CountVisible はListVisibleと同じ条件でのメッセージ総数を返す。
func (r *PostgresMessageRepo) CountVisible(ctx context.Context, userID, threadID string) (int, error) {
	query := `SELECT COUNT(*)
	          FROM messages m
	          JOIN thread_participants tp ON tp.thread_id = m.thread_id AND tp.user_id = $1`
	args := []interface{}{userID}

	if threadID != "" {
		query += ` WHERE m.thread_id = $2`
		args = append(args, threadID)
	}

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("メッセージ数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// MarkRead はメッセージを既読にする。
// 目標状態が常にtrueであるため、並行呼び出しでも安全な冪等操作となる。
func (r *PostgresMessageRepo) MarkRead(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE messages SET is_read = TRUE WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("既読フラグの更新に失敗しました: %w", err)
	}
	return nil
}

// CountUnread は指定ユーザーが参加するスレッドの未読メッセージ数を返す。
// ユーザー自身が送信したメッセージは未読に数えない。
func (r *PostgresMessageRepo) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*)
		 FROM messages m
		 JOIN thread_participants tp ON tp.thread_id = m.thread_id AND tp.user_id = $1
		 WHERE m.is_read = FALSE AND m.sender_id <> $1`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("未読数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ MessageRepository = (*PostgresMessageRepo)(nil)
