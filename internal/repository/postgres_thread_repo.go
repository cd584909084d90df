package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/chatman/internal/model"
)

// ErrDuplicatePair はペアキーのUNIQUE制約違反を表す。
// 同一ペアのスレッドを同時に作成しようとした場合に返り、
// 呼び出し側は既存スレッド（勝者）を取得し直して返す。
var ErrDuplicatePair = errors.New("thread already exists for participant pair")

// uniqueViolation はPostgreSQLの一意制約違反のSQLSTATEコード。
const uniqueViolation = "23505"

// PostgresThreadRepo はPostgreSQLを使用したスレッドリポジトリ。
type PostgresThreadRepo struct {
	db *sql.DB
}

// NewPostgresThreadRepo はPostgresThreadRepoを生成する。
func NewPostgresThreadRepo(db *sql.DB) *PostgresThreadRepo {
	return &PostgresThreadRepo{db: db}
}

// FindByID は指定IDのスレッドを参加者付きで取得する。見つからない場合はnilを返す。
func (r *PostgresThreadRepo) FindByID(ctx context.Context, id string) (*model.Thread, error) {
	thread := &model.Thread{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, created_at, updated_at FROM threads WHERE id = $1`,
		id,
	).Scan(&thread.ID, &thread.CreatedAt, &thread.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("スレッドの取得に失敗しました: %w", err)
	}

	if err := r.loadParticipants(ctx, thread); err != nil {
		return nil, err
	}
	return thread, nil
}

// FindByPairKey は正規化ペアキーでスレッドを検索する。見つからない場合はnilを返す。
func (r *PostgresThreadRepo) FindByPairKey(ctx context.Context, pairKey string) (*model.Thread, error) {
	thread := &model.Thread{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, created_at, updated_at FROM threads WHERE pair_key = $1`,
		pairKey,
	).Scan(&thread.ID, &thread.CreatedAt, &thread.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ペアキーによるスレッドの検索に失敗しました: %w", err)
	}

	if err := r.loadParticipants(ctx, thread); err != nil {
		return nil, err
	}
	return thread, nil
}

// Create はスレッドと2名の参加者を同一トランザクションで作成する。
// pair_keyのUNIQUE制約に違反した場合はErrDuplicatePairを返す。
func (r *PostgresThreadRepo) Create(ctx context.Context, thread *model.Thread, pairKey string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO threads (id, pair_key, created_at, updated_at)
		 VALUES ($1, $2, $3, $4)`,
		thread.ID, pairKey, thread.CreatedAt, thread.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return ErrDuplicatePair
		}
		return fmt.Errorf("スレッドの作成に失敗しました: %w", err)
	}

	for _, userID := range thread.ParticipantIDs {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO thread_participants (thread_id, user_id) VALUES ($1, $2)`,
			thread.ID, userID,
		)
		if err != nil {
			return fmt.Errorf("スレッド参加者の作成に失敗しました: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

// ListByParticipant は指定ユーザーが参加する全スレッドを
// updated_at降順（同時刻はID昇順）で返す。
func (r *PostgresThreadRepo) ListByParticipant(ctx context.Context, userID string, limit, offset int) ([]*model.Thread, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT t.id, t.created_at, t.updated_at
		 FROM threads t
		 JOIN thread_participants tp ON tp.thread_id = t.id
		 WHERE tp.user_id = $1
		 ORDER BY t.updated_at DESC, t.id ASC
		 LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("スレッド一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var threads []*model.Thread
	for rows.Next() {
		thread := &model.Thread{}
		if err := rows.Scan(&thread.ID, &thread.CreatedAt, &thread.UpdatedAt); err != nil {
			return nil, fmt.Errorf("スレッド行の読み取りに失敗しました: %w", err)
		}
		threads = append(threads, thread)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("スレッド一覧の走査に失敗しました: %w", err)
	}

	for _, thread := range threads {
		if err := r.loadParticipants(ctx, thread); err != nil {
			return nil, err
		}
	}
	return threads, nil
}

// CountByParticipant は指定ユーザーが参加するスレッド数を返す。
func (r *PostgresThreadRepo) CountByParticipant(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM thread_participants WHERE user_id = $1`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("スレッド数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// Delete は指定IDのスレッドを削除する。
// 参加者行とメッセージはCASCADE削除される。
func (r *PostgresThreadRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM threads WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("スレッドの削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("スレッドが見つかりません: %s", id)
	}
	return nil
}

// TouchUpdated はスレッドのupdated_atを現在時刻に更新する。
func (r *PostgresThreadRepo) TouchUpdated(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE threads SET updated_at = NOW() WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("スレッド更新時刻の更新に失敗しました: %w", err)
	}
	return nil
}

// IsParticipant は指定ユーザーが指定スレッドの参加者かどうかを返す。
func (r *PostgresThreadRepo) IsParticipant(ctx context.Context, userID, threadID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
		     SELECT 1 FROM thread_participants WHERE thread_id = $1 AND user_id = $2
		 )`,
		threadID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("参加者判定に失敗しました: %w", err)
	}
	return exists, nil
}

// loadParticipants はスレッドの参加者ID一覧を読み込む。
func (r *PostgresThreadRepo) loadParticipants(ctx context.Context, thread *model.Thread) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM thread_participants WHERE thread_id = $1 ORDER BY user_id ASC`,
		thread.ID,
	)
	if err != nil {
		return fmt.Errorf("スレッド参加者の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("参加者行の読み取りに失敗しました: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("参加者一覧の走査に失敗しました: %w", err)
	}
	thread.ParticipantIDs = ids
	return nil
}

// compile-time interface check
var _ ThreadRepository = (*PostgresThreadRepo)(nil)
