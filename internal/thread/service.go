// Package thread は2者間会話スレッドの登録・検索・重複排除を提供する。
package thread

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/chatman/internal/model"
	"github.com/hitoshi/chatman/internal/repository"
)

// MetricsRecorder はスレッド操作のメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordThreadCreated()
	RecordThreadDeleted()
}

// ParticipantGuard はスレッド参加者の認可判定インターフェース。
// access.Guardがこれを満たす。
type ParticipantGuard interface {
	IsParticipant(ctx context.Context, userID, threadID string) (bool, error)
}

// Service はスレッド管理のサービス層。
// 2名参加の不変条件とペア単位の一意性を保証する。
type Service struct {
	threadRepo repository.ThreadRepository
	userRepo   repository.UserRepository
	guard      ParticipantGuard
	metrics    MetricsRecorder
}

// NewService はServiceの新しいインスタンスを生成する。
// metricsはnilを許容する（テスト用）。
func NewService(
	threadRepo repository.ThreadRepository,
	userRepo repository.UserRepository,
	guard ParticipantGuard,
	metrics MetricsRecorder,
) *Service {
	return &Service{
		threadRepo: threadRepo,
		userRepo:   userRepo,
		guard:      guard,
		metrics:    metrics,
	}
}

// ListResult はListThreadsの戻り値。
type ListResult struct {
	Threads []*model.Thread
	Total   int
}

// ListThreads は指定ユーザーが参加するスレッド一覧を
// updated_at降順（同時刻はID昇順）のページ指定付きで返す。
func (s *Service) ListThreads(ctx context.Context, userID string, limit, offset int) (*ListResult, error) {
	total, err := s.threadRepo.CountByParticipant(ctx, userID)
	if err != nil {
		return nil, err
	}

	threads, err := s.threadRepo.ListByParticipant(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}

	return &ListResult{Threads: threads, Total: total}, nil
}

// CreateOrGetThread は2名の参加者ペアのスレッドを取得または作成する。
// 既存スレッドがあればそれを返し、なければ新規作成する（冪等なget-or-create）。
// 戻り値のboolは新規作成された場合にtrue。
//
// 検索→作成の手順は同一ペアの並行リクエストに対して原子的ではないため、
// 一意性はthreads.pair_keyのUNIQUE制約で保証し、2番目のINSERTの競合は
// 勝者スレッドの再取得に変換する。
func (s *Service) CreateOrGetThread(ctx context.Context, requestingUserID string, participantIDs []string) (*model.Thread, bool, error) {
	if len(participantIDs) != 2 {
		return nil, false, model.NewInvalidParticipantsError(
			fmt.Sprintf("参加者はちょうど2名必要です（指定: %d名）", len(participantIDs)))
	}
	if participantIDs[0] == participantIDs[1] {
		return nil, false, model.NewInvalidParticipantsError("同一ユーザーを2回指定することはできません")
	}

	for _, id := range participantIDs {
		user, err := s.userRepo.FindByID(ctx, id)
		if err != nil {
			return nil, false, err
		}
		if user == nil {
			return nil, false, model.NewInvalidParticipantsError(
				fmt.Sprintf("存在しないユーザーです: %s", id))
		}
	}

	pairKey := model.PairKey(participantIDs[0], participantIDs[1])

	existing, err := s.threadRepo.FindByPairKey(ctx, pairKey)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		// ペアキー一致に加えて参加者集合の完全一致を確認する。
		// 不正データが混入していた場合に誤ったスレッドを返さない。
		if !model.SamePair(existing.ParticipantIDs, participantIDs) {
			return nil, false, fmt.Errorf("ペアキーと参加者集合が一致しません: thread=%s", existing.ID)
		}
		return existing, false, nil
	}

	now := time.Now().UTC()
	newThread := &model.Thread{
		ID:             uuid.New().String(),
		ParticipantIDs: []string{participantIDs[0], participantIDs[1]},
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.threadRepo.Create(ctx, newThread, pairKey)
	if errors.Is(err, repository.ErrDuplicatePair) {
		// 並行する同一ペアのリクエストに負けた。勝者を返す。
		winner, findErr := s.threadRepo.FindByPairKey(ctx, pairKey)
		if findErr != nil {
			return nil, false, findErr
		}
		if winner == nil {
			return nil, false, fmt.Errorf("ペアキー競合後に勝者スレッドを取得できませんでした: %s", pairKey)
		}
		return winner, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if s.metrics != nil {
		s.metrics.RecordThreadCreated()
	}
	return newThread, true, nil
}

// DeleteThread は指定スレッドを削除する。
// スレッドが存在しない場合はTHREAD_NOT_FOUND、
// 要求ユーザーが参加者でない場合はNOT_THREAD_PARTICIPANTを返す。
// メッセージはCASCADE削除される。
func (s *Service) DeleteThread(ctx context.Context, requestingUserID, threadID string) error {
	thread, err := s.threadRepo.FindByID(ctx, threadID)
	if err != nil {
		return err
	}
	if thread == nil {
		return model.NewThreadNotFoundError(threadID)
	}

	ok, err := s.guard.IsParticipant(ctx, requestingUserID, threadID)
	if err != nil {
		return err
	}
	if !ok {
		return model.NewNotThreadParticipantError()
	}

	if err := s.threadRepo.Delete(ctx, threadID); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.RecordThreadDeleted()
	}
	return nil
}
