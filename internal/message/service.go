// Package message はメッセージの作成・一覧・既読管理と未読集計を提供する。
package message

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/chatman/internal/model"
	"github.com/hitoshi/chatman/internal/repository"
)

// MetricsRecorder はメッセージ操作のメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordMessageSent()
	RecordMessageRead()
	RecordUnreadQuery()
}

// ParticipantGuard はスレッド参加者の認可判定インターフェース。
// access.Guardがこれを満たす。
type ParticipantGuard interface {
	IsParticipant(ctx context.Context, userID, threadID string) (bool, error)
}

// TextSanitizer はメッセージ本文のサニタイズインターフェース。
// security.TextSanitizerServiceの別名的な消費側定義。
type TextSanitizer interface {
	Sanitize(raw string) string
}

// ThreadToucher はメッセージ作成時にスレッドのupdated_atを更新するインターフェース。
// repository.ThreadRepositoryの部分集合として定義する。
type ThreadToucher interface {
	TouchUpdated(ctx context.Context, id string) error
}

// Service はメッセージ管理のサービス層。
// 全操作はスレッド参加者スコープで認可される。
type Service struct {
	messageRepo repository.MessageRepository
	guard       ParticipantGuard
	toucher     ThreadToucher
	sanitizer   TextSanitizer
	metrics     MetricsRecorder
}

// NewService はServiceの新しいインスタンスを生成する。
// metricsはnilを許容する（テスト用）。
func NewService(
	messageRepo repository.MessageRepository,
	guard ParticipantGuard,
	toucher ThreadToucher,
	sanitizer TextSanitizer,
	metrics MetricsRecorder,
) *Service {
	return &Service{
		messageRepo: messageRepo,
		guard:       guard,
		toucher:     toucher,
		sanitizer:   sanitizer,
		metrics:     metrics,
	}
}

// ListResult はListMessagesの戻り値。
type ListResult struct {
	Messages []*model.Message
	Total    int
}

// ListMessages は指定ユーザーが参加するスレッドのメッセージを
// created_at昇順のページ指定付きで返す。
// threadIDが空でない場合はそのスレッドに限定する。
// 非参加スレッドの指定はエラーではなく空の結果となる
// （参加者スコープのフィルタで自然に除外される）。
func (s *Service) ListMessages(ctx context.Context, userID, threadID string, limit, offset int) (*ListResult, error) {
	total, err := s.messageRepo.CountVisible(ctx, userID, threadID)
	if err != nil {
		return nil, err
	}

	msgs, err := s.messageRepo.ListVisible(ctx, userID, threadID, limit, offset)
	if err != nil {
		return nil, err
	}

	return &ListResult{Messages: msgs, Total: total}, nil
}

// CreateMessage は指定スレッドに新しいメッセージを作成する。
// 本文はサニタイズ・トリム後に空の場合INVALID_MESSAGE_TEXTを返す。
// スレッドが存在しない場合と送信者が参加者でない場合は
// どちらもINVALID_THREADを返す（存在有無を漏らさない）。
// 作成成功時はスレッドのupdated_atを更新する。更新の失敗は
// ログに記録するのみで、作成済みメッセージはそのまま返す。
func (s *Service) CreateMessage(ctx context.Context, userID, threadID, text string) (*model.Message, error) {
	cleaned := s.sanitizer.Sanitize(text)
	if cleaned == "" {
		return nil, model.NewInvalidMessageTextError()
	}

	ok, err := s.guard.IsParticipant(ctx, userID, threadID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.NewInvalidThreadError()
	}

	msg := &model.Message{
		ID:        uuid.New().String(),
		ThreadID:  threadID,
		SenderID:  userID,
		Text:      cleaned,
		IsRead:    false,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, err
	}

	// メッセージ本体は既に永続化済みのため、updated_atの更新失敗で
	// リクエスト全体を失敗させない。
	if err := s.toucher.TouchUpdated(ctx, threadID); err != nil {
		slog.Error("failed to touch thread updated_at",
			slog.String("thread_id", threadID),
			slog.String("error", err.Error()),
		)
	}

	if s.metrics != nil {
		s.metrics.RecordMessageSent()
	}
	return msg, nil
}

// MarkAsRead はメッセージを既読にして返す。
// メッセージが存在しない場合はMESSAGE_NOT_FOUND、
// 要求ユーザーがそのスレッドの参加者でない場合はNOT_THREAD_PARTICIPANTを返す。
// 既に既読のメッセージへの再実行は状態を変えず成功する（冪等）。
func (s *Service) MarkAsRead(ctx context.Context, userID, messageID string) (*model.Message, error) {
	msg, err := s.messageRepo.FindByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, model.NewMessageNotFoundError(messageID)
	}

	ok, err := s.guard.IsParticipant(ctx, userID, msg.ThreadID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.NewNotThreadParticipantError()
	}

	if !msg.IsRead {
		if err := s.messageRepo.MarkRead(ctx, messageID); err != nil {
			return nil, err
		}
		msg.IsRead = true

		if s.metrics != nil {
			s.metrics.RecordMessageRead()
		}
	}

	return msg, nil
}

// UnreadCount は指定ユーザーの未読メッセージ数を返す。
// 未読とは、ユーザーが参加するスレッドのメッセージのうち
// is_read=false かつ送信者が本人でないもの。
func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	count, err := s.messageRepo.CountUnread(ctx, userID)
	if err != nil {
		return 0, err
	}

	if s.metrics != nil {
		s.metrics.RecordUnreadQuery()
	}
	return count, nil
}
