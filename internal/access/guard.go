// Package access はスレッドに対する認可判定を提供する。
//
// 参加者チェックはスレッド・メッセージ両方の全読み書き経路の
// セキュリティの土台となるため、判定ロジックをこのパッケージに
// 一元化し、経路ごとの実装の分岐を防ぐ。
package access

import (
	"context"
	"fmt"
)

// ParticipantChecker は参加者判定に必要な永続化層のインターフェース。
// repository.ThreadRepositoryの部分集合として定義する。
type ParticipantChecker interface {
	IsParticipant(ctx context.Context, userID, threadID string) (bool, error)
}

// Guard はスレッド参加者の認可判定を行う。
type Guard struct {
	checker ParticipantChecker
}

// NewGuard はGuardを生成する。
func NewGuard(checker ParticipantChecker) *Guard {
	return &Guard{checker: checker}
}

// IsParticipant は指定ユーザーが指定スレッドの参加者かどうかを返す。
// 存在しないスレッドに対しては常にfalseを返す。
func (g *Guard) IsParticipant(ctx context.Context, userID, threadID string) (bool, error) {
	ok, err := g.checker.IsParticipant(ctx, userID, threadID)
	if err != nil {
		return false, fmt.Errorf("参加者判定に失敗しました: %w", err)
	}
	return ok, nil
}
