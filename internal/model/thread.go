// Package model はドメインモデルを定義する。
package model

import (
	"sort"
	"strings"
	"time"
)

// Thread はちょうど2名のユーザー間の会話スレッドを表す。
// 同一ペアのスレッドはシステム全体で高々1つしか存在しない。
// 一意性はペアキー（正規化された参加者IDの組）に対する
// ストレージ層のUNIQUE制約で保証される。
type Thread struct {
	ID             string
	ParticipantIDs []string // 常にちょうど2要素
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasParticipant は指定ユーザーがこのスレッドの参加者かどうかを返す。
func (t *Thread) HasParticipant(userID string) bool {
	for _, id := range t.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// PairKey は参加者ペアの順序に依存しない正規化キーを生成する。
// 2つのIDを辞書順に並べて ":" で連結する。
// threads.pair_key のUNIQUE制約とget-or-create検索の両方で使用する。
func PairKey(userID1, userID2 string) string {
	ids := []string{userID1, userID2}
	sort.Strings(ids)
	return strings.Join(ids, ":")
}

// SamePair は2つの参加者集合が集合として完全に一致するかを返す。
// 部分一致や包含では一致とみなさない。
func SamePair(a, b []string) bool {
	if len(a) != 2 || len(b) != 2 {
		return false
	}
	return PairKey(a[0], a[1]) == PairKey(b[0], b[1])
}
