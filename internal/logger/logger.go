// Package logger はチャットバックエンド共通のJSON構造化ログの初期化を提供する。
package logger

import (
	"io"
	"log/slog"
	"os"
)

// Setup はslog.LevelInfo以上をJSONで出力するロガーを生成して返す。
// リクエストログやワーカーのジョブログなど、全プロセスで同じ形式を使う。
func Setup(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// SetupDefault はSetupで生成したロガーをプロセス共通のデフォルトに設定する。
// writerがnilの場合はos.Stdoutに出力する。
func SetupDefault(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	slog.SetDefault(Setup(w))
}
