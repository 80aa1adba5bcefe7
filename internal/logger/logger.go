// Package logger はJSON構造化ログのセットアップを提供する。
// ログにはアクセストークン・リフレッシュトークン・交換コードの値を出力しないこと。
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Setup は指定レベル以上を出力するJSON構造化ログのslog.Loggerを生成して返す。
func Setup(w io.Writer, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler)
}

// ParseLevel はLOG_LEVEL環境変数の値をslog.Levelに変換する。
// debug・info・warn・errorを受け付け、不明な値と空文字はLevelInfoにフォールバックする。
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupDefault はJSON構造化ログ出力をグローバルロガーとして設定する。
// レベルはLOG_LEVEL環境変数で制御する。
// writerがnilの場合はos.Stdoutに出力する（本番はこちら）。
func SetupDefault(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	slog.SetDefault(Setup(w, ParseLevel(os.Getenv("LOG_LEVEL"))))
}
