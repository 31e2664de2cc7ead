// Command tgwiki はWikipedia記事配信サービスを起動する。
//
// サブコマンド:
//
//	serve        APIサーバーを起動する（デフォルト）
//	migrate      データベースマイグレーションを適用する
//	healthcheck  /health を呼び出して終了コードで結果を返す
package main

import (
	"log/slog"
	"os"

	"github.com/hitoshi/tgwiki/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		slog.Error("application exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
