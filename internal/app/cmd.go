package app

import "strings"

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は/healthを呼び出して結果を終了コードで返すことを示す。
	// distrolessイメージのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// commands はサポートするサブコマンドの一覧。Usageの表示順を兼ねる。
var commands = []struct {
	name Command
	desc string
}{
	{CommandServe, "APIサーバーを起動する（デフォルト）"},
	{CommandMigrate, "データベースマイグレーションを適用する"},
	{CommandHealthcheck, "/health を呼び出して終了コードで結果を返す"},
}

// ParseCommand はコマンドライン引数の先頭からサブコマンドを解析する。
// 引数が空の場合はCommandServeとtrueを、サポート外の場合はCommandServeとfalseを返す。
// 2番目以降の引数は見ない。
func ParseCommand(args []string) (Command, bool) {
	if len(args) == 0 {
		return CommandServe, true
	}
	name := strings.ToLower(strings.TrimSpace(args[0]))
	for _, c := range commands {
		if string(c.name) == name {
			return c.name, true
		}
	}
	return CommandServe, false
}

// Usage はサブコマンドと説明の一覧を1行ずつ返す。
func Usage() string {
	var b strings.Builder
	for _, c := range commands {
		b.WriteString("  ")
		b.WriteString(string(c.name))
		b.WriteString(strings.Repeat(" ", 13-len(c.name)))
		b.WriteString(c.desc)
		b.WriteString("\n")
	}
	return b.String()
}
