package app

import (
	"fmt"
	"sort"
	"strings"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバー・セッション同期・セッション自動延長を起動する。
	CommandServe Command = "serve"
	// CommandWorker は期限切れセッションの削除ジョブを起動する。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は/healthを呼び出して終了する。distroless環境のDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// commands はサブコマンドとその説明。
var commands = map[Command]string{
	CommandServe:       "start the API server (default)",
	CommandWorker:      "run background jobs (expired session cleanup)",
	CommandMigrate:     "apply database migrations",
	CommandHealthcheck: "probe the local /health endpoint",
}

// ParseCommand はコマンドライン引数の先頭からサブコマンドを解析する。
// 引数が空の場合はCommandServeを返し、未知のサブコマンドはエラーとする。
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 {
		return CommandServe, nil
	}
	cmd := Command(args[0])
	if _, ok := commands[cmd]; !ok {
		return "", fmt.Errorf("unknown command %q\n%s", args[0], Usage())
	}
	return cmd, nil
}

// Usage はサブコマンドの一覧を返す。
func Usage() string {
	names := make([]string, 0, len(commands))
	for c := range commands {
		names = append(names, string(c))
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("usage: hagwonmatch <command>\n\ncommands:\n")
	for _, name := range names {
		fmt.Fprintf(&b, "  %-12s %s\n", name, commands[Command(name)])
	}
	return b.String()
}
