// Command hagwonmatch は講師と語学学校のマッチングAPIサーバー・ワーカー・マイグレーションを起動する。
package main

import (
	"log/slog"
	"os"

	"github.com/hitoshi/hagwonmatch/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		slog.Error("application exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
