package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd は、引数なしで実行された場合に serve と同じ動作をします
var rootCmd = &cobra.Command{
	Use:   "imaginebot",
	Short: "Discord の /imagine コマンドで画像を生成する Bot",
	Long: `imaginebot は Discord のスラッシュコマンド /imagine と /help を提供します。

/imagine に渡されたプロンプトから --ar, --cfg, --step, --no を取り出し、
画像生成エンジンで2枚の画像を順番に生成して返信します。`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(inviteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
