package app

import (
	"fmt"
	"strings"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモード。引数なしの場合もこのモードで起動する。
	CommandServe Command = "serve"
	// CommandWorker は期限切れデータを日次で削除するワーカーモード。
	CommandWorker Command = "worker"
	// CommandMigrate は未適用のデータベースマイグレーションを適用する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はdistroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
	// CommandAddAdmin は最初の管理者を事前登録する。
	// 管理者の追加APIは管理者しか呼べないため、初期構築時はこのコマンドを使う。
	CommandAddAdmin Command = "add-admin"
)

var commands = []Command{CommandServe, CommandWorker, CommandMigrate, CommandHealthcheck, CommandAddAdmin}

// ParseCommand はコマンドライン引数の先頭からサブコマンドを解析する。
// 引数が空の場合はCommandServeを返す。未知のサブコマンドはエラーにする。
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 {
		return CommandServe, nil
	}
	for _, c := range commands {
		if args[0] == string(c) {
			return c, nil
		}
	}
	names := make([]string, len(commands))
	for i, c := range commands {
		names[i] = string(c)
	}
	return "", fmt.Errorf("unknown command %q (available: %s)", args[0], strings.Join(names, ", "))
}

// addAdminArgs は add-admin の引数 `EMAIL [NAME...]` を解析する。
func addAdminArgs(args []string) (email, name string, err error) {
	if len(args) == 0 {
		return "", "", fmt.Errorf("usage: roombook add-admin EMAIL [NAME]")
	}
	return args[0], strings.Join(args[1:], " "), nil
}
