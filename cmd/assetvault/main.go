// Package main 启动 assetvault 命令行与 HTTP 服务.
package main

import (
	"context"
	"os"

	"github.com/yeisme/assetvault/pkg/cmd"
)

func main() {
	if err := cmd.Execute(context.Background()); err != nil {
		os.Exit(1)
	}
}
