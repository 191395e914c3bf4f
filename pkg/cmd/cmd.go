// Package cmd 定义 assetvault 的命令行入口.
package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/yeisme/assetvault/pkg/app"
	"github.com/yeisme/assetvault/pkg/configs"
	"github.com/yeisme/assetvault/pkg/internal/storage"
)

var (
	// configPath 配置文件或所在目录.
	configPath string
	// debug 输出更多调试信息.
	debug bool

	rootCmd = &cobra.Command{
		Use:           "assetvault",
		Short:         "User and asset metadata service with presigned S3 uploads",
		Version:       configs.AppVersion,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".", "config file or directory")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "print verbose output")

	registerServeCommands()
	registerConfigsCommands()
	registerStoreCommands()
	registerDBCommands()
	registerEventsCommands()
	registerInvokeCommands()
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// withCore 初始化依赖并把 Manager 放入命令的 context，结束后释放.
func withCore(cmd *cobra.Command, fn func(ctx context.Context, core *app.Core) error) error {
	ctx := cmd.Context()

	core, err := app.Bootstrap(ctx, configPath)
	if err != nil {
		return err
	}

	defer func() { _ = core.Close(context.WithoutCancel(ctx)) }()

	return fn(storage.WithManager(ctx, core.Manager), core)
}
