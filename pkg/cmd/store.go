package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yeisme/assetvault/pkg/app"
	"github.com/yeisme/assetvault/pkg/internal/model"
	"github.com/yeisme/assetvault/pkg/internal/storage"
	"github.com/yeisme/assetvault/pkg/internal/storage/kv"
)

var (
	storeLimit int

	storeCmd = &cobra.Command{
		Use:     "store",
		Short:   "record store related commands",
		Aliases: []string{"kv"},
	}

	storeTypesCmd = &cobra.Command{
		Use:   "types",
		Short: "list all registered record store types",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "Registered store types:")

			for _, t := range kv.RegisteredTypes() {
				fmt.Fprintln(cmd.OutOrStdout(), "   - "+string(t))
			}
		},
	}

	storeListCmd = &cobra.Command{
		Use:       "ls <user|asset>",
		Short:     "print records of a kind, one JSON object per line",
		Aliases:   []string{"list"},
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{model.User.Name, model.Asset.Name},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, ok := model.Kinds[args[0]]
			if !ok {
				return fmt.Errorf("unknown record kind %q", args[0])
			}

			return withCore(cmd, func(ctx context.Context, _ *app.Core) error {
				return listRecords(ctx, cmd, kind)
			})
		},
	}
)

func listRecords(ctx context.Context, cmd *cobra.Command, kind model.Kind) error {
	mgr, err := storage.FromContext(ctx)
	if err != nil {
		return err
	}

	sc, ok := mgr.Store(kind.Name).(kv.Scanner)
	if !ok {
		return fmt.Errorf("store %s does not support listing", mgr.Tables[kind.Name])
	}

	n := 0

	var encErr error

	err = sc.Scan(ctx, func(_ string, rec model.Record) bool {
		b, err := model.Marshal(rec)
		if err != nil {
			encErr = err
			return false
		}

		fmt.Fprintln(cmd.OutOrStdout(), string(b))
		n++

		return storeLimit <= 0 || n < storeLimit
	})
	if err != nil {
		return err
	}

	return encErr
}

// registerStoreCommands 注册记录存储相关命令.
func registerStoreCommands() {
	storeListCmd.Flags().IntVarP(&storeLimit, "limit", "n", 0, "stop after n records (0 for all)")

	storeCmd.AddCommand(storeTypesCmd)
	storeCmd.AddCommand(storeListCmd)
	rootCmd.AddCommand(storeCmd)
}
