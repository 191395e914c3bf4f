package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yeisme/assetvault/pkg/app"
	"github.com/yeisme/assetvault/pkg/internal/handle"
	"github.com/yeisme/assetvault/pkg/log"
)

var (
	invokeMethod string
	invokeID     string
	invokeAction string
	invokeBody   string

	// invoke 不经过 HTTP，直接把一次请求交给分发器.
	invokeCmd = &cobra.Command{
		Use:   "invoke <path>",
		Short: "dispatch a single request and print the response",
		Example: `  assetvault invoke /users -X POST -d '{"userId":"u1","email":"a@b.c"}'
  assetvault invoke /assets --id a1 --action download`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCore(cmd, func(ctx context.Context, core *app.Core) error {
				resp := core.Dispatcher.Dispatch(log.WithRequestID(ctx, "cli"), buildInvokeRequest(args[0]))

				fmt.Fprintln(cmd.OutOrStdout(), resp.StatusCode)
				fmt.Fprintln(cmd.OutOrStdout(), resp.Body)

				return nil
			})
		},
	}
)

func buildInvokeRequest(path string) handle.Request {
	params := map[string]string{}
	if invokeID != "" {
		params["id"] = invokeID
	}

	if invokeAction != "" {
		params["action"] = invokeAction
	}

	return handle.Request{
		Method:         strings.ToUpper(invokeMethod),
		Path:           path,
		PathParameters: params,
		Body:           invokeBody,
	}
}

// registerInvokeCommands 注册 invoke 命令.
func registerInvokeCommands() {
	invokeCmd.Flags().StringVarP(&invokeMethod, "method", "X", "GET", "HTTP method")
	invokeCmd.Flags().StringVar(&invokeID, "id", "", "path parameter id")
	invokeCmd.Flags().StringVar(&invokeAction, "action", "", "path parameter action, e.g. download")
	invokeCmd.Flags().StringVarP(&invokeBody, "data", "d", "", "request body")

	rootCmd.AddCommand(invokeCmd)
}
