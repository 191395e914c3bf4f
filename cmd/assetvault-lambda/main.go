// Package main 以 API Gateway 代理集成的方式在 AWS Lambda 上运行分发器.
package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/yeisme/assetvault/pkg/app"
	"github.com/yeisme/assetvault/pkg/log"
)

func main() {
	// 冷启动时初始化一次，之后的调用复用同一组依赖
	core, err := app.Bootstrap(context.Background(), os.Getenv("ASSETVAULT_CONFIG"))
	if err != nil {
		log.Logger().Fatal().Err(err).Msg("bootstrap failed")
	}

	lambda.Start(core.Dispatcher.HandleAPIGateway)
}
