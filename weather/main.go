package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"weatheretl/pkg/batch/util/logger"
	"weatheretl/weather/app"
	"weatheretl/weather/resources"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// シグナルハンドリング (Ctrl+C などで安全に終了するため)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig, ok := <-sigChan
		if !ok {
			return
		}
		logger.Warnf("シグナル '%v' を受信しました。ジョブの停止を試みます...", sig)
		cancel()
	}()

	envFilePath := os.Getenv("ENV_FILE_PATH")
	if envFilePath == "" {
		envFilePath = ".env"
	}

	exitCode := app.RunApplication(ctx, envFilePath, resources.ApplicationYAML, resources.JobYAML, resources.Migrations())
	signal.Stop(sigChan)
	close(sigChan)
	os.Exit(exitCode)
}
