package main

import (
	"compare-app/internal/cli"
	"compare-app/internal/logger"
	"os"
)

func main() {
	if err := cli.Execute(); err != nil {
		logger.Log.WithError(err).Error("Command failed")
		os.Exit(1)
	}
}
