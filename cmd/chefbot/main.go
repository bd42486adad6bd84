// Command chefbot generates recipes and menus with a hosted chat model.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("SETUP: Failed to load .env file", "error", err)
	}

	err := rootCmd.Execute()
	// Flush logs and telemetry whether or not the command failed.
	if current != nil {
		if cerr := current.close(context.Background()); cerr != nil {
			slog.Error("SETUP: Failed to shut down cleanly", "error", cerr)
		}
	}
	if err != nil {
		os.Exit(1)
	}
}
