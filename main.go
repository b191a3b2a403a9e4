package main

import (
	"log/slog"

	"github.com/alkoleft/naparnik-mcp/cmd"
	"github.com/alkoleft/naparnik-mcp/internal/logging"
)

func main() {
	defer logging.RecoverPanic("main", func() {
		slog.Error("Application terminated due to unhandled panic")
	})

	cmd.Execute()
}
