package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// Load .env if present. Overload overwrites existing env vars so local
	// runs behave the same as a deploy with the file's values.
	if err := godotenv.Overload(); err == nil {
		slog.Info("loaded .env file")
	}

	root := &cobra.Command{
		Use:           "matrixnorm",
		Short:         "Convert tabular files (CSV, TSV, XLSX) to JSON or JSONL",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newServeCmd(), newConvertCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
