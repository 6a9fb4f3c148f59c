package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bkv/matrix-normalizer/internal/convert"
	"github.com/bkv/matrix-normalizer/internal/normalize"
	"github.com/bkv/matrix-normalizer/internal/storage"
)

func newConvertCmd() *cobra.Command {
	var (
		format         string
		output         string
		pretty         bool
		metadata       bool
		sheet          string
		nullPolicy     string
		arrayDelimiter string
		trim           bool
		boolColumns    []string
	)

	cmd := &cobra.Command{
		Use:   "convert <file>",
		Short: "Convert a local file without starting the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := normalize.DefaultOptions()
			opts.Format = format
			opts.PrettyPrint = pretty
			opts.IncludeMetadata = metadata
			opts.Sheet = sheet
			opts.ArrayDelimiter = arrayDelimiter
			opts.TrimStrings = trim
			opts.BoolColumns = boolColumns
			if nullPolicy != "" {
				opts.NullPolicy = nullPolicy
			}
			if err := opts.Validate(); err != nil {
				return err
			}
			return runConvert(cmd, args[0], output, opts)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", normalize.FormatJSON, "output format: json or jsonl")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (default: stdout)")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent JSON output")
	cmd.Flags().BoolVar(&metadata, "metadata", false, "include source metadata in the output")
	cmd.Flags().StringVar(&sheet, "sheet", "", "worksheet name for xlsx input (default: first sheet)")
	cmd.Flags().StringVar(&nullPolicy, "null-policy", "", "keep or omit null-valued keys")
	cmd.Flags().StringVar(&arrayDelimiter, "array-delimiter", "", "split matching cells into arrays")
	cmd.Flags().BoolVar(&trim, "trim", false, "trim whitespace from string cells")
	cmd.Flags().StringSliceVar(&boolColumns, "bool-columns", nil, "columns to treat as boolean")

	return cmd
}

// runConvert stages the input in a throwaway store and runs the same
// pipeline the server uses.
func runConvert(cmd *cobra.Command, input, output string, opts normalize.Options) error {
	dir, err := os.MkdirTemp("", "matrixnorm-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	files, err := storage.NewStore(dir)
	if err != nil {
		return err
	}

	in, err := os.Open(input)
	if err != nil {
		return err
	}
	info, err := files.Save(filepath.Base(input), "", in)
	in.Close()
	if err != nil {
		return err
	}

	out := os.Stdout
	if output != "" {
		out, err = os.Create(output)
		if err != nil {
			return err
		}
		defer out.Close()
	}

	svc := convert.NewService(files)
	rows, err := svc.Run(cmd.Context(), info.ID, opts, out)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "wrote %d rows\n", rows)
	return nil
}
