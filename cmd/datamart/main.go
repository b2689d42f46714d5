// Command datamart serves aggregated sales analytics over Parquet datasets
// and exposes the same queries on the command line.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/vegasq/datamart/internal/config"
)

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newApp builds the root command. Results go to stdout, logs to stderr.
func newApp(stdout, stderr io.Writer) *cli.Command {
	cfg := &config.Config{}
	return &cli.Command{
		Name:  "datamart",
		Usage: "Query and serve sales analytics stored in Parquet files",
		Description: `Datasets are Parquet files in --data-dir. Each is addressed by file name.

Examples:
  datamart serve --jwt-secret s3cret --firebase-api-key KEY
  datamart data sales.parquet -q 'KeyStore == "A" and Qty > 2'
  datamart query sales.parquet --start 2024-01-01 --end 2024-01-31 --key-type KeyStore
  datamart query sales.parquet --start 2024-01-01 --end 2024-01-31 --key-type KeyStore --avg -f table
  datamart schema sales.parquet -f table`,
		Flags:     cfg.Flags(),
		Writer:    stdout,
		ErrWriter: stderr,
		Commands: []*cli.Command{
			serveCommand(cfg),
			dataCommand(cfg),
			queryCommand(cfg),
			schemaCommand(cfg),
		},
	}
}
