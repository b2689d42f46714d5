package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/vegasq/datamart/internal/config"
	"github.com/vegasq/datamart/internal/engine"
	"github.com/vegasq/datamart/internal/output"
	"github.com/vegasq/datamart/internal/reader"
)

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "output format: " + strings.Join(output.Formats, ", "),
		Value:   output.FormatJSONL,
	}
}

func dataCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "data",
		Usage:     "Print the rows of a dataset, optionally filtered",
		ArgsUsage: "<file.parquet>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "query",
				Aliases: []string{"q"},
				Usage:   `row filter (e.g. 'KeyStore == "A" and Qty > 2')`,
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "limit number of rows (0 = unlimited)",
			},
			formatFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			limit := int(cmd.Int("limit"))
			if limit < 0 {
				return fmt.Errorf("--limit must be non-negative, got %d", limit)
			}
			name, err := datasetArg(cmd)
			if err != nil {
				return err
			}
			svc, err := newService(cfg, cmd)
			if err != nil {
				return err
			}

			rows, err := svc.GetAll(ctx, name, cmd.String("query"))
			if err != nil {
				return err
			}
			if limit > 0 && len(rows) > limit {
				rows = rows[:limit]
			}

			schema, err := svc.Columns(ctx, name)
			if err != nil {
				return err
			}
			columns := make([]string, len(schema))
			for i, col := range schema {
				columns[i] = col.Name
			}
			return render(cmd, columns, rows)
		},
	}
}

func queryCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "query",
		Usage:     "Aggregate Qty and Amount per key over a date range",
		ArgsUsage: "<file.parquet>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "start",
				Usage:    "first day of the range (YYYY-MM-DD)",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "end",
				Usage:    "last day of the range, inclusive (YYYY-MM-DD)",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "key-type",
				Usage:    "column to group by (e.g. KeyStore)",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "key-value",
				Usage: "only report the group with this key",
			},
			&cli.BoolFlag{
				Name:  "avg",
				Usage: "also report the mean Amount/Qty per key",
			},
			&cli.BoolFlag{
				Name:  "cumulative",
				Usage: "accepted with --avg for API parity, has no effect",
			},
			formatFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			name, err := datasetArg(cmd)
			if err != nil {
				return err
			}
			svc, err := newService(cfg, cmd)
			if err != nil {
				return err
			}

			q := engine.RangeQuery{
				Dataset:    name,
				StartDate:  cmd.String("start"),
				EndDate:    cmd.String("end"),
				KeyType:    cmd.String("key-type"),
				KeyValue:   cmd.String("key-value"),
				Cumulative: cmd.Bool("cumulative"),
			}
			var results []engine.AggregateResult
			if cmd.Bool("avg") {
				results, err = svc.QueryByTotalAndAvg(ctx, q)
			} else {
				results, err = svc.QueryByRange(ctx, q)
			}
			if err != nil {
				return err
			}

			columns, rows := engine.Rows(results)
			return render(cmd, columns, rows)
		},
	}
}

func schemaCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "schema",
		Usage:     "Print the columns of a dataset",
		ArgsUsage: "<file.parquet>",
		Flags:     []cli.Flag{formatFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			name, err := datasetArg(cmd)
			if err != nil {
				return err
			}
			svc, err := newService(cfg, cmd)
			if err != nil {
				return err
			}

			schema, err := svc.Columns(ctx, name)
			if err != nil {
				return err
			}
			rows := make([]map[string]any, len(schema))
			for i, col := range schema {
				rows[i] = map[string]any{"name": col.Name, "type": string(col.Type)}
			}
			return render(cmd, []string{"name", "type"}, rows)
		},
	}
}

func datasetArg(cmd *cli.Command) (string, error) {
	switch cmd.Args().Len() {
	case 0:
		return "", errors.New("missing parquet file argument")
	case 1:
		return cmd.Args().First(), nil
	default:
		return "", fmt.Errorf("expected one parquet file, got %d arguments", cmd.Args().Len())
	}
}

// newService builds a Service over the configured data directory. Query
// logs go to the error writer so stdout only carries results.
func newService(cfg *config.Config, cmd *cli.Command) (*engine.Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log, err := cfg.Logger(cmd.Root().ErrWriter)
	if err != nil {
		return nil, err
	}
	return engine.NewService(reader.NewStore(cfg.DataDir), engine.WithLogger(log)), nil
}

func render(cmd *cli.Command, columns []string, rows []map[string]any) error {
	formatter, err := output.New(cmd.String("format"), cmd.Root().Writer, columns)
	if err != nil {
		return err
	}
	return formatter.Format(rows)
}
