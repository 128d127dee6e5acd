package cli

import (
	"context"
	"fmt"

	"github.com/crossinsure/crossinsure/pkg/model"
	"github.com/crossinsure/crossinsure/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func statsCommand() *cli.Command {
	var (
		cfg    config
		asJSON bool
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "Output as JSON",
			Destination: &asJSON,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "stats",
		Usage: "Show corpus and analysis statistics",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, closeAudit, err := cfg.setupLogging(ctx)
			if err != nil {
				return err
			}
			defer closeAudit()

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logging.From(ctx).Warn("failed to close repository", "error", err)
				}
			}()

			uc, err := cfg.newUseCase(ctx, repo, false)
			if err != nil {
				return err
			}

			stats, err := uc.Stats(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to get stats")
			}

			if asJSON {
				return writeJSON(c.Root().Writer, stats)
			}

			w := c.Root().Writer
			fmt.Fprintf(w, "Claims:       %d (%d processed)\n", stats.Claims, stats.Processed)
			fmt.Fprintf(w, "Fingerprints: %d\n", stats.Fingerprints)
			fmt.Fprintf(w, "Reviewed:     %d\n", stats.Reviewed)
			for _, level := range model.RiskLevels {
				fmt.Fprintf(w, "  %-9s %d\n", level, stats.ByRiskLevel[level])
			}
			return nil
		},
	}
}
