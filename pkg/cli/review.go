package cli

import (
	"context"
	"fmt"

	"github.com/crossinsure/crossinsure/pkg/model"
	"github.com/crossinsure/crossinsure/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func reviewCommand() *cli.Command {
	var (
		cfg   config
		notes string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "notes",
			Aliases:     []string{"n"},
			Usage:       "Analyst notes",
			Sources:     cli.EnvVars("CROSSINSURE_REVIEW_NOTES"),
			Destination: &notes,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:      "review",
		Usage:     "Mark the analysis of a claim as reviewed",
		ArgsUsage: "<reference-id>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() == 0 {
				return goerr.New("reference-id is required")
			}
			ref := model.ClaimReferenceID(c.Args().Get(0))

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

			result, err := uc.Review(ctx, ref, notes)
			if err != nil {
				return goerr.Wrap(err, "failed to review claim")
			}

			fmt.Fprintf(c.Root().Writer, "Claim reviewed: %s (%s, %s)\n", ref, result.RiskLevel, result.Recommendation)
			return nil
		},
	}
}
