package cli

import (
	"context"

	"github.com/crossinsure/crossinsure/pkg/model"
	"github.com/crossinsure/crossinsure/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func showCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)

	return &cli.Command{
		Name:      "show",
		Usage:     "Show a claim and its analysis",
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

			detail, err := uc.Show(ctx, ref)
			if err != nil {
				return goerr.Wrap(err, "failed to show claim")
			}

			return writeJSON(c.Root().Writer, map[string]any{
				"claim":    detail.Claim,
				"analysis": detail.Analysis,
			})
		},
	}
}
