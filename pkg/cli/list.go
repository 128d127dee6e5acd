package cli

import (
	"context"
	"fmt"

	"github.com/crossinsure/crossinsure/pkg/usecase/claim"
	"github.com/crossinsure/crossinsure/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func listCommand() *cli.Command {
	var (
		cfg    config
		offset int64
		limit  int64
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "offset",
			Usage:       "Offset for pagination",
			Value:       0,
			Sources:     cli.EnvVars("CROSSINSURE_LIST_OFFSET"),
			Destination: &offset,
		},
		&cli.IntFlag{
			Name:        "limit",
			Usage:       "Maximum number of claims to list",
			Value:       100,
			Sources:     cli.EnvVars("CROSSINSURE_LIST_LIMIT"),
			Destination: &limit,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "list",
		Usage: "List submitted claims, newest first",
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

			claims, err := uc.List(ctx, claim.ListOptions{
				Offset: int(offset),
				Limit:  int(limit),
			})
			if err != nil {
				return goerr.Wrap(err, "failed to list claims")
			}

			for _, cl := range claims {
				status := "pending"
				if cl.Processed {
					status = "processed"
				}
				fmt.Fprintf(c.Root().Writer, "%s\t%s\t%s\t%s\t%s\t%s\n",
					cl.ReferenceID,
					cl.SubmittedAt.Format("2006-01-02 15:04"),
					cl.Submitter.OrganizationName(),
					cl.IncidentType,
					cl.LocationZone,
					status,
				)
			}

			return nil
		},
	}
}
