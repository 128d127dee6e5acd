package cli

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/crossinsure/crossinsure/pkg/model"
	"github.com/crossinsure/crossinsure/pkg/usecase/claim"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	cmd := &cli.Command{
		Name:  "crossinsure",
		Usage: "Cross-insurer claim fraud screening",
		Commands: []*cli.Command{
			submitCommand(),
			showCommand(),
			listCommand(),
			reviewCommand(),
			statsCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		return &Error{
			Code:    exitCode(err),
			Message: userMessage(err),
		}
	}

	return nil
}

func exitCode(err error) int {
	if errors.Is(err, model.ErrValidation) {
		return 2
	}
	return 1
}

// userMessage keeps validation detail and hides everything behind a processing failure
func userMessage(err error) string {
	var fe *model.FieldError
	switch {
	case errors.As(err, &fe):
		return "invalid claim: " + fe.Error()
	case errors.Is(err, claim.ErrProcessing):
		return claim.ErrProcessing.Error()
	}
	return err.Error()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return goerr.Wrap(err, "failed to encode output")
	}
	return nil
}
