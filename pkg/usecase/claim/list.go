package claim

import (
	"context"

	"github.com/crossinsure/crossinsure/pkg/model"
)

// ListOptions contains options for listing claims
type ListOptions struct {
	Offset int
	Limit  int
}

// List retrieves claims, newest first
func (u *UseCase) List(
	ctx context.Context,
	opts ListOptions,
) ([]*model.Claim, error) {
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	claims, err := u.repo.ListClaims(ctx, opts.Offset, opts.Limit)
	if err != nil {
		return nil, err
	}

	return claims, nil
}
