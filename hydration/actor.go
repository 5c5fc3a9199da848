package hydration

import (
	"context"
	"fmt"

	"github.com/cartel-sh/box/lens"
	"github.com/cartel-sh/box/models"
)

// User fetches and normalizes an account by address.
func (h *Hydrator) User(ctx context.Context, address string) (*models.User, error) {
	ctx, span := tracer.Start(ctx, "user")
	defer span.End()

	raw, err := h.client.FetchAccount(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch account: %w", err)
	}

	user := AccountToUser(raw)
	return &user, nil
}

// AccountToUser builds a User from a protocol account object. Users are
// always reconstructed fresh per fetch; there is no identity cache.
func AccountToUser(acc *lens.Account) models.User {
	if acc == nil {
		return models.User{}
	}

	user := models.User{
		ID: acc.Address,
	}

	if acc.Username != nil {
		if acc.Username.LocalName != "" {
			user.Username = acc.Username.LocalName
		} else {
			user.Username = acc.Username.Value
		}
	}

	if acc.Metadata != nil {
		user.Name = acc.Metadata.Name
		user.Avatar = acc.Metadata.Picture
	}

	if user.Name == "" {
		user.Name = user.Username
	}

	return user
}
