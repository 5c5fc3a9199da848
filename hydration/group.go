package hydration

import (
	"context"
	"fmt"

	"github.com/cartel-sh/box/lens"
	"github.com/cartel-sh/box/models"
)

// Group fetches and normalizes a community by address.
func (h *Hydrator) Group(ctx context.Context, address string) (*models.Group, error) {
	ctx, span := tracer.Start(ctx, "group")
	defer span.End()

	raw, err := h.client.FetchGroup(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch group: %w", err)
	}

	group := GroupToGroup(raw)
	return &group, nil
}

// GroupToGroup builds a normalized Group from a protocol community
// object. Operation flags follow the same closed-world policy as posts:
// only an exact validation-passed tag enables a capability.
func GroupToGroup(g *lens.Group) models.Group {
	if g == nil {
		return models.Group{}
	}

	group := models.Group{
		ID:        g.Address,
		Address:   g.Address,
		Timestamp: parseTime(g.Timestamp),
		Owner:     g.Owner,
	}

	if md := g.Metadata; md != nil {
		group.Name = md.Name
		group.Slug = md.Slug
		group.Description = md.Description
		group.Icon = md.Icon
		group.Cover = md.CoverPicture
		for _, rule := range md.Rules {
			group.Rules = append(group.Rules, models.GroupRule{
				Title:       rule.Title,
				Description: rule.Description,
			})
		}
	}

	if ops := g.Operations; ops != nil {
		group.IsBanned = ops.IsBanned
		group.CanJoin = ops.CanJoin.Passed()
		group.CanLeave = ops.CanLeave.Passed()
	}

	if g.Feed != nil {
		group.FeedAddress = g.Feed.Address
		if g.Feed.Operations != nil {
			group.CanPost = g.Feed.Operations.CanPost.Passed()
		}
	}

	return group
}

func fillGroup(n *models.Notification, g *lens.Group) {
	if g == nil {
		return
	}
	n.GroupID = g.Address
	if g.Metadata != nil {
		n.GroupName = g.Metadata.Name
	}
}
