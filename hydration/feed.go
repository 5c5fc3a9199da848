package hydration

import (
	"context"
	"fmt"

	"github.com/cartel-sh/box/lens"
	"github.com/cartel-sh/box/models"
)

const feedPageSize = 10

// FeedQuery selects a normalized feed page.
type FeedQuery struct {
	// Type is one of "post" (roots only, the default), "comment",
	// "repost", "quote", "main" or "all".
	Type string
	// Address restricts the feed to one author; empty selects the
	// global feed.
	Address string
	Cursor  string
	// MediaOnly keeps only posts with image or video metadata.
	MediaOnly bool
}

// Page is one normalized feed page with its continuation cursor.
type Page struct {
	Items      []*models.Post `json:"data"`
	NextCursor string         `json:"nextCursor"`
}

// postTypesFor maps a feed type parameter to the protocol's post type
// filter.
func postTypesFor(feedType string) []lens.PostType {
	switch feedType {
	case "comment":
		return []lens.PostType{lens.PostTypeComment}
	case "repost":
		return []lens.PostType{lens.PostTypeRepost}
	case "quote":
		return []lens.PostType{lens.PostTypeQuote}
	case "main":
		return []lens.PostType{lens.PostTypeRoot, lens.PostTypeRepost, lens.PostTypeQuote}
	case "all":
		return []lens.PostType{lens.PostTypeRoot, lens.PostTypeComment, lens.PostTypeRepost, lens.PostTypeQuote}
	default:
		return []lens.PostType{lens.PostTypeRoot}
	}
}

// FeedPage fetches one page of posts and normalizes it. Items that fail
// conversion are dropped; one bad item never fails the page. The returned
// cursor is the upstream continuation cursor verbatim.
func (h *Hydrator) FeedPage(ctx context.Context, q FeedQuery) (*Page, error) {
	ctx, span := tracer.Start(ctx, "feedPage")
	defer span.End()

	req := lens.PostsRequest{
		PostTypes: postTypesFor(q.Type),
		Cursor:    q.Cursor,
		PageSize:  feedPageSize,
	}
	if q.Address != "" {
		req.Authors = []string{q.Address}
	} else {
		req.GlobalFeed = true
	}

	raw, err := h.client.FetchPosts(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch posts: %w", err)
	}

	page := &Page{
		Items:      []*models.Post{},
		NextCursor: raw.PageInfo.Next,
	}
	for _, item := range raw.Items {
		post := ItemToPost(item)
		if post == nil {
			droppedItems.WithLabelValues("feed").Inc()
			continue
		}
		if q.MediaOnly &&
			post.Metadata.Kind != models.MetadataImage &&
			post.Metadata.Kind != models.MetadataVideo {
			continue
		}
		h.cacheAdd(item, post)
		page.Items = append(page.Items, post)
	}

	return page, nil
}

// Item fetches a single post's raw protocol item, reading through the
// post cache.
func (h *Hydrator) Item(ctx context.Context, id string) (*lens.AnyPost, error) {
	ctx, span := tracer.Start(ctx, "post")
	defer span.End()

	if raw, ok := h.cacheGet(id); ok {
		return raw, nil
	}

	raw, err := h.client.FetchPost(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch post: %w", err)
	}

	if post := ItemToPost(raw); post != nil {
		h.cacheAdd(raw, post)
	}
	return raw, nil
}

// Post fetches and normalizes a single post, reading through the post
// cache.
func (h *Hydrator) Post(ctx context.Context, id string) (*models.Post, error) {
	raw, err := h.Item(ctx, id)
	if err != nil {
		return nil, err
	}

	post := ItemToPost(raw)
	if post == nil {
		return nil, fmt.Errorf("post %s could not be converted", id)
	}
	return post, nil
}

// Comments fetches one page of a post's comment thread, ordered as the
// protocol returns them.
func (h *Hydrator) Comments(ctx context.Context, postID, cursor string) (*Page, error) {
	ctx, span := tracer.Start(ctx, "comments")
	defer span.End()

	raw, err := h.client.FetchPostReferences(ctx, lens.ReferencesRequest{
		Post:          postID,
		ReferenceType: lens.ReferenceCommentOn,
		Cursor:        cursor,
		PageSize:      feedPageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch post references: %w", err)
	}

	page := &Page{
		Items:      []*models.Post{},
		NextCursor: raw.PageInfo.Next,
	}
	for _, item := range raw.Items {
		comment := ItemToPost(item)
		if comment == nil {
			droppedItems.WithLabelValues("comment").Inc()
			continue
		}
		h.cacheAdd(item, comment)
		page.Items = append(page.Items, comment)
	}

	return page, nil
}

// FollowingPage fetches one page of accounts the given account follows.
type FollowingPage struct {
	Items      []models.User `json:"data"`
	NextCursor string        `json:"nextCursor"`
}

func (h *Hydrator) Following(ctx context.Context, account, cursor string) (*FollowingPage, error) {
	ctx, span := tracer.Start(ctx, "following")
	defer span.End()

	raw, err := h.client.FetchFollowing(ctx, lens.FollowingRequest{
		Account:  account,
		Cursor:   cursor,
		PageSize: 50,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch following: %w", err)
	}

	page := &FollowingPage{
		Items:      []models.User{},
		NextCursor: raw.PageInfo.Next,
	}
	for _, entry := range raw.Items {
		if entry.Following == nil {
			continue
		}
		page.Items = append(page.Items, AccountToUser(entry.Following))
	}

	return page, nil
}

// Notifications fetches and normalizes the viewer's notifications through
// an authenticated client, sorted newest first.
func Notifications(ctx context.Context, client lens.SessionClient) ([]models.Notification, error) {
	ctx, span := tracer.Start(ctx, "notifications")
	defer span.End()

	raw, err := client.FetchNotifications(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch notifications: %w", err)
	}

	items := make([]models.Notification, 0, len(raw))
	for _, item := range raw {
		if item == nil {
			continue
		}
		items = append(items, NotificationToNotification(item))
	}

	return SortNotifications(items), nil
}
