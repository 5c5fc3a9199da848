package hydration

import (
	"log/slog"

	"github.com/cartel-sh/box/lens"
	"github.com/cartel-sh/box/models"
)

// ItemToPost converts a protocol post-like item (post, repost wrapper,
// timeline wrapper, feed wrapper, comment) into a normalized Post. It
// returns nil when the item cannot be converted; callers must drop nil
// results from their page rather than treating them as fatal.
func ItemToPost(item *lens.AnyPost) *models.Post {
	if item == nil {
		return nil
	}

	switch item.Typename {
	case lens.TypeRepost:
		// A repost never carries its own content. Convert the wrapped
		// original and layer repost attribution on top; a repost of an
		// unconvertible post is itself dropped.
		orig := ItemToPost(item.RepostOf)
		if orig == nil {
			return nil
		}
		repost := *orig
		repost.IsRepost = true
		if item.Author != nil {
			by := AccountToUser(item.Author)
			repost.RepostedBy = &by
		}
		repost.RepostedAt = parseTime(item.Timestamp)
		return &repost

	case lens.TypeTimelineItem:
		// Timeline wrappers are transparent, but they carry the flat
		// comment list for their primary post.
		post := ItemToPost(item.Primary)
		if post == nil {
			return nil
		}
		post.Comments = convertComments(item.Comments, "")
		return post

	case lens.TypeFeedItem:
		post := ItemToPost(item.Root)
		if post == nil {
			return nil
		}
		// Feed wrappers mix in replies from sibling threads; keep only
		// comments addressed to the displayed root.
		rootID := ""
		if item.Root != nil {
			rootID = item.Root.ID
		}
		post.Comments = convertComments(item.Comments, rootID)
		return post
	}

	return convertPost(item)
}

// convertPost builds the normalized record for a plain post or comment.
// Any panic during assembly converts the whole item to nil.
func convertPost(item *lens.AnyPost) (post *models.Post) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("unexpected shape while converting post", "id", item.ID, "cause", r)
			droppedItems.WithLabelValues("post").Inc()
			post = nil
		}
	}()

	created := parseTime(item.Timestamp)

	p := &models.Post{
		ID:        displayID(item),
		LensID:    item.ID,
		Author:    AccountToUser(item.Author),
		Metadata:  ParseMetadata(item.Metadata),
		Reactions: convertReactions(item),
		Mentions:  convertMentions(item.Mentions),
		IsEdited:  item.IsEdited,
	}

	if created != nil {
		p.CreatedAt = *created
		p.UpdatedAt = *created
	}

	p.CommentOn = postRef(item.CommentOn)
	p.QuoteOn = postRef(item.QuoteOf)
	if p.CommentOn != nil {
		p.Reply = p.CommentOn
	} else if p.QuoteOn != nil {
		p.Reply = p.QuoteOn
	}

	if collect := findCollectAction(item.Actions); collect != nil {
		p.CollectDetails = convertCollectDetails(collect)
	}

	return p
}

// displayID prefers the URL slug over the raw protocol id.
func displayID(item *lens.AnyPost) string {
	if item.Slug != "" {
		return item.Slug
	}
	return item.ID
}

// postRef builds a non-owning identity reference to another post.
func postRef(item *lens.AnyPost) *models.PostRef {
	if item == nil {
		return nil
	}
	return &models.PostRef{
		ID:     displayID(item),
		Author: AccountToUser(item.Author),
	}
}

// convertReactions derives engagement counters and viewer capability
// flags. Capabilities are closed-world: anything other than the exact
// passed tag, including an absent operations block, means false.
func convertReactions(item *lens.AnyPost) models.Reactions {
	r := models.Reactions{}

	if stats := item.Stats; stats != nil {
		r.Upvotes = stats.Upvotes
		r.Bookmarks = stats.Bookmarks
		r.Collects = stats.Collects
		r.Comments = stats.Comments
		r.Reposts = stats.Reposts
		r.Quotes = stats.Quotes
	}

	if ops := item.Operations; ops != nil {
		r.IsUpvoted = ops.HasUpvoted
		r.IsBookmarked = ops.HasBookmarked
		r.IsCollected = ops.HasSimpleCollected
		r.IsReposted = ops.Reposted()

		r.CanCollect = ops.CanSimpleCollect.Passed()
		r.CanComment = ops.CanComment.Passed()
		r.CanRepost = ops.CanRepost.Passed()
		r.CanQuote = ops.CanQuote.Passed()
		r.CanEdit = ops.CanEdit.Passed()
	}

	return r
}

func convertMentions(mentions []lens.MentionRef) []models.Mention {
	var out []models.Mention
	for _, m := range mentions {
		switch m.Typename {
		case "AccountMention":
			out = append(out, models.Mention{
				Account:   m.Account,
				Namespace: m.Namespace,
				LocalName: m.LocalName,
			})
		case "GroupMention":
			if m.Group != nil {
				out = append(out, models.Mention{Group: m.Group.Address})
			}
		}
	}
	return out
}

// convertComments converts attached comment items. When rootID is set
// (feed wrapper), comments not addressed to that root are excluded.
func convertComments(comments []*lens.AnyPost, rootID string) []*models.Post {
	var out []*models.Post
	for _, c := range comments {
		if c == nil {
			continue
		}
		if rootID != "" {
			if c.CommentOn == nil || c.CommentOn.ID != rootID {
				continue
			}
		}
		if conv := ItemToPost(c); conv != nil {
			out = append(out, conv)
		}
	}
	return out
}

func findCollectAction(actions []lens.PostAction) *lens.PostAction {
	for i := range actions {
		if actions[i].Typename == lens.TypeSimpleCollectAction {
			return &actions[i]
		}
	}
	return nil
}

func convertCollectDetails(action *lens.PostAction) *models.CollectDetails {
	details := &models.CollectDetails{
		CollectLimit:  action.CollectLimit,
		EndsAt:        parseTime(action.EndsAt),
		FollowersOnly: action.FollowerOnly,
		Price:         ExtractPrice(action),
		NftAddress:    action.CollectNftAddress,
	}
	for _, r := range action.Recipients {
		details.Recipients = append(details.Recipients, r.Recipient)
	}
	return details
}

// knownTokens maps ERC-20 contract addresses to display symbols.
var knownTokens = map[string]string{
	"0x6bdc36e20d267ff0dd6097799f82e78907105e2f": "WGHO",
	"0x3d2bd0e15829aa5c362a4144fdf4a1112fa29b5c": "BONSAI",
}

// priceMatcher extracts a display price from one historical encoding of
// the collect price. Matchers run in order and the first match wins; new
// upstream shapes get a new matcher, call sites stay unchanged.
type priceMatcher func(action *lens.PostAction) *models.CollectPrice

var priceMatchers = []priceMatcher{
	nativePrice,
	erc20Price,
	nestedAmountPrice,
}

// ExtractPrice resolves a collect action's price across the incompatible
// response shapes the protocol has shipped over time. Returns nil for
// free collects.
func ExtractPrice(action *lens.PostAction) *models.CollectPrice {
	for _, match := range priceMatchers {
		if price := match(action); price != nil {
			return price
		}
	}
	return nil
}

func nativePrice(action *lens.PostAction) *models.CollectPrice {
	if action.PayToCollect == nil || action.PayToCollect.Native == nil {
		return nil
	}
	native := action.PayToCollect.Native
	currency := "GHO"
	if native.Asset != nil {
		if native.Asset.Symbol != "" {
			currency = native.Asset.Symbol
		} else if native.Asset.Currency != "" {
			currency = native.Asset.Currency
		}
	}
	return &models.CollectPrice{Amount: native.Value, Currency: currency}
}

func erc20Price(action *lens.PostAction) *models.CollectPrice {
	if action.PayToCollect == nil || action.PayToCollect.Erc20 == nil {
		return nil
	}
	erc20 := action.PayToCollect.Erc20
	currency := knownTokens[normalizeAddress(erc20.Contract.Address)]
	if currency == "" {
		currency = erc20.Currency
	}
	if currency == "" {
		currency = "ERC20"
	}
	return &models.CollectPrice{Amount: erc20.Value, Currency: currency}
}

func nestedAmountPrice(action *lens.PostAction) *models.CollectPrice {
	if action.Amount == nil {
		return nil
	}
	currency := "GHO"
	if action.Amount.Asset != nil {
		if action.Amount.Asset.Currency != "" {
			currency = action.Amount.Asset.Currency
		} else if action.Amount.Asset.Symbol != "" {
			currency = action.Amount.Asset.Symbol
		}
	}
	return &models.CollectPrice{Amount: action.Amount.Value, Currency: currency}
}
