package hydration

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cartel-sh/box/lens"
	"github.com/cartel-sh/box/models"
)

// NotificationToNotification converts a raw protocol notification. The
// upstream union grows over time; an unrecognized typename degrades to a
// generic Action with the raw tag preserved, never an error.
func NotificationToNotification(item *lens.Notification) models.Notification {
	n := models.Notification{
		ID:  item.ID,
		Who: []models.User{},
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}

	switch item.Typename {
	case "CommentNotification":
		n.Type = models.NotifComment
		if item.Comment != nil {
			if item.Comment.Author != nil {
				n.Who = []models.User{AccountToUser(item.Comment.Author)}
			}
			n.ActedOn = ItemToPost(item.Comment)
			n.CreatedAt = parseTime(item.Comment.Timestamp)
		}

	case "ReactionNotification":
		n.Type = models.NotifReaction
		for _, r := range item.Reactions {
			n.Who = append(n.Who, AccountToUser(r.Account))
		}
		if item.Post != nil {
			n.ActedOn = ItemToPost(item.Post)
		}
		// Reaction notifications bundle multiple reactions; the first
		// one is representative for timestamp and kind.
		if len(item.Reactions) > 0 && len(item.Reactions[0].Reactions) > 0 {
			first := item.Reactions[0].Reactions[0]
			n.CreatedAt = parseTime(first.ReactedAt)
			if first.Reaction == "UPVOTE" {
				n.ReactionType = "Upvote"
			} else {
				n.ReactionType = "Downvote"
			}
		}

	case "PostActionExecutedNotification":
		n.Type = models.NotifAction
		n.ActionType = "PostAction"
		if item.Post != nil {
			if item.Post.Author != nil {
				n.Who = []models.User{AccountToUser(item.Post.Author)}
			}
			n.ActedOn = ItemToPost(item.Post)
			n.CreatedAt = parseTime(item.Post.Timestamp)
		}

	case "AccountActionExecutedNotification":
		n.Type = models.NotifAction
		if len(item.Actions) == 0 {
			break
		}
		action := item.Actions[0]
		if who := actionAccount(action); who != nil {
			n.Who = []models.User{AccountToUser(who)}
		}
		n.CreatedAt = parseTime(action.ExecutedAt)
		n.ActionType = actionTypeOrUnknown(strings.TrimSuffix(action.Typename, "AccountActionExecuted"))

	case "FollowNotification":
		n.Type = models.NotifFollow
		for _, f := range item.Followers {
			n.Who = append(n.Who, AccountToUser(f.Account))
		}
		if len(item.Followers) > 0 {
			n.CreatedAt = parseTime(item.Followers[0].FollowedAt)
		}

	case "MentionNotification":
		n.Type = models.NotifMention
		if item.Post != nil {
			if item.Post.Author != nil {
				n.Who = []models.User{AccountToUser(item.Post.Author)}
			}
			n.ActedOn = ItemToPost(item.Post)
			n.CreatedAt = parseTime(item.Post.Timestamp)
		}

	case "RepostNotification":
		n.Type = models.NotifRepost
		for _, r := range item.Reposts {
			n.Who = append(n.Who, AccountToUser(r.Account))
		}
		if item.Post != nil {
			n.ActedOn = ItemToPost(item.Post)
			n.CreatedAt = parseTime(item.Post.Timestamp)
		}

	case "QuoteNotification":
		n.Type = models.NotifQuote
		if item.Quote != nil {
			if item.Quote.Author != nil {
				n.Who = []models.User{AccountToUser(item.Quote.Author)}
			}
			n.ActedOn = ItemToPost(item.Quote)
			n.CreatedAt = parseTime(item.Quote.Timestamp)
		}

	case "GroupMembershipRequestApprovedNotification":
		n.Type = models.NotifGroupApproved
		n.CreatedAt = parseTime(item.ApprovedAt)
		fillGroup(&n, item.Group)

	case "GroupMembershipRequestRejectedNotification":
		n.Type = models.NotifGroupRejected
		n.CreatedAt = parseTime(item.RejectedAt)
		fillGroup(&n, item.Group)

	case "TokenDistributedNotification":
		n.Type = models.NotifTokenReceived
		if item.Account != nil {
			n.Who = []models.User{AccountToUser(item.Account)}
		}
		// actionDate is preferred; distributedAt is the older field.
		n.CreatedAt = parseTime(item.ActionDate)
		if n.CreatedAt == nil {
			n.CreatedAt = parseTime(item.DistributedAt)
		}
		if item.Amount != nil {
			n.TokenAmount = item.Amount.Value
			if item.Amount.Asset != nil {
				if item.Amount.Asset.Symbol != "" {
					n.TokenSymbol = item.Amount.Asset.Symbol
				} else {
					n.TokenSymbol = item.Amount.Asset.Name
				}
			}
		}

	default:
		slog.Warn("unhandled notification type", "typename", item.Typename)
		droppedItems.WithLabelValues("notification").Inc()
		n.Type = models.NotifAction
		n.ActionType = actionTypeOrUnknown(item.Typename)
	}

	return n
}

func actionAccount(action lens.AccountAction) *lens.Account {
	if action.ExecutedBy != nil {
		return action.ExecutedBy
	}
	return action.Account
}

func actionTypeOrUnknown(typename string) string {
	if typename == "" {
		return "Unknown"
	}
	return typename
}

// SortNotifications orders notifications newest first. Entries without a
// timestamp sort to the end; they can never be "new".
func SortNotifications(items []models.Notification) []models.Notification {
	sorted := make([]models.Notification, len(items))
	copy(sorted, items)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.CreatedAt == nil {
			return false
		}
		if b.CreatedAt == nil {
			return true
		}
		return a.CreatedAt.After(*b.CreatedAt)
	})
	return sorted
}

// CountNew counts notifications strictly newer than the lastSeen
// watermark. Untimestamped notifications are never counted.
func CountNew(items []models.Notification, lastSeen time.Time) int {
	count := 0
	for _, n := range items {
		if n.CreatedAt == nil {
			continue
		}
		if n.CreatedAt.After(lastSeen) {
			count++
		}
	}
	return count
}
