// Package lens is the client for the Lens-style decentralized social
// protocol Box fronts. The protocol is consumed as a black-box JSON API;
// this package only models the response shapes the rest of the service
// needs and leaves everything else as raw JSON.
package lens

import (
	"bytes"
	"encoding/json"
)

// Typename tags used by the protocol's tagged unions.
const (
	TypePost         = "Post"
	TypeRepost       = "Repost"
	TypeTimelineItem = "TimelineItem"
	TypeFeedItem     = "FeedItem"

	TypeSimpleCollectAction = "SimpleCollectAction"

	// Validation-result union: exactly these tags mean "allowed".
	ValidationSimpleCollectPassed = "SimpleCollectValidationPassed"
	ValidationPostOpPassed        = "PostOperationValidationPassed"
	ValidationGroupOpPassed       = "GroupOperationValidationPassed"
	ValidationFeedOpPassed        = "FeedOperationValidationPassed"
)

// Account is a protocol account object.
type Account struct {
	Address  string           `json:"address"`
	Username *Username        `json:"username"`
	Metadata *AccountMetadata `json:"metadata"`
}

type Username struct {
	LocalName string `json:"localName"`
	Value     string `json:"value"`
}

type AccountMetadata struct {
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// OperationValidation is one arm of the per-capability validation-result
// union. Only the exact "...ValidationPassed" typenames count as passed.
type OperationValidation struct {
	Typename string `json:"__typename"`
	Reason   string `json:"reason,omitempty"`
}

// Passed reports whether the validation result allows the operation. A nil
// receiver (field absent upstream) is not a pass.
func (v *OperationValidation) Passed() bool {
	if v == nil {
		return false
	}
	switch v.Typename {
	case ValidationSimpleCollectPassed, ValidationPostOpPassed,
		ValidationGroupOpPassed, ValidationFeedOpPassed:
		return true
	}
	return false
}

// PostOperations is the viewer-specific operations block on a post.
// HasReposted has shipped both as a bare boolean and as an object with
// optimistic/onChain flags; it is kept raw and decoded tolerantly.
type PostOperations struct {
	HasSimpleCollected bool            `json:"hasSimpleCollected"`
	HasUpvoted         bool            `json:"hasUpvoted"`
	HasBookmarked      bool            `json:"hasBookmarked"`
	HasReposted        json.RawMessage `json:"hasReposted"`

	CanSimpleCollect *OperationValidation `json:"canSimpleCollect"`
	CanComment       *OperationValidation `json:"canComment"`
	CanRepost        *OperationValidation `json:"canRepost"`
	CanQuote         *OperationValidation `json:"canQuote"`
	CanEdit          *OperationValidation `json:"canEdit"`
}

// Reposted decodes the HasReposted union: either a boolean or an object
// carrying optimistic/onChain state.
func (o *PostOperations) Reposted() bool {
	if o == nil || len(o.HasReposted) == 0 {
		return false
	}
	raw := bytes.TrimSpace(o.HasReposted)
	if bytes.Equal(raw, []byte("true")) {
		return true
	}
	if bytes.Equal(raw, []byte("false")) || bytes.Equal(raw, []byte("null")) {
		return false
	}
	var obj struct {
		Optimistic bool `json:"optimistic"`
		OnChain    bool `json:"onChain"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return false
	}
	return obj.Optimistic || obj.OnChain
}

// PostStats are the public engagement counters on a post.
type PostStats struct {
	Collects  int `json:"collects"`
	Comments  int `json:"comments"`
	Reposts   int `json:"reposts"`
	Quotes    int `json:"quotes"`
	Upvotes   int `json:"upvotes"`
	Bookmarks int `json:"bookmarks"`
}

// Erc20Amount is an ERC-20 denominated amount with its token contract.
type Erc20Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency,omitempty"`
	Contract struct {
		Address string `json:"address"`
	} `json:"contract"`
}

// NativeAmount is a native-currency amount. Asset info is optional; older
// responses carried only the value.
type NativeAmount struct {
	Value string `json:"value"`
	Asset *struct {
		Symbol   string `json:"symbol"`
		Name     string `json:"name"`
		Currency string `json:"currency"`
	} `json:"asset"`
}

// PayToCollect holds the per-shape price encodings the protocol has
// shipped over time. At most one arm is populated.
type PayToCollect struct {
	Native *NativeAmount `json:"native"`
	Erc20  *Erc20Amount  `json:"erc20"`
}

// PostAction is one entry of a post's configured actions list. Only
// SimpleCollectAction is interpreted; other typenames pass through.
type PostAction struct {
	Typename     string        `json:"__typename"`
	CollectLimit int           `json:"collectLimit"`
	EndsAt       string        `json:"endsAt"`
	FollowerOnly bool          `json:"followerOnly"`
	PayToCollect *PayToCollect `json:"payToCollect"`
	// Oldest shape: a bare nested amount instead of payToCollect.
	Amount     *NativeAmount `json:"amount"`
	Recipients []struct {
		Recipient string `json:"recipient"`
		Percent   int    `json:"percent"`
	} `json:"recipients"`
	CollectNftAddress string `json:"collectNftAddress"`
}

// MentionRef is an account or group mention in post content.
type MentionRef struct {
	Typename  string    `json:"__typename"`
	Account   string    `json:"account"`
	Namespace string    `json:"namespace"`
	LocalName string    `json:"localName"`
	Group     *GroupRef `json:"group"`
}

type GroupRef struct {
	Address string `json:"address"`
}

// AnyPost is the protocol's post-like union: a Post, a Repost wrapper, a
// TimelineItem wrapper, or a FeedItem wrapper. Which fields are populated
// depends on Typename; consumers must dispatch on it.
type AnyPost struct {
	Typename string `json:"__typename"`

	// Post / comment fields.
	ID         string          `json:"id"`
	Slug       string          `json:"slug"`
	Author     *Account        `json:"author"`
	Timestamp  string          `json:"timestamp"`
	IsEdited   bool            `json:"isEdited"`
	Metadata   json.RawMessage `json:"metadata"`
	Stats      *PostStats      `json:"stats"`
	Operations *PostOperations `json:"operations"`
	Actions    []PostAction    `json:"actions"`
	Mentions   []MentionRef    `json:"mentions"`
	CommentOn  *AnyPost        `json:"commentOn"`
	QuoteOf    *AnyPost        `json:"quoteOf"`

	// Repost wrapper fields.
	RepostOf *AnyPost `json:"repostOf"`

	// TimelineItem wrapper fields.
	Primary *AnyPost `json:"primary"`

	// FeedItem wrapper fields.
	Root *AnyPost `json:"root"`

	// Both timeline and feed wrappers may carry comments.
	Comments []*AnyPost `json:"comments"`
}

// PageInfo is the protocol's pagination block.
type PageInfo struct {
	Next string `json:"next"`
	Prev string `json:"prev"`
}

// PostPage is a page of post-like items.
type PostPage struct {
	Items    []*AnyPost `json:"items"`
	PageInfo PageInfo   `json:"pageInfo"`
}

// FollowingEntry pairs a followed account with follow metadata.
type FollowingEntry struct {
	Following  *Account `json:"following"`
	FollowedOn string   `json:"followedOn"`
}

// FollowingPage is a page of accounts the queried account follows.
type FollowingPage struct {
	Items    []FollowingEntry `json:"items"`
	PageInfo PageInfo         `json:"pageInfo"`
}

// Group is a protocol community object.
type Group struct {
	Address   string `json:"address"`
	Timestamp string `json:"timestamp"`
	Owner     string `json:"owner"`
	Metadata  *struct {
		Name         string `json:"name"`
		Slug         string `json:"slug"`
		Description  string `json:"description"`
		Icon         string `json:"icon"`
		CoverPicture string `json:"coverPicture"`
		Rules        []struct {
			Title       string `json:"title"`
			Description string `json:"description"`
		} `json:"rules"`
	} `json:"metadata"`
	Operations *struct {
		IsBanned bool                 `json:"isBanned"`
		CanJoin  *OperationValidation `json:"canJoin"`
		CanLeave *OperationValidation `json:"canLeave"`
	} `json:"operations"`
	Feed *struct {
		Address    string `json:"address"`
		Operations *struct {
			CanPost *OperationValidation `json:"canPost"`
		} `json:"operations"`
	} `json:"feed"`
}

// Notification is a raw protocol notification. The union is wide and has
// grown over time, so each variant's payload is surfaced through optional
// fields keyed off Typename, and anything unrecognized stays decodable.
type Notification struct {
	Typename string `json:"__typename"`
	ID       string `json:"id"`

	Comment *AnyPost `json:"comment"`
	Post    *AnyPost `json:"post"`
	Quote   *AnyPost `json:"quote"`

	Reactions []struct {
		Account   *Account `json:"account"`
		Reactions []struct {
			Reaction  string `json:"reaction"`
			ReactedAt string `json:"reactedAt"`
		} `json:"reactions"`
	} `json:"reactions"`

	Followers []struct {
		Account    *Account `json:"account"`
		FollowedAt string   `json:"followedAt"`
	} `json:"followers"`

	Reposts []struct {
		Account    *Account `json:"account"`
		RepostedAt string   `json:"repostedAt"`
	} `json:"reposts"`

	Actions []AccountAction `json:"actions"`

	// Group membership variants.
	Group      *Group `json:"group"`
	ApprovedAt string `json:"approvedAt"`
	RejectedAt string `json:"rejectedAt"`

	// Token distribution variant.
	Account       *Account      `json:"account"`
	Amount        *NativeAmount `json:"amount"`
	ActionDate    string        `json:"actionDate"`
	DistributedAt string        `json:"distributedAt"`
}

// AccountAction is one executed account action inside an
// AccountActionExecutedNotification.
type AccountAction struct {
	Typename   string   `json:"__typename"`
	ExecutedBy *Account `json:"executedBy"`
	Account    *Account `json:"account"`
	ExecutedAt string   `json:"executedAt"`
}

// PostType filters for post queries.
type PostType string

const (
	PostTypeRoot    PostType = "ROOT"
	PostTypeComment PostType = "COMMENT"
	PostTypeRepost  PostType = "REPOST"
	PostTypeQuote   PostType = "QUOTE"
)

// PostsRequest selects a page of posts.
type PostsRequest struct {
	PostTypes []PostType `json:"postTypes,omitempty"`
	Authors   []string   `json:"authors,omitempty"`
	// GlobalFeed selects the default global feed when no authors are set.
	GlobalFeed bool   `json:"globalFeed,omitempty"`
	Cursor     string `json:"cursor,omitempty"`
	PageSize   int    `json:"pageSize,omitempty"`
}

// ReferencesRequest selects posts referencing another post.
type ReferencesRequest struct {
	Post          string `json:"post"`
	ReferenceType string `json:"referenceType"`
	Cursor        string `json:"cursor,omitempty"`
	PageSize      int    `json:"pageSize,omitempty"`
}

const ReferenceCommentOn = "COMMENT_ON"

// FollowingRequest selects a page of followed accounts.
type FollowingRequest struct {
	Account  string `json:"account"`
	Cursor   string `json:"cursor,omitempty"`
	PageSize int    `json:"pageSize,omitempty"`
}

// PostRequest creates a new post from an uploaded content URI.
type PostRequest struct {
	ContentURI string `json:"contentUri"`
	// CommentOn, when set, makes the new post a comment on that post id.
	CommentOn string `json:"commentOn,omitempty"`
	// Collect, when set, configures a simple-collect action on the post.
	Collect *CollectActionConfig `json:"collect,omitempty"`
}

// CollectActionConfig is the publish-time collect action configuration
// built from the author's persisted composer settings.
type CollectActionConfig struct {
	CollectLimit  *int   `json:"collectLimit,omitempty"`
	EndsAt        string `json:"endsAt,omitempty"`
	FollowerOnly  *bool  `json:"followerOnly,omitempty"`
	NativeAmount  string `json:"nativeAmount,omitempty"`
	Erc20Amount   string `json:"erc20Amount,omitempty"`
	Erc20Contract string `json:"erc20Contract,omitempty"`
}

// PostResult is the terminal result of a post mutation.
type PostResult struct {
	Typename string `json:"__typename"`
	ID       string `json:"id"`
	TxID     string `json:"txId"`
	TxHash   string `json:"txHash"`
	Reason   string `json:"reason"`
}

// ExecutePostActionRequest executes a configured action on a post.
type ExecutePostActionRequest struct {
	Post          string `json:"post"`
	SimpleCollect bool   `json:"simpleCollect"`
}

// Transaction-request typenames returned by write mutations.
const (
	TxExecuted          = "ExecutedTransaction"
	TxSponsoredRequest  = "SponsoredTransactionRequest"
	TxSelfFundedRequest = "SelfFundedTransactionRequest"
	TxWillFail          = "TransactionWillFail"
)

// ActionResult is the result of executePostAction: either an already
// executed (gasless) transaction, or a raw operation the wallet must sign
// and submit on the given chain.
type ActionResult struct {
	Typename string          `json:"__typename"`
	TxHash   string          `json:"hash"`
	Reason   string          `json:"reason"`
	ChainID  int64           `json:"chainId"`
	Raw      json.RawMessage `json:"raw"`
}

// NeedsSignature reports whether the result requires an on-chain wallet
// signature rather than having executed gasless.
func (r *ActionResult) NeedsSignature() bool {
	return r.Typename == TxSponsoredRequest || r.Typename == TxSelfFundedRequest
}
