// Package models holds the normalized entity model the Box frontend
// consumes. Everything here is protocol-independent: the hydration package
// maps raw protocol responses into these shapes and the API handlers emit
// them as JSON.
package models

import "time"

// User is derived 1:1 from a protocol account object. Users have no
// independent lifecycle; they are reconstructed fresh on every fetch.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

// MetadataKind classifies the protocol's post metadata union. The union is
// inconsistently tagged upstream, so classification is structural (see
// hydration.ClassifyMetadata) rather than tag-based.
type MetadataKind string

const (
	MetadataImage    MetadataKind = "image"
	MetadataVideo    MetadataKind = "video"
	MetadataMedia    MetadataKind = "media"
	MetadataMarkdown MetadataKind = "markdown"
	MetadataUnknown  MetadataKind = "unknown"
)

// MediaAttachment is a single attachment of a media post.
type MediaAttachment struct {
	Item  string `json:"item"`
	Cover string `json:"cover,omitempty"`
	Type  string `json:"type,omitempty"`
}

// Metadata is the normalized post content.
type Metadata struct {
	Kind        MetadataKind      `json:"kind"`
	Content     string            `json:"content,omitempty"`
	URL         string            `json:"url,omitempty"`
	Cover       string            `json:"cover,omitempty"`
	Attachments []MediaAttachment `json:"attachments,omitempty"`
}

// Reactions carries per-post engagement counters plus the viewer's own
// state and capabilities. Capability flags are closed-world: absent or
// non-passing upstream validation results always map to false.
type Reactions struct {
	Upvotes   int `json:"upvotes"`
	Bookmarks int `json:"bookmarks"`
	Collects  int `json:"collects"`
	Comments  int `json:"comments"`
	Reposts   int `json:"reposts"`
	Quotes    int `json:"quotes"`

	IsUpvoted    bool `json:"isUpvoted"`
	IsBookmarked bool `json:"isBookmarked"`
	IsCollected  bool `json:"isCollected"`
	IsReposted   bool `json:"isReposted"`

	CanCollect bool `json:"canCollect"`
	CanComment bool `json:"canComment"`
	CanRepost  bool `json:"canRepost"`
	CanQuote   bool `json:"canQuote"`
	CanEdit    bool `json:"canEdit"`
}

// CollectPrice is the display price of a collect action.
type CollectPrice struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// CollectDetails describes a post's configured collect action.
type CollectDetails struct {
	CollectLimit  int           `json:"collectLimit,omitempty"`
	EndsAt        *time.Time    `json:"endsAt,omitempty"`
	FollowersOnly bool          `json:"followersOnly,omitempty"`
	Price         *CollectPrice `json:"price,omitempty"`
	Recipients    []string      `json:"recipients,omitempty"`
	NftAddress    string        `json:"collectNftAddress,omitempty"`
}

// PostRef is a non-owning reference to another post. Back-references
// (reply, commentOn, quoteOn) use identity references rather than nested
// post records to keep the entity graph bounded.
type PostRef struct {
	ID     string `json:"id"`
	Author User   `json:"author"`
}

// Post is the normalized post entity. ID is the display slug used in URLs;
// LensID is the raw protocol id used for on-chain calls.
type Post struct {
	ID     string `json:"id"`
	LensID string `json:"lensId"`
	Author User   `json:"author"`

	Metadata  Metadata  `json:"metadata"`
	Reactions Reactions `json:"reactions"`
	Mentions  []Mention `json:"mentions,omitempty"`

	Comments  []*Post  `json:"comments,omitempty"`
	Reply     *PostRef `json:"reply,omitempty"`
	CommentOn *PostRef `json:"commentOn,omitempty"`
	QuoteOn   *PostRef `json:"quoteOn,omitempty"`

	// A repost never carries its own content; it inherits the original
	// post's id and fields and only adds attribution.
	IsRepost   bool       `json:"isRepost"`
	RepostedBy *User      `json:"repostedBy,omitempty"`
	RepostedAt *time.Time `json:"repostedAt,omitempty"`

	IsEdited  bool      `json:"isEdited"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	CollectDetails *CollectDetails `json:"collectDetails,omitempty"`
}

// Mention is an account or group mention inside post content.
type Mention struct {
	Account   string `json:"account,omitempty"`
	Group     string `json:"group,omitempty"`
	Namespace string `json:"namespace,omitempty"`
	LocalName string `json:"localName,omitempty"`
}

// NotificationType discriminates normalized notifications.
type NotificationType string

const (
	NotifComment       NotificationType = "Comment"
	NotifReaction      NotificationType = "Reaction"
	NotifAction        NotificationType = "Action"
	NotifFollow        NotificationType = "Follow"
	NotifMention       NotificationType = "Mention"
	NotifRepost        NotificationType = "Repost"
	NotifQuote         NotificationType = "Quote"
	NotifGroupApproved NotificationType = "GroupMembershipRequestApproved"
	NotifGroupRejected NotificationType = "GroupMembershipRequestRejected"
	NotifTokenReceived NotificationType = "TokenDistributed"
)

// Notification is the normalized notification entity. CreatedAt is nil for
// protocol variants that carry no timestamp; such notifications sort last
// and never count as unread.
type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Who       []User           `json:"who"`
	ActedOn   *Post            `json:"actedOn,omitempty"`
	CreatedAt *time.Time       `json:"createdAt"`

	// Variant extras.
	ActionType   string `json:"actionType,omitempty"`
	ReactionType string `json:"reactionType,omitempty"`
	GroupID      string `json:"groupId,omitempty"`
	GroupName    string `json:"groupName,omitempty"`
	TokenAmount  string `json:"tokenAmount,omitempty"`
	TokenSymbol  string `json:"tokenSymbol,omitempty"`
}

// Group is the normalized community entity.
type Group struct {
	ID          string     `json:"id"`
	Address     string     `json:"address"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
	Name        string     `json:"name"`
	Slug        string     `json:"slug,omitempty"`
	Description string     `json:"description,omitempty"`
	Icon        string     `json:"icon,omitempty"`
	Cover       string     `json:"coverPicture,omitempty"`
	Owner       string     `json:"owner,omitempty"`
	FeedAddress string     `json:"feedAddress,omitempty"`

	Rules []GroupRule `json:"rules,omitempty"`

	IsBanned bool `json:"isBanned"`
	CanJoin  bool `json:"canJoin"`
	CanLeave bool `json:"canLeave"`
	CanPost  bool `json:"canPost"`
}

// GroupRule is a single community rule.
type GroupRule struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// CollectConfig is the author-side composer setting for monetized posts.
// It is persisted per account and consumed once at publish time to build
// the protocol collect action config.
type CollectConfig struct {
	Enabled       bool          `json:"enabled"`
	CollectLimit  *int          `json:"collectLimit,omitempty"`
	EndsAt        *time.Time    `json:"endsAt,omitempty"`
	FollowersOnly *bool         `json:"followersOnly,omitempty"`
	Price         *CollectPrice `json:"price,omitempty"`
}

// DefaultCollectConfig returns the composer defaults: collecting enabled,
// a single edition priced at 1 GHO, closing one week out.
func DefaultCollectConfig(now time.Time) CollectConfig {
	limit := 1
	followers := false
	ends := now.AddDate(0, 0, 7)
	return CollectConfig{
		Enabled:       true,
		CollectLimit:  &limit,
		EndsAt:        &ends,
		FollowersOnly: &followers,
		Price: &CollectPrice{
			Amount:   "1",
			Currency: "GHO",
		},
	}
}
