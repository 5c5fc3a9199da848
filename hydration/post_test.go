package hydration

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/cartel-sh/box/lens"
)

func testAccount(addr, name string) *lens.Account {
	return &lens.Account{
		Address:  addr,
		Username: &lens.Username{LocalName: name},
	}
}

func testPost(id, slug string) *lens.AnyPost {
	return &lens.AnyPost{
		Typename:  lens.TypePost,
		ID:        id,
		Slug:      slug,
		Author:    testAccount("0xabc", "alice"),
		Timestamp: "2025-06-01T12:00:00Z",
		Metadata:  json.RawMessage(`{"content":"hi"}`),
		Stats:     &lens.PostStats{Upvotes: 3, Collects: 1},
	}
}

func TestItemToPostNil(t *testing.T) {
	if got := ItemToPost(nil); got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestItemToPostPlain(t *testing.T) {
	p := ItemToPost(testPost("raw-id", "nice-slug"))
	if p == nil {
		t.Fatal("expected a post")
	}
	if p.ID != "nice-slug" {
		t.Errorf("display id = %q, want slug", p.ID)
	}
	if p.LensID != "raw-id" {
		t.Errorf("lens id = %q", p.LensID)
	}
	if p.Author.Username != "alice" {
		t.Errorf("author = %+v", p.Author)
	}
	if p.Reactions.Upvotes != 3 {
		t.Errorf("upvotes = %d", p.Reactions.Upvotes)
	}
	if p.CreatedAt.IsZero() {
		t.Error("createdAt not set")
	}
}

func TestItemToPostSlugFallsBackToID(t *testing.T) {
	p := ItemToPost(testPost("raw-id", ""))
	if p == nil || p.ID != "raw-id" {
		t.Fatalf("got %+v", p)
	}
}

func TestItemToPostRepost(t *testing.T) {
	item := &lens.AnyPost{
		Typename:  lens.TypeRepost,
		ID:        "repost-id",
		Author:    testAccount("0xdef", "bob"),
		Timestamp: "2025-06-02T09:00:00Z",
		RepostOf:  testPost("orig-id", "orig-slug"),
	}

	p := ItemToPost(item)
	if p == nil {
		t.Fatal("expected a post")
	}
	if !p.IsRepost {
		t.Error("IsRepost not set")
	}
	// A repost surfaces under the original's identity.
	if p.ID != "orig-slug" || p.LensID != "orig-id" {
		t.Errorf("id = %q, lensId = %q", p.ID, p.LensID)
	}
	if p.Author.Username != "alice" {
		t.Errorf("author should stay the original's, got %q", p.Author.Username)
	}
	if p.RepostedBy == nil || p.RepostedBy.Username != "bob" {
		t.Errorf("repostedBy = %+v", p.RepostedBy)
	}
	if p.RepostedAt == nil {
		t.Error("repostedAt not set")
	}
}

func TestItemToPostRepostOfNothing(t *testing.T) {
	item := &lens.AnyPost{
		Typename: lens.TypeRepost,
		ID:       "repost-id",
		Author:   testAccount("0xdef", "bob"),
	}
	if got := ItemToPost(item); got != nil {
		t.Fatalf("repost of nothing should drop, got %+v", got)
	}
}

func TestItemToPostTimelineWrapper(t *testing.T) {
	reply := testPost("c1", "c1-slug")
	reply.CommentOn = &lens.AnyPost{ID: "somewhere-else"}

	item := &lens.AnyPost{
		Typename: lens.TypeTimelineItem,
		Primary:  testPost("main", "main-slug"),
		Comments: []*lens.AnyPost{reply, nil},
	}

	p := ItemToPost(item)
	if p == nil {
		t.Fatal("expected a post")
	}
	if p.ID != "main-slug" {
		t.Errorf("id = %q", p.ID)
	}
	// Timeline comments are kept flat regardless of what they reply to.
	if len(p.Comments) != 1 {
		t.Fatalf("comments = %d", len(p.Comments))
	}
}

func TestItemToPostFeedWrapperFiltersComments(t *testing.T) {
	onRoot := testPost("c1", "")
	onRoot.CommentOn = &lens.AnyPost{ID: "root-id"}
	elsewhere := testPost("c2", "")
	elsewhere.CommentOn = &lens.AnyPost{ID: "other-id"}
	orphan := testPost("c3", "")

	item := &lens.AnyPost{
		Typename: lens.TypeFeedItem,
		Root:     testPost("root-id", "root-slug"),
		Comments: []*lens.AnyPost{onRoot, elsewhere, orphan},
	}

	p := ItemToPost(item)
	if p == nil {
		t.Fatal("expected a post")
	}
	if len(p.Comments) != 1 {
		t.Fatalf("comments = %d, want only the one addressed to the root", len(p.Comments))
	}
	if p.Comments[0].LensID != "c1" {
		t.Errorf("kept comment = %q", p.Comments[0].LensID)
	}
}

func TestConvertReactionsClosedWorld(t *testing.T) {
	item := testPost("p", "")
	item.Operations = &lens.PostOperations{
		HasUpvoted:       true,
		CanSimpleCollect: &lens.OperationValidation{Typename: lens.ValidationSimpleCollectPassed},
		CanComment:       &lens.OperationValidation{Typename: "PostOperationValidationFailed"},
		// CanRepost, CanQuote, CanEdit absent entirely.
	}

	p := ItemToPost(item)
	r := p.Reactions
	if !r.IsUpvoted {
		t.Error("IsUpvoted lost")
	}
	if !r.CanCollect {
		t.Error("passed validation should allow collect")
	}
	if r.CanComment || r.CanRepost || r.CanQuote || r.CanEdit {
		t.Errorf("non-passing or absent validations must be false: %+v", r)
	}
}

func TestConvertReactionsNoOperations(t *testing.T) {
	p := ItemToPost(testPost("p", ""))
	r := p.Reactions
	if r.CanCollect || r.CanComment || r.CanRepost || r.CanQuote || r.CanEdit {
		t.Errorf("absent operations block must disable everything: %+v", r)
	}
}

func TestItemToPostReplyReference(t *testing.T) {
	item := testPost("child", "child-slug")
	item.CommentOn = testPost("parent", "parent-slug")

	p := ItemToPost(item)
	if p.CommentOn == nil || p.CommentOn.ID != "parent-slug" {
		t.Fatalf("commentOn = %+v", p.CommentOn)
	}
	if p.Reply == nil || p.Reply.ID != "parent-slug" {
		t.Errorf("reply = %+v", p.Reply)
	}
	// References are identity-only, no nested comments or reactions.
	if p.Comments != nil {
		t.Error("nested comments leaked into reference")
	}
}

func TestExtractPriceNative(t *testing.T) {
	action := &lens.PostAction{
		Typename: lens.TypeSimpleCollectAction,
		PayToCollect: &lens.PayToCollect{
			Native: &lens.NativeAmount{Value: "2.5"},
		},
	}
	price := ExtractPrice(action)
	if price == nil || price.Amount != "2.5" || price.Currency != "GHO" {
		t.Fatalf("price = %+v", price)
	}
}

func TestExtractPriceErc20KnownToken(t *testing.T) {
	action := &lens.PostAction{Typename: lens.TypeSimpleCollectAction}
	action.PayToCollect = &lens.PayToCollect{
		Erc20: &lens.Erc20Amount{Value: "10"},
	}
	action.PayToCollect.Erc20.Contract.Address = "0x6BDc36E20D267Ff0dd6097799f82e78907105e2F"

	price := ExtractPrice(action)
	if price == nil || price.Currency != "WGHO" {
		t.Fatalf("price = %+v, want WGHO via contract lookup", price)
	}
}

func TestExtractPriceErc20Unknown(t *testing.T) {
	action := &lens.PostAction{Typename: lens.TypeSimpleCollectAction}
	action.PayToCollect = &lens.PayToCollect{
		Erc20: &lens.Erc20Amount{Value: "10"},
	}
	action.PayToCollect.Erc20.Contract.Address = "0x0000000000000000000000000000000000000001"

	price := ExtractPrice(action)
	if price == nil || price.Currency != "ERC20" {
		t.Fatalf("price = %+v", price)
	}
}

func TestExtractPriceNestedAmount(t *testing.T) {
	action := &lens.PostAction{
		Typename: lens.TypeSimpleCollectAction,
		Amount:   &lens.NativeAmount{Value: "0.1"},
	}
	price := ExtractPrice(action)
	if price == nil || price.Amount != "0.1" || price.Currency != "GHO" {
		t.Fatalf("price = %+v", price)
	}
}

func TestExtractPriceOrder(t *testing.T) {
	// When multiple shapes are populated the native one wins.
	action := &lens.PostAction{
		Typename: lens.TypeSimpleCollectAction,
		PayToCollect: &lens.PayToCollect{
			Native: &lens.NativeAmount{Value: "1"},
		},
		Amount: &lens.NativeAmount{Value: "999"},
	}
	price := ExtractPrice(action)
	if price == nil || price.Amount != "1" {
		t.Fatalf("price = %+v", price)
	}
}

func TestExtractPriceFreeCollect(t *testing.T) {
	if price := ExtractPrice(&lens.PostAction{Typename: lens.TypeSimpleCollectAction}); price != nil {
		t.Fatalf("free collect should have nil price, got %+v", price)
	}
}

func TestCollectDetails(t *testing.T) {
	item := testPost("p", "")
	item.Actions = []lens.PostAction{
		{Typename: "UnknownAction"},
		{
			Typename:     lens.TypeSimpleCollectAction,
			CollectLimit: 5,
			EndsAt:       "2025-07-01T00:00:00Z",
			FollowerOnly: true,
		},
	}

	p := ItemToPost(item)
	if p.CollectDetails == nil {
		t.Fatal("collect details missing")
	}
	d := p.CollectDetails
	if d.CollectLimit != 5 || !d.FollowersOnly {
		t.Errorf("details = %+v", d)
	}
	want := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	if d.EndsAt == nil || !d.EndsAt.Equal(want) {
		t.Errorf("endsAt = %v", d.EndsAt)
	}
}

func TestParseTime(t *testing.T) {
	if got := parseTime(""); got != nil {
		t.Errorf("empty = %v", got)
	}
	if got := parseTime("not a time"); got != nil {
		t.Errorf("garbage = %v", got)
	}
	got := parseTime("2025-06-01T12:00:00Z")
	if got == nil || got.Hour() != 12 {
		t.Errorf("parsed = %v", got)
	}
}
