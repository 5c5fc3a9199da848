package hydration

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/cartel-sh/box/lens"
	"github.com/cartel-sh/box/models"
)

type fakeReadClient struct {
	post       *lens.AnyPost
	posts      *lens.PostPage
	references *lens.PostPage
	following  *lens.FollowingPage

	lastPostsReq lens.PostsRequest
	fetchCalls   int
}

func (f *fakeReadClient) FetchPost(ctx context.Context, id string) (*lens.AnyPost, error) {
	f.fetchCalls++
	if f.post == nil {
		return nil, errors.New("not found")
	}
	return f.post, nil
}

func (f *fakeReadClient) FetchPosts(ctx context.Context, req lens.PostsRequest) (*lens.PostPage, error) {
	f.lastPostsReq = req
	return f.posts, nil
}

func (f *fakeReadClient) FetchPostReferences(ctx context.Context, req lens.ReferencesRequest) (*lens.PostPage, error) {
	return f.references, nil
}

func (f *fakeReadClient) FetchFollowing(ctx context.Context, req lens.FollowingRequest) (*lens.FollowingPage, error) {
	return f.following, nil
}

func (f *fakeReadClient) FetchAccount(ctx context.Context, address string) (*lens.Account, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeReadClient) FetchGroup(ctx context.Context, address string) (*lens.Group, error) {
	return nil, errors.New("not implemented")
}

func TestFeedPageDropsBadItems(t *testing.T) {
	brokenRepost := &lens.AnyPost{Typename: lens.TypeRepost}

	client := &fakeReadClient{
		posts: &lens.PostPage{
			Items:    []*lens.AnyPost{testPost("p1", ""), brokenRepost, nil, testPost("p2", "")},
			PageInfo: lens.PageInfo{Next: "cursor-2"},
		},
	}
	h := NewHydrator(client)

	page, err := h.FeedPage(context.Background(), FeedQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("items = %d, unconvertible entries must be dropped", len(page.Items))
	}
	if page.NextCursor != "cursor-2" {
		t.Errorf("cursor = %q", page.NextCursor)
	}
}

func TestFeedPageQueryMapping(t *testing.T) {
	client := &fakeReadClient{posts: &lens.PostPage{}}
	h := NewHydrator(client)

	if _, err := h.FeedPage(context.Background(), FeedQuery{Type: "main", Address: "0xabc"}); err != nil {
		t.Fatal(err)
	}
	req := client.lastPostsReq
	if len(req.Authors) != 1 || req.Authors[0] != "0xabc" {
		t.Errorf("authors = %v", req.Authors)
	}
	if req.GlobalFeed {
		t.Error("author feed must not select the global feed")
	}
	if len(req.PostTypes) != 3 {
		t.Errorf("postTypes = %v", req.PostTypes)
	}

	if _, err := h.FeedPage(context.Background(), FeedQuery{}); err != nil {
		t.Fatal(err)
	}
	req = client.lastPostsReq
	if !req.GlobalFeed {
		t.Error("empty address must select the global feed")
	}
	if len(req.PostTypes) != 1 || req.PostTypes[0] != lens.PostTypeRoot {
		t.Errorf("default postTypes = %v", req.PostTypes)
	}

	single := []struct {
		feedType string
		want     lens.PostType
	}{
		{"comment", lens.PostTypeComment},
		{"repost", lens.PostTypeRepost},
		{"quote", lens.PostTypeQuote},
	}
	for _, tc := range single {
		if _, err := h.FeedPage(context.Background(), FeedQuery{Type: tc.feedType}); err != nil {
			t.Fatal(err)
		}
		req = client.lastPostsReq
		if len(req.PostTypes) != 1 || req.PostTypes[0] != tc.want {
			t.Errorf("type %q: postTypes = %v, want [%s]", tc.feedType, req.PostTypes, tc.want)
		}
	}
}

func TestFeedPageMediaOnly(t *testing.T) {
	text := testPost("p1", "")
	image := testPost("p2", "")
	image.Metadata = json.RawMessage(`{"image":{"item":"ipfs://img"}}`)

	client := &fakeReadClient{
		posts: &lens.PostPage{Items: []*lens.AnyPost{text, image}},
	}
	h := NewHydrator(client)

	page, err := h.FeedPage(context.Background(), FeedQuery{MediaOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 1 || page.Items[0].Metadata.Kind != models.MetadataImage {
		t.Fatalf("items = %+v", page.Items)
	}
}

func TestPostReadsThroughCache(t *testing.T) {
	client := &fakeReadClient{post: testPost("p1", "")}
	h := NewHydrator(client)

	first, err := h.Post(context.Background(), "p1")
	if err != nil {
		t.Fatal(err)
	}
	second, err := h.Post(context.Background(), "p1")
	if err != nil {
		t.Fatal(err)
	}
	if client.fetchCalls != 1 {
		t.Errorf("fetchCalls = %d, second read should hit the cache", client.fetchCalls)
	}
	if first.ID != second.ID || first.LensID != second.LensID {
		t.Errorf("cache returned a different record: %+v vs %+v", first, second)
	}
}

func TestPostCacheKeyedBySlugAndID(t *testing.T) {
	client := &fakeReadClient{post: testPost("raw-1", "slug-1")}
	h := NewHydrator(client)

	if _, err := h.Post(context.Background(), "slug-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Post(context.Background(), "raw-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Post(context.Background(), "slug-1"); err != nil {
		t.Fatal(err)
	}
	if client.fetchCalls != 1 {
		t.Errorf("fetchCalls = %d, both identifiers should hit the same entry", client.fetchCalls)
	}
}

func TestFeedPageWarmsPostCache(t *testing.T) {
	client := &fakeReadClient{
		posts: &lens.PostPage{
			Items: []*lens.AnyPost{testPost("raw-1", "slug-1")},
		},
	}
	h := NewHydrator(client)

	if _, err := h.FeedPage(context.Background(), FeedQuery{}); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Post(context.Background(), "slug-1"); err != nil {
		t.Fatal(err)
	}
	if client.fetchCalls != 0 {
		t.Errorf("fetchCalls = %d, a post from the feed should read from the cache", client.fetchCalls)
	}

	raw, err := h.Item(context.Background(), "raw-1")
	if err != nil {
		t.Fatal(err)
	}
	if raw == nil || client.fetchCalls != 0 {
		t.Errorf("fetchCalls = %d, the raw item should be cached too", client.fetchCalls)
	}
}

func TestViewerHydratorSkipsCache(t *testing.T) {
	client := &fakeReadClient{post: testPost("p1", "")}
	h := NewViewerHydrator(client)

	if _, err := h.Post(context.Background(), "p1"); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Post(context.Background(), "p1"); err != nil {
		t.Fatal(err)
	}
	if client.fetchCalls != 2 {
		t.Errorf("fetchCalls = %d, viewer reads must bypass the shared cache", client.fetchCalls)
	}
}

func TestFollowing(t *testing.T) {
	client := &fakeReadClient{
		following: &lens.FollowingPage{
			Items: []lens.FollowingEntry{
				{Following: testAccount("0x1", "alice")},
				{Following: nil},
				{Following: testAccount("0x2", "bob")},
			},
			PageInfo: lens.PageInfo{Next: "next"},
		},
	}
	h := NewHydrator(client)

	page, err := h.Following(context.Background(), "0xme", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("items = %d", len(page.Items))
	}
	if page.Items[0].Username != "alice" || page.Items[1].Username != "bob" {
		t.Errorf("items = %+v", page.Items)
	}
	if page.NextCursor != "next" {
		t.Errorf("cursor = %q", page.NextCursor)
	}
}
