// Package hydration maps raw protocol responses into the normalized
// entity model. Converters are tolerant by design: a malformed item
// degrades to nil (dropped from its page) rather than failing the request,
// and the unexpected shape is logged at this boundary so callers can stay
// simple.
package hydration

import (
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"

	"github.com/cartel-sh/box/lens"
	"github.com/cartel-sh/box/models"
)

var tracer = otel.Tracer("hydration")

var droppedItems = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "hydration_dropped_items",
	Help: "Count of protocol items dropped because they could not be converted",
}, []string{"kind"})

// Hydrator runs the fetch+normalize pipelines that need a protocol client.
// The pure converters (ItemToPost and friends) live alongside as package
// functions.
type Hydrator struct {
	client lens.Client

	postCache *lru.TwoQueueCache[string, *lens.AnyPost]
}

// NewHydrator creates a Hydrator reading through the given client.
func NewHydrator(client lens.Client) *Hydrator {
	pc, _ := lru.New2Q[string, *lens.AnyPost](10_000)
	return &Hydrator{
		client:    client,
		postCache: pc,
	}
}

// NewViewerHydrator creates a Hydrator for a viewer's session client.
// Viewer responses carry per-viewer capability flags, so they bypass the
// shared post cache.
func NewViewerHydrator(client lens.Client) *Hydrator {
	return &Hydrator{client: client}
}

func (h *Hydrator) cacheGet(id string) (*lens.AnyPost, bool) {
	if h.postCache == nil {
		return nil, false
	}
	return h.postCache.Get(id)
}

// cacheAdd stores the raw item under both of the post's identifiers, so a
// later lookup by slug or by protocol id hits either way.
func (h *Hydrator) cacheAdd(raw *lens.AnyPost, post *models.Post) {
	if h.postCache == nil {
		return
	}
	h.postCache.Add(post.ID, raw)
	if post.LensID != post.ID {
		h.postCache.Add(post.LensID, raw)
	}
}

// parseTime parses a protocol timestamp, returning nil when the field is
// absent or unparseable.
func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

// normalizeAddress lowercases an EVM address for comparisons.
func normalizeAddress(addr string) string {
	return strings.ToLower(addr)
}
