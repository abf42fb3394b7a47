package browser

import (
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// A ref cache holds the ref→element mapping from the last snapshot of each
// tab. Bounded so long-lived sessions with many tabs cannot grow without
// limit; least-recently-snapshotted tabs are evicted first.
const refCacheTabs = 50

var refPattern = regexp.MustCompile(`^e\d+$`)

// RefCache is a thread-safe, per-tab cache of snapshot refs.
type RefCache struct {
	tabs *lru.Cache[string, map[string]RoleRef]
}

func NewRefCache() *RefCache {
	c, err := lru.New[string, map[string]RoleRef](refCacheTabs)
	if err != nil {
		// lru.New only fails for size <= 0
		panic(err)
	}
	return &RefCache{tabs: c}
}

// Store replaces the refs for a tab with those from a fresh snapshot.
func (rc *RefCache) Store(targetID string, refs map[string]RoleRef) {
	rc.tabs.Add(targetID, refs)
}

// Resolve looks up a ref for a tab.
func (rc *RefCache) Resolve(targetID, ref string) (*RoleRef, bool) {
	refs, ok := rc.tabs.Get(targetID)
	if !ok {
		return nil, false
	}
	r, ok := refs[NormalizeRef(ref)]
	if !ok {
		return nil, false
	}
	return &r, true
}

// Drop removes the cached refs for a closed tab.
func (rc *RefCache) Drop(targetID string) {
	rc.tabs.Remove(targetID)
}

// NormalizeRef accepts the ref spellings models produce:
// "@e5", "ref=e5", "e5" → "e5". Unknown shapes pass through unchanged.
func NormalizeRef(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "@")
	s = strings.TrimPrefix(s, "ref=")
	if refPattern.MatchString(s) {
		return s
	}
	return s
}
