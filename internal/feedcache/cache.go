// Package feedcache is the client-side projection cache: feed pages
// keyed by the filter used to fetch them, patched in place when a
// mutation is confirmed instead of refetched. Patched counters are
// optimistic projections; they converge to store truth on the next
// full fetch.
package feedcache

import (
	"sync"

	"github.com/finchsocial/finch/internal/domain"
)

// Key identifies one cached feed view.
type Key string

// UnfilteredKey is the view holding the unrestricted feed.
const UnfilteredKey Key = "feed"

// FeedKey derives the cache key for a feed filter.
func FeedKey(f domain.FeedFilter) Key {
	switch {
	case f.AuthorID != "":
		return Key("author:" + f.AuthorID)
	case f.FolloweesOf != "":
		return Key("following:" + f.FolloweesOf)
	default:
		return UnfilteredKey
	}
}

// Cache is an explicit registry of (filter key -> pages) plus cached
// profiles, safe for concurrent use.
type Cache struct {
	mu       sync.RWMutex
	views    map[Key][]domain.FeedPage
	profiles map[string]domain.Profile
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		views:    make(map[Key][]domain.FeedPage),
		profiles: make(map[string]domain.Profile),
	}
}

// AppendPage adds a fetched page to the end of a view.
func (c *Cache) AppendPage(key Key, page domain.FeedPage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.views[key] = append(c.views[key], clonePage(page))
}

// ResetView drops all pages of a view, e.g. before a full refetch.
func (c *Cache) ResetView(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.views, key)
}

// Pages returns a copy of the pages cached for a view.
func (c *Cache) Pages(key Key) []domain.FeedPage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pages := make([]domain.FeedPage, len(c.views[key]))
	for i, p := range c.views[key] {
		pages[i] = clonePage(p)
	}
	return pages
}

// ApplyLike patches the post's like count and flag in every page of
// every view.
func (c *Cache) ApplyLike(postID string, added bool) {
	c.patch(postID, func(item *domain.FeedItem) {
		item.LikeCount += countModifier(added)
		item.LikedByMe = added
	})
}

// ApplyRepost patches the post's repost count and flag in every page
// of every view.
func (c *Cache) ApplyRepost(postID string, added bool) {
	c.patch(postID, func(item *domain.FeedItem) {
		item.RepostCount += countModifier(added)
		item.RepostedByMe = added
	})
}

// PrependPost puts a freshly created post at the top of the first page
// of the unfiltered view only; other views catch up on their next
// natural refetch. A view that was never fetched stays absent.
func (c *Cache) PrependPost(item domain.FeedItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pages := c.views[UnfilteredKey]
	if len(pages) == 0 {
		return
	}
	pages[0].Posts = append([]domain.FeedItem{item}, pages[0].Posts...)
}

// RemovePost drops a deleted post from every page of every view.
func (c *Cache) RemovePost(postID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, pages := range c.views {
		for i := range pages {
			posts := pages[i].Posts
			kept := posts[:0]
			for _, p := range posts {
				if p.ID != postID {
					kept = append(kept, p)
				}
			}
			pages[i].Posts = kept
		}
		c.views[key] = pages
	}
}

// PutProfile caches a fetched profile.
func (c *Cache) PutProfile(p domain.Profile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profiles[p.ID] = p
}

// Profile returns the cached profile for id, if present.
func (c *Cache) Profile(id string) (domain.Profile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.profiles[id]
	return p, ok
}

// ApplyFollow patches the followed profile's follower count and the
// viewer's flag.
func (c *Cache) ApplyFollow(profileID string, added bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.profiles[profileID]
	if !ok {
		return
	}
	p.FollowersCount += countModifier(added)
	p.IsFollowing = added
	c.profiles[profileID] = p
}

// patch applies fn to every copy of the post across all views, leaving
// every other page and field untouched.
func (c *Cache) patch(postID string, fn func(*domain.FeedItem)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, pages := range c.views {
		for i := range pages {
			for j := range pages[i].Posts {
				if pages[i].Posts[j].ID == postID {
					fn(&pages[i].Posts[j])
				}
			}
		}
	}
}

func countModifier(added bool) int {
	if added {
		return 1
	}
	return -1
}

func clonePage(p domain.FeedPage) domain.FeedPage {
	out := domain.FeedPage{Posts: append([]domain.FeedItem(nil), p.Posts...)}
	if p.NextCursor != nil {
		cur := *p.NextCursor
		out.NextCursor = &cur
	}
	return out
}
