package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Cursor marks the last item of a previously returned feed page. Pages
// resume strictly after it in (createdAt desc, id desc) order, so the
// feed stays correct as new posts are inserted ahead of it.
type Cursor struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// String encodes the cursor in the wire format "<unixMillis>::<id>".
func (c Cursor) String() string {
	return fmt.Sprintf("%d::%s", c.CreatedAt.UnixMilli(), c.ID)
}

// ParseCursor decodes a cursor from its wire format.
func ParseCursor(s string) (Cursor, error) {
	parts := strings.SplitN(s, "::", 2)
	if len(parts) != 2 || parts[1] == "" {
		return Cursor{}, fmt.Errorf("%w: want 'timestamp::id'", ErrInvalidCursor)
	}
	millis, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: bad timestamp: %v", ErrInvalidCursor, err)
	}
	return Cursor{ID: parts[1], CreatedAt: time.UnixMilli(millis).UTC()}, nil
}

// FeedFilter restricts a feed to posts by a single author or to posts
// by followees of a viewer. The zero value is the unrestricted feed.
// At most one field may be set.
type FeedFilter struct {
	AuthorID    string
	FolloweesOf string
}

// FeedPage is one page of a feed. NextCursor is nil at the end of the
// feed.
type FeedPage struct {
	Posts      []FeedItem `json:"posts"`
	NextCursor *Cursor    `json:"nextCursor,omitempty"`
}

// FeedQuery is the store-level query shape the pager issues.
type FeedQuery struct {
	Filter FeedFilter

	// ViewerID scopes likedByMe/repostedByMe decoration. Empty for
	// anonymous reads, which yields false flags.
	ViewerID string

	// After, when set, resumes strictly after the given composite key.
	After *Cursor

	// Limit is the maximum number of rows to return. The pager asks
	// for one more row than the page size to probe for a next page.
	Limit int
}
