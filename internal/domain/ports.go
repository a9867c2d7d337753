package domain

import (
	"context"
	"time"
)

// PostRepository defines persistence operations for posts and tags.
type PostRepository interface {
	// CreatePost inserts a post and attaches the given tag names in a
	// single transaction, creating tags that do not exist yet.
	CreatePost(ctx context.Context, post *Post, tags []string) error

	// GetPost retrieves a post by id. Returns ErrNotFound if the id
	// does not resolve.
	GetPost(ctx context.Context, id string) (*Post, error)

	// DeletePost removes a post by id. Relationship rows and tag links
	// referencing it are removed with it.
	DeletePost(ctx context.Context, id string) error

	// ListFeed retrieves up to q.Limit decorated posts ordered by
	// (createdAt desc, id desc), resuming strictly after q.After when
	// set. Tags are not populated; callers batch them separately.
	ListFeed(ctx context.Context, q FeedQuery) ([]FeedItem, error)

	// TagsForPosts returns the tag names attached to each of the given
	// post ids. Posts without tags are absent from the result.
	TagsForPosts(ctx context.Context, postIDs []string) (map[string][]string, error)
}

// RelationshipRepository defines persistence for the unique
// (actor, target) relationship rows behind likes, reposts, and follows.
type RelationshipRepository interface {
	// Exists reports whether the relationship row is present.
	Exists(ctx context.Context, rel Relation, actorID, targetID string) (bool, error)

	// Create inserts the relationship row. A duplicate insert is
	// collapsed by the store's uniqueness constraint and reported as
	// created=false; callers treat that as a benign race.
	Create(ctx context.Context, rel Relation, actorID, targetID string, at time.Time) (created bool, err error)

	// Delete removes the relationship row, reporting whether a row was
	// actually deleted.
	Delete(ctx context.Context, rel Relation, actorID, targetID string) (deleted bool, err error)
}

// UserRepository defines persistence operations for users and profiles.
type UserRepository interface {
	// CreateUser inserts a user record.
	CreateUser(ctx context.Context, user *User) error

	// GetUser retrieves a user by id. Returns ErrNotFound if the id
	// does not resolve.
	GetUser(ctx context.Context, id string) (*User, error)

	// GetProfile retrieves the decorated profile read model for
	// profileID as seen by viewerID (empty for anonymous viewers).
	GetProfile(ctx context.Context, viewerID, profileID string) (*Profile, error)

	// UpdateProfile applies the non-nil fields of upd to the user.
	UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) error
}

// Searcher is the external free-text matching collaborator. Matching
// semantics are implementation-defined; the core only relays results.
type Searcher interface {
	SearchPosts(ctx context.Context, viewerID, query string) ([]FeedItem, error)
	SearchUsers(ctx context.Context, query string) ([]User, error)
}

// EventSink receives notifications of confirmed mutations, e.g. for a
// live event stream. Implementations must not block.
type EventSink interface {
	Publish(event Event)
}
