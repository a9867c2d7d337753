package domain

import "time"

// Post is a single short text item. Immutable once created, except for
// deletion by its author.
type Post struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"-"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Author is the minimal user descriptor attached to feed items.
type Author struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Image       string `json:"image"`
}

// User is a full user record.
type User struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Image       string `json:"image"`
	Biography   string `json:"biography"`
}

// Descriptor returns the author descriptor for u.
func (u *User) Descriptor() Author {
	return Author{
		ID:          u.ID,
		Name:        u.Name,
		DisplayName: u.DisplayName,
		Image:       u.Image,
	}
}

// FeedItem is a post decorated with per-viewer relationship flags,
// aggregate counts, tags, and its author descriptor. Counts and flags
// reflect live row counts at query time; they are never stored.
type FeedItem struct {
	Post
	Author       Author   `json:"user"`
	LikeCount    int      `json:"likeCount"`
	RepostCount  int      `json:"repostCount"`
	LikedByMe    bool     `json:"likedByMe"`
	RepostedByMe bool     `json:"repostedByMe"`
	Tags         []string `json:"tags,omitempty"`
}

// Profile is the read model for a user's profile page. Counts are
// computed from live rows at query time. IsFollowing is always false
// for anonymous viewers.
type Profile struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	DisplayName    string `json:"displayName"`
	Image          string `json:"image"`
	Biography      string `json:"biography"`
	FollowersCount int    `json:"followersCount"`
	FollowsCount   int    `json:"followsCount"`
	PostsCount     int    `json:"postsCount"`
	IsFollowing    bool   `json:"isFollowing"`
}

// ProfileUpdate carries the optional profile fields a user may change.
// Nil fields are left untouched.
type ProfileUpdate struct {
	DisplayName *string `json:"displayName,omitempty"`
	Biography   *string `json:"biography,omitempty"`
	Image       *string `json:"image,omitempty"`
}

// Relation identifies one of the three toggleable relationship kinds.
type Relation string

const (
	RelationLike   Relation = "like"
	RelationRepost Relation = "repost"
	RelationFollow Relation = "follow"
)
