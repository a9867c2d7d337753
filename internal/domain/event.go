package domain

// EventType labels a mutation event published to the stream.
type EventType string

const (
	EventPostCreated   EventType = "post.created"
	EventPostDeleted   EventType = "post.deleted"
	EventLikeToggled   EventType = "like.toggled"
	EventRepostToggled EventType = "repost.toggled"
	EventFollowToggled EventType = "follow.toggled"
)

// Event describes a confirmed mutation. Toggle events carry the
// resulting state in Added; post.created carries the new item.
type Event struct {
	Type      EventType `json:"type"`
	ActorID   string    `json:"actorId,omitempty"`
	PostID    string    `json:"postId,omitempty"`
	ProfileID string    `json:"profileId,omitempty"`
	Added     bool      `json:"added,omitempty"`
	Post      *FeedItem `json:"post,omitempty"`
}
