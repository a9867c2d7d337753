package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ToggleLike flips the like relationship between actorID and postID.
// Returns true when the like was added, false when it was removed.
func (s *FeedService) ToggleLike(ctx context.Context, actorID, postID string) (bool, error) {
	if actorID == "" {
		return false, ErrUnauthorized
	}
	if _, err := s.posts.GetPost(ctx, postID); err != nil {
		return false, err
	}

	added, err := s.toggle(ctx, RelationLike, actorID, postID)
	if err != nil {
		return false, err
	}

	s.publish(Event{Type: EventLikeToggled, ActorID: actorID, PostID: postID, Added: added})
	return added, nil
}

// ToggleRepost flips the repost relationship between actorID and
// postID. Adding a repost also materializes a new post owned by the
// actor quoting the original author and content; its descriptor is
// returned. Removing the repost leaves the quoted post in place.
func (s *FeedService) ToggleRepost(ctx context.Context, actorID, postID string) (bool, *FeedItem, error) {
	if actorID == "" {
		return false, nil, ErrUnauthorized
	}

	original, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return false, nil, err
	}

	added, err := s.toggle(ctx, RelationRepost, actorID, postID)
	if err != nil {
		return false, nil, err
	}

	var reposted *FeedItem
	if added {
		originalAuthor, err := s.users.GetUser(ctx, original.AuthorID)
		if err != nil {
			return false, nil, fmt.Errorf("load original author: %w", err)
		}
		actor, err := s.users.GetUser(ctx, actorID)
		if err != nil {
			return false, nil, fmt.Errorf("load actor: %w", err)
		}

		quoted := &Post{
			ID:        uuid.NewString(),
			AuthorID:  actorID,
			Content:   repostContent(originalAuthor, original.Content),
			CreatedAt: time.Now().UTC(),
		}
		if err := s.posts.CreatePost(ctx, quoted, nil); err != nil {
			return false, nil, fmt.Errorf("create reposted post: %w", err)
		}
		reposted = &FeedItem{Post: *quoted, Author: actor.Descriptor()}
		s.publish(Event{Type: EventPostCreated, ActorID: actorID, PostID: quoted.ID, Post: reposted})
	}

	s.publish(Event{Type: EventRepostToggled, ActorID: actorID, PostID: postID, Added: added})
	return added, reposted, nil
}

// ToggleFollow flips the follow relationship from actorID to
// followeeID. Self-follows are rejected.
func (s *FeedService) ToggleFollow(ctx context.Context, actorID, followeeID string) (bool, error) {
	if actorID == "" {
		return false, ErrUnauthorized
	}
	if actorID == followeeID {
		return false, ErrSelfFollow
	}
	if _, err := s.users.GetUser(ctx, followeeID); err != nil {
		return false, err
	}

	added, err := s.toggle(ctx, RelationFollow, actorID, followeeID)
	if err != nil {
		return false, err
	}

	s.publish(Event{Type: EventFollowToggled, ActorID: actorID, ProfileID: followeeID, Added: added})
	return added, nil
}

// toggle is the create-or-delete decision shared by all three
// relationship kinds. It is a pure flip: calling it N times toggles
// state N times and never errors on repeats. The lookup-then-act
// window between two concurrent toggles is closed by the store's
// uniqueness constraint; a duplicate insert collapses to the row state
// that won the race.
func (s *FeedService) toggle(ctx context.Context, rel Relation, actorID, targetID string) (bool, error) {
	exists, err := s.rels.Exists(ctx, rel, actorID, targetID)
	if err != nil {
		return false, fmt.Errorf("lookup %s: %w", rel, err)
	}

	if exists {
		if _, err := s.rels.Delete(ctx, rel, actorID, targetID); err != nil {
			return false, fmt.Errorf("delete %s: %w", rel, err)
		}
		return false, nil
	}

	created, err := s.rels.Create(ctx, rel, actorID, targetID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("create %s: %w", rel, err)
	}
	if !created {
		s.logger.Debug("duplicate relationship insert collapsed", "relation", string(rel), "actor_id", actorID, "target_id", targetID)
	}
	return true, nil
}

func repostContent(originalAuthor *User, content string) string {
	name := originalAuthor.DisplayName
	if name == "" {
		name = originalAuthor.Name
	}
	return fmt.Sprintf("Reposting %s: %s", name, content)
}
