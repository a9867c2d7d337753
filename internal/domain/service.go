package domain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultPageLimit is the page size used when a caller does not ask
// for one.
const DefaultPageLimit = 10

// FeedService is the core domain service. It owns the cursor pager,
// the relationship toggle engine, and feed/profile assembly over the
// repository ports. Each call runs to completion independently; the
// store's uniqueness constraints and transactions are the only
// concurrency control.
type FeedService struct {
	posts  PostRepository
	rels   RelationshipRepository
	users  UserRepository
	search Searcher
	events EventSink
	logger *slog.Logger
}

// NewFeedService creates a FeedService over the given ports. The event
// sink may be nil when no stream is attached.
func NewFeedService(
	posts PostRepository,
	rels RelationshipRepository,
	users UserRepository,
	search Searcher,
	events EventSink,
	logger *slog.Logger,
) *FeedService {
	return &FeedService{
		posts:  posts,
		rels:   rels,
		users:  users,
		search: search,
		events: events,
		logger: logger,
	}
}

// GetFeed returns one page of the feed described by filter as seen by
// viewerID (empty for anonymous reads), resuming after cursor when set.
//
// The pager fetches limit+1 rows to probe for a next page. When the
// probe row comes back it is dropped and the next cursor is the
// composite key of the last item actually returned; the store resumes
// strictly after that key, so pages never overlap and never skip,
// regardless of inserts ahead of the cursor.
func (s *FeedService) GetFeed(ctx context.Context, viewerID string, filter FeedFilter, cursor *Cursor, limit int) (*FeedPage, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	if filter.AuthorID != "" && filter.FolloweesOf != "" {
		return nil, ErrInvalidFilter
	}

	items, err := s.posts.ListFeed(ctx, FeedQuery{
		Filter:   filter,
		ViewerID: viewerID,
		After:    cursor,
		Limit:    limit + 1,
	})
	if err != nil {
		return nil, fmt.Errorf("list feed: %w", err)
	}

	page := &FeedPage{}
	if len(items) > limit {
		items = items[:limit]
		last := items[limit-1]
		page.NextCursor = &Cursor{ID: last.ID, CreatedAt: last.CreatedAt}
	}

	if err := s.attachTags(ctx, items); err != nil {
		return nil, err
	}
	page.Posts = items
	return page, nil
}

// CreatePost creates a post owned by actorID with the given tag names.
// The post and its tag links are written in one transaction.
func (s *FeedService) CreatePost(ctx context.Context, actorID, content string, tags []string) (*FeedItem, error) {
	if actorID == "" {
		return nil, ErrUnauthorized
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	author, err := s.users.GetUser(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("load author: %w", err)
	}

	post := &Post{
		ID:        uuid.NewString(),
		AuthorID:  actorID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}

	normalized := normalizeTags(tags)
	if err := s.posts.CreatePost(ctx, post, normalized); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}

	item := &FeedItem{
		Post:   *post,
		Author: author.Descriptor(),
		Tags:   normalized,
	}

	s.logger.Info("post created", "post_id", post.ID, "author_id", actorID)
	s.publish(Event{Type: EventPostCreated, ActorID: actorID, PostID: post.ID, Post: item})
	return item, nil
}

// DeletePost removes a post. Only the owning author may delete it.
func (s *FeedService) DeletePost(ctx context.Context, actorID, postID string) error {
	if actorID == "" {
		return ErrUnauthorized
	}

	post, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return err
	}
	if post.AuthorID != actorID {
		return fmt.Errorf("%w: post %s is not owned by actor %s", ErrUnauthorized, postID, actorID)
	}

	if err := s.posts.DeletePost(ctx, postID); err != nil {
		return fmt.Errorf("delete post: %w", err)
	}

	s.logger.Info("post deleted", "post_id", postID, "author_id", actorID)
	s.publish(Event{Type: EventPostDeleted, ActorID: actorID, PostID: postID})
	return nil
}

// GetProfile returns the profile read model for profileID as seen by
// viewerID (empty for anonymous viewers).
func (s *FeedService) GetProfile(ctx context.Context, viewerID, profileID string) (*Profile, error) {
	return s.users.GetProfile(ctx, viewerID, profileID)
}

// UpdateProfile applies the non-nil fields of upd to the actor's own
// profile.
func (s *FeedService) UpdateProfile(ctx context.Context, actorID string, upd ProfileUpdate) error {
	if actorID == "" {
		return ErrUnauthorized
	}
	if _, err := s.users.GetUser(ctx, actorID); err != nil {
		return err
	}
	return s.users.UpdateProfile(ctx, actorID, upd)
}

// SearchPosts relays a free-text post query to the search collaborator
// and finishes the decoration with tags.
func (s *FeedService) SearchPosts(ctx context.Context, viewerID, query string) ([]FeedItem, error) {
	items, err := s.search.SearchPosts(ctx, viewerID, query)
	if err != nil {
		return nil, fmt.Errorf("search posts: %w", err)
	}
	if err := s.attachTags(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

// SearchUsers relays a free-text user query to the search collaborator.
func (s *FeedService) SearchUsers(ctx context.Context, query string) ([]User, error) {
	users, err := s.search.SearchUsers(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return users, nil
}

func (s *FeedService) attachTags(ctx context.Context, items []FeedItem) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	tags, err := s.posts.TagsForPosts(ctx, ids)
	if err != nil {
		return fmt.Errorf("load tags: %w", err)
	}
	for i := range items {
		items[i].Tags = tags[items[i].ID]
	}
	return nil
}

func (s *FeedService) publish(event Event) {
	if s.events != nil {
		s.events.Publish(event)
	}
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
