package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/finchsocial/finch/internal/domain"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func mustCreateUser(t *testing.T, repo *Repository, id, name string) {
	t.Helper()
	err := repo.CreateUser(context.Background(), &domain.User{ID: id, Name: name, DisplayName: name})
	require.NoError(t, err)
}

func mustCreatePost(t *testing.T, repo *Repository, id, authorID, content string, at time.Time, tags ...string) {
	t.Helper()
	err := repo.CreatePost(context.Background(), &domain.Post{
		ID:        id,
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: at,
	}, tags)
	require.NoError(t, err)
}

func TestListFeed_Ordering(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	mustCreateUser(t, repo, "u1", "alice")

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	mustCreatePost(t, repo, "p1", "u1", "oldest", base)
	mustCreatePost(t, repo, "p2", "u1", "middle", base.Add(time.Minute))
	mustCreatePost(t, repo, "p3", "u1", "newest", base.Add(2*time.Minute))

	items, err := repo.ListFeed(ctx, domain.FeedQuery{Limit: 10})
	require.NoError(t, err)
	require.Len(t, items, 3)
	require.Equal(t, "p3", items[0].ID)
	require.Equal(t, "p2", items[1].ID)
	require.Equal(t, "p1", items[2].ID)
}

func TestListFeed_TieBreakByIDDesc(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	mustCreateUser(t, repo, "u1", "alice")

	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	mustCreatePost(t, repo, "a", "u1", "second", at)
	mustCreatePost(t, repo, "b", "u1", "first", at)

	// Repeated fetches must produce the same order: id desc on ties.
	for i := 0; i < 3; i++ {
		items, err := repo.ListFeed(ctx, domain.FeedQuery{Limit: 10})
		require.NoError(t, err)
		require.Len(t, items, 2)
		require.Equal(t, "b", items[0].ID)
		require.Equal(t, "a", items[1].ID)
	}
}

func TestListFeed_CursorResumesStrictlyAfter(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	mustCreateUser(t, repo, "u1", "alice")

	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	mustCreatePost(t, repo, "a", "u1", "second", at)
	mustCreatePost(t, repo, "b", "u1", "first", at)

	items, err := repo.ListFeed(ctx, domain.FeedQuery{
		After: &domain.Cursor{ID: "b", CreatedAt: at},
		Limit: 10,
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "a", items[0].ID)
}

func TestListFeed_Filters(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	mustCreateUser(t, repo, "alice", "alice")
	mustCreateUser(t, repo, "bob", "bob")
	mustCreateUser(t, repo, "carol", "carol")

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	mustCreatePost(t, repo, "pa", "alice", "from alice", base)
	mustCreatePost(t, repo, "pb", "bob", "from bob", base.Add(time.Minute))
	mustCreatePost(t, repo, "pc", "carol", "from carol", base.Add(2*time.Minute))

	_, err := repo.Create(ctx, domain.RelationFollow, "alice", "bob", base)
	require.NoError(t, err)

	t.Run("by author", func(t *testing.T) {
		items, err := repo.ListFeed(ctx, domain.FeedQuery{
			Filter: domain.FeedFilter{AuthorID: "bob"},
			Limit:  10,
		})
		require.NoError(t, err)
		require.Len(t, items, 1)
		require.Equal(t, "pb", items[0].ID)
	})

	t.Run("followees only", func(t *testing.T) {
		items, err := repo.ListFeed(ctx, domain.FeedQuery{
			Filter: domain.FeedFilter{FolloweesOf: "alice"},
			Limit:  10,
		})
		require.NoError(t, err)
		require.Len(t, items, 1)
		require.Equal(t, "pb", items[0].ID)
	})

	t.Run("unfollowed viewer sees nothing", func(t *testing.T) {
		items, err := repo.ListFeed(ctx, domain.FeedQuery{
			Filter: domain.FeedFilter{FolloweesOf: "carol"},
			Limit:  10,
		})
		require.NoError(t, err)
		require.Empty(t, items)
	})
}

func TestListFeed_ViewerDecoration(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	mustCreateUser(t, repo, "alice", "alice")
	mustCreateUser(t, repo, "bob", "bob")

	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	mustCreatePost(t, repo, "p1", "alice", "hello", at)

	_, err := repo.Create(ctx, domain.RelationLike, "bob", "p1", at)
	require.NoError(t, err)
	_, err = repo.Create(ctx, domain.RelationLike, "alice", "p1", at)
	require.NoError(t, err)
	_, err = repo.Create(ctx, domain.RelationRepost, "bob", "p1", at)
	require.NoError(t, err)

	t.Run("as bob", func(t *testing.T) {
		items, err := repo.ListFeed(ctx, domain.FeedQuery{ViewerID: "bob", Limit: 10})
		require.NoError(t, err)
		require.Len(t, items, 1)
		require.Equal(t, 2, items[0].LikeCount)
		require.Equal(t, 1, items[0].RepostCount)
		require.True(t, items[0].LikedByMe)
		require.True(t, items[0].RepostedByMe)
		require.Equal(t, "alice", items[0].Author.Name)
	})

	t.Run("anonymous", func(t *testing.T) {
		items, err := repo.ListFeed(ctx, domain.FeedQuery{Limit: 10})
		require.NoError(t, err)
		require.Len(t, items, 1)
		require.Equal(t, 2, items[0].LikeCount)
		require.False(t, items[0].LikedByMe)
		require.False(t, items[0].RepostedByMe)
	})
}

func TestRelationships_DuplicateInsertCollapses(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	mustCreateUser(t, repo, "alice", "alice")
	mustCreateUser(t, repo, "bob", "bob")
	at := time.Now().UTC()
	mustCreatePost(t, repo, "p1", "bob", "post", at)

	created, err := repo.Create(ctx, domain.RelationLike, "alice", "p1", at)
	require.NoError(t, err)
	require.True(t, created)

	// The unique constraint is the backstop for the toggle race: a
	// second insert affects zero rows instead of failing.
	created, err = repo.Create(ctx, domain.RelationLike, "alice", "p1", at)
	require.NoError(t, err)
	require.False(t, created)

	items, err := repo.ListFeed(ctx, domain.FeedQuery{Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 1, items[0].LikeCount)

	deleted, err := repo.Delete(ctx, domain.RelationLike, "alice", "p1")
	require.NoError(t, err)
	require.True(t, deleted)

	deleted, err = repo.Delete(ctx, domain.RelationLike, "alice", "p1")
	require.NoError(t, err)
	require.False(t, deleted)
}

func TestCreatePost_TagsAttachedAtomically(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	mustCreateUser(t, repo, "alice", "alice")

	at := time.Now().UTC()
	mustCreatePost(t, repo, "p1", "alice", "tagged", at, "go", "feeds")
	mustCreatePost(t, repo, "p2", "alice", "reuses tag", at.Add(time.Second), "go")

	tags, err := repo.TagsForPosts(ctx, []string{"p1", "p2"})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"feeds", "go"}, tags["p1"])
	require.Equal(t, []string{"go"}, tags["p2"])
}

func TestDeletePost_CascadesRelationshipsAndTags(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	mustCreateUser(t, repo, "alice", "alice")
	mustCreateUser(t, repo, "bob", "bob")

	at := time.Now().UTC()
	mustCreatePost(t, repo, "p1", "alice", "doomed", at, "gone")
	_, err := repo.Create(ctx, domain.RelationLike, "bob", "p1", at)
	require.NoError(t, err)

	require.NoError(t, repo.DeletePost(ctx, "p1"))

	_, err = repo.GetPost(ctx, "p1")
	require.ErrorIs(t, err, domain.ErrNotFound)

	exists, err := repo.Exists(ctx, domain.RelationLike, "bob", "p1")
	require.NoError(t, err)
	require.False(t, exists)

	tags, err := repo.TagsForPosts(ctx, []string{"p1"})
	require.NoError(t, err)
	require.Empty(t, tags["p1"])
}

func TestGetProfile_CountsAreLive(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	mustCreateUser(t, repo, "alice", "alice")
	mustCreateUser(t, repo, "bob", "bob")
	mustCreateUser(t, repo, "carol", "carol")

	at := time.Now().UTC()
	mustCreatePost(t, repo, "p1", "bob", "one", at)
	mustCreatePost(t, repo, "p2", "bob", "two", at.Add(time.Second))
	_, err := repo.Create(ctx, domain.RelationFollow, "alice", "bob", at)
	require.NoError(t, err)
	_, err = repo.Create(ctx, domain.RelationFollow, "carol", "bob", at)
	require.NoError(t, err)
	_, err = repo.Create(ctx, domain.RelationFollow, "bob", "alice", at)
	require.NoError(t, err)

	p, err := repo.GetProfile(ctx, "alice", "bob")
	require.NoError(t, err)
	require.Equal(t, 2, p.FollowersCount)
	require.Equal(t, 1, p.FollowsCount)
	require.Equal(t, 2, p.PostsCount)
	require.True(t, p.IsFollowing)

	p, err = repo.GetProfile(ctx, "", "bob")
	require.NoError(t, err)
	require.False(t, p.IsFollowing)

	_, err = repo.GetProfile(ctx, "", "nobody")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateProfile_PartialFields(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	mustCreateUser(t, repo, "alice", "alice")

	bio := "new bio"
	require.NoError(t, repo.UpdateProfile(ctx, "alice", domain.ProfileUpdate{Biography: &bio}))

	u, err := repo.GetUser(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "new bio", u.Biography)
	require.Equal(t, "alice", u.DisplayName, "untouched field must keep its value")
}

func TestSearch(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	mustCreateUser(t, repo, "alice", "alice")
	mustCreateUser(t, repo, "bob", "bob")

	at := time.Now().UTC()
	mustCreatePost(t, repo, "p1", "alice", "Cursor pagination is neat", at)
	mustCreatePost(t, repo, "p2", "bob", "unrelated musings", at.Add(time.Second))

	posts, err := repo.SearchPosts(ctx, "", "PAGINATION")
	require.NoError(t, err)
	require.Len(t, posts, 1)
	require.Equal(t, "p1", posts[0].ID)

	users, err := repo.SearchUsers(ctx, "ali")
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, "alice", users[0].ID)
}

// Chaining pages with any limit must yield every post exactly once in
// strict (createdAt desc, id desc) order, including across timestamp
// ties.
func TestPaginationCompleteness(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	mustCreateUser(t, repo, "u1", "alice")

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	const total = 23
	for i := 0; i < total; i++ {
		// Two posts share each timestamp to exercise the tie-break.
		at := base.Add(time.Duration(i/2) * time.Second)
		mustCreatePost(t, repo, fmt.Sprintf("p%02d", i), "u1", "post", at)
	}

	for _, limit := range []int{1, 3, 10, 25} {
		t.Run(fmt.Sprintf("limit=%d", limit), func(t *testing.T) {
			seen := make(map[string]int)
			var order []string
			var after *domain.Cursor

			for {
				items, err := repo.ListFeed(ctx, domain.FeedQuery{After: after, Limit: limit + 1})
				require.NoError(t, err)
				if len(items) == 0 {
					break
				}
				if len(items) > limit {
					items = items[:limit]
				}
				for _, item := range items {
					seen[item.ID]++
					order = append(order, item.ID)
				}
				last := items[len(items)-1]
				after = &domain.Cursor{ID: last.ID, CreatedAt: last.CreatedAt}
			}

			require.Len(t, seen, total, "every post exactly once")
			for id, n := range seen {
				require.Equal(t, 1, n, "post %s fetched %d times", id, n)
			}
			for i := 1; i < len(order); i++ {
				require.Less(t, order[i], order[i-1], "ids with equal timestamps must descend")
			}
		})
	}
}

func TestOpen_BadPath(t *testing.T) {
	_, err := Open("/nonexistent-dir/finch.db")
	require.Error(t, err)
}

func TestUnknownRelation(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.Exists(context.Background(), domain.Relation("bogus"), "a", "b")
	require.Error(t, err)
	require.False(t, errors.Is(err, domain.ErrNotFound))
}
