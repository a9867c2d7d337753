package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/finchsocial/finch/internal/domain"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Repository implements domain.PostRepository,
// domain.RelationshipRepository, domain.UserRepository, and
// domain.Searcher on a single SQLite database.
type Repository struct {
	db *sql.DB
}

// Open opens (or creates) the database at dsn, applies pragmas and the
// schema, and returns a ready Repository. The caller should call Close
// when the repository is no longer needed.
func Open(dsn string) (*Repository, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite has a single writer; one pooled connection also keeps the
	// foreign_keys pragma applied to every statement.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		`PRAGMA foreign_keys = ON`,
		`PRAGMA busy_timeout = 5000`,
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// CreatePost inserts the post and its tag links in one transaction.
// Tags that do not exist yet are created on the fly.
func (r *Repository) CreatePost(ctx context.Context, post *domain.Post, tags []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO posts (id, author_id, content, created_at) VALUES (?, ?, ?, ?)`,
		post.ID, post.AuthorID, post.Content, post.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}

	for _, name := range tags {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO tags (id, name) VALUES (?, ?) ON CONFLICT (name) DO NOTHING`,
			uuid.NewString(), name,
		)
		if err != nil {
			return fmt.Errorf("upsert tag %q: %w", name, err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO post_tags (post_id, tag_id) SELECT ?, id FROM tags WHERE name = ?`,
			post.ID, name,
		)
		if err != nil {
			return fmt.Errorf("attach tag %q: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetPost retrieves a post by id.
func (r *Repository) GetPost(ctx context.Context, id string) (*domain.Post, error) {
	var (
		post   domain.Post
		millis int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, author_id, content, created_at FROM posts WHERE id = ?`, id,
	).Scan(&post.ID, &post.AuthorID, &post.Content, &millis)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("post %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query post: %w", err)
	}
	post.CreatedAt = time.UnixMilli(millis).UTC()
	return &post, nil
}

// DeletePost removes a post. Likes, reposts, and tag links referencing
// it are removed by the schema's ON DELETE CASCADE.
func (r *Repository) DeletePost(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	return err
}

// feedSelect decorates each post row with aggregate counts and
// per-viewer flags in a single statement. The two viewer placeholders
// bind first.
const feedSelect = `
	SELECT p.id, p.author_id, p.content, p.created_at,
	       u.name, u.display_name, u.image,
	       (SELECT COUNT(*) FROM likes l WHERE l.post_id = p.id) AS like_count,
	       (SELECT COUNT(*) FROM reposts rp WHERE rp.post_id = p.id) AS repost_count,
	       EXISTS(SELECT 1 FROM likes l WHERE l.post_id = p.id AND l.user_id = ?) AS liked_by_me,
	       EXISTS(SELECT 1 FROM reposts rp WHERE rp.post_id = p.id AND rp.user_id = ?) AS reposted_by_me
	FROM posts p
	JOIN users u ON u.id = p.author_id`

// ListFeed retrieves up to q.Limit decorated posts in
// (created_at desc, id desc) order, resuming strictly after q.After
// via row-value comparison so pages stay correct under concurrent
// inserts ahead of the cursor.
func (r *Repository) ListFeed(ctx context.Context, q domain.FeedQuery) ([]domain.FeedItem, error) {
	args := []any{q.ViewerID, q.ViewerID}
	var conds []string

	if q.Filter.AuthorID != "" {
		conds = append(conds, `p.author_id = ?`)
		args = append(args, q.Filter.AuthorID)
	}
	if q.Filter.FolloweesOf != "" {
		conds = append(conds, `p.author_id IN (SELECT followee_id FROM follows WHERE follower_id = ?)`)
		args = append(args, q.Filter.FolloweesOf)
	}
	if q.After != nil {
		conds = append(conds, `(p.created_at, p.id) < (?, ?)`)
		args = append(args, q.After.CreatedAt.UnixMilli(), q.After.ID)
	}

	query := feedSelect
	if len(conds) > 0 {
		query += "\n\tWHERE " + strings.Join(conds, " AND ")
	}
	query += "\n\tORDER BY p.created_at DESC, p.id DESC\n\tLIMIT ?"
	args = append(args, q.Limit)

	return r.queryFeedItems(ctx, query, args...)
}

func (r *Repository) queryFeedItems(ctx context.Context, query string, args ...any) ([]domain.FeedItem, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query feed items: %w", err)
	}
	defer rows.Close()

	var items []domain.FeedItem
	for rows.Next() {
		var (
			item   domain.FeedItem
			millis int64
		)
		err := rows.Scan(
			&item.ID, &item.AuthorID, &item.Content, &millis,
			&item.Author.Name, &item.Author.DisplayName, &item.Author.Image,
			&item.LikeCount, &item.RepostCount,
			&item.LikedByMe, &item.RepostedByMe,
		)
		if err != nil {
			return nil, fmt.Errorf("scan feed item: %w", err)
		}
		item.CreatedAt = time.UnixMilli(millis).UTC()
		item.Author.ID = item.AuthorID
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feed items: %w", err)
	}
	return items, nil
}

// TagsForPosts returns the tag names attached to each given post id.
func (r *Repository) TagsForPosts(ctx context.Context, postIDs []string) (map[string][]string, error) {
	if len(postIDs) == 0 {
		return map[string][]string{}, nil
	}

	placeholders := strings.Repeat("?,", len(postIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(postIDs))
	for i, id := range postIDs {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT pt.post_id, t.name
		FROM post_tags pt
		JOIN tags t ON t.id = pt.tag_id
		WHERE pt.post_id IN (`+placeholders+`)
		ORDER BY t.name`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	defer rows.Close()

	tags := make(map[string][]string)
	for rows.Next() {
		var postID, name string
		if err := rows.Scan(&postID, &name); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags[postID] = append(tags[postID], name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}
	return tags, nil
}

// relTable maps each relationship kind to its table and key columns.
var relTable = map[domain.Relation]struct {
	name, actor, target string
}{
	domain.RelationLike:   {"likes", "user_id", "post_id"},
	domain.RelationRepost: {"reposts", "user_id", "post_id"},
	domain.RelationFollow: {"follows", "follower_id", "followee_id"},
}

// Exists reports whether the unique (actor, target) row is present.
func (r *Repository) Exists(ctx context.Context, rel domain.Relation, actorID, targetID string) (bool, error) {
	t, ok := relTable[rel]
	if !ok {
		return false, fmt.Errorf("unknown relation %q", rel)
	}

	var exists bool
	err := r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE %s = ? AND %s = ?)`, t.name, t.actor, t.target),
		actorID, targetID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query %s: %w", t.name, err)
	}
	return exists, nil
}

// Create inserts the relationship row. The composite primary key is
// the backstop for concurrent toggles: a duplicate insert affects zero
// rows and is reported as created=false rather than an error.
func (r *Repository) Create(ctx context.Context, rel domain.Relation, actorID, targetID string, at time.Time) (bool, error) {
	t, ok := relTable[rel]
	if !ok {
		return false, fmt.Errorf("unknown relation %q", rel)
	}

	res, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (%s, %s, created_at) VALUES (?, ?, ?) ON CONFLICT DO NOTHING`, t.name, t.actor, t.target),
		actorID, targetID, at.UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("insert %s: %w", t.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Delete removes the relationship row.
func (r *Repository) Delete(ctx context.Context, rel domain.Relation, actorID, targetID string) (bool, error) {
	t, ok := relTable[rel]
	if !ok {
		return false, fmt.Errorf("unknown relation %q", rel)
	}

	res, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE %s = ? AND %s = ?`, t.name, t.actor, t.target),
		actorID, targetID,
	)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", t.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// CreateUser inserts a user record.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, display_name, image, biography) VALUES (?, ?, ?, ?, ?)`,
		user.ID, user.Name, user.DisplayName, user.Image, user.Biography,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by id.
func (r *Repository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, display_name, image, biography FROM users WHERE id = ?`, id,
	).Scan(&user.ID, &user.Name, &user.DisplayName, &user.Image, &user.Biography)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

// GetProfile retrieves the decorated profile read model. All counts
// come from live rows at query time.
func (r *Repository) GetProfile(ctx context.Context, viewerID, profileID string) (*domain.Profile, error) {
	var p domain.Profile
	err := r.db.QueryRowContext(ctx, `
		SELECT u.id, u.name, u.display_name, u.image, u.biography,
		       (SELECT COUNT(*) FROM follows f WHERE f.followee_id = u.id) AS followers_count,
		       (SELECT COUNT(*) FROM follows f WHERE f.follower_id = u.id) AS follows_count,
		       (SELECT COUNT(*) FROM posts po WHERE po.author_id = u.id) AS posts_count,
		       EXISTS(SELECT 1 FROM follows f WHERE f.followee_id = u.id AND f.follower_id = ?) AS is_following
		FROM users u
		WHERE u.id = ?`,
		viewerID, profileID,
	).Scan(
		&p.ID, &p.Name, &p.DisplayName, &p.Image, &p.Biography,
		&p.FollowersCount, &p.FollowsCount, &p.PostsCount, &p.IsFollowing,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: %w", profileID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query profile: %w", err)
	}
	return &p, nil
}

// UpdateProfile applies the non-nil fields of upd to the user.
func (r *Repository) UpdateProfile(ctx context.Context, userID string, upd domain.ProfileUpdate) error {
	var (
		sets []string
		args []any
	)
	if upd.DisplayName != nil {
		sets = append(sets, `display_name = ?`)
		args = append(args, *upd.DisplayName)
	}
	if upd.Biography != nil {
		sets = append(sets, `biography = ?`)
		args = append(args, *upd.Biography)
	}
	if upd.Image != nil {
		sets = append(sets, `image = ?`)
		args = append(args, *upd.Image)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, userID)

	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

// searchPageSize caps free-text result sets.
const searchPageSize = 50

// SearchPosts matches posts whose content contains the query,
// decorated the same way as feed pages.
func (r *Repository) SearchPosts(ctx context.Context, viewerID, query string) ([]domain.FeedItem, error) {
	q := feedSelect + "\n\tWHERE instr(lower(p.content), lower(?)) > 0" +
		"\n\tORDER BY p.created_at DESC, p.id DESC\n\tLIMIT ?"
	return r.queryFeedItems(ctx, q, viewerID, viewerID, query, searchPageSize)
}

// SearchUsers matches users whose name or display name contains the
// query.
func (r *Repository) SearchUsers(ctx context.Context, query string) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, display_name, image, biography
		FROM users
		WHERE instr(lower(name), lower(?)) > 0 OR instr(lower(display_name), lower(?)) > 0
		ORDER BY name
		LIMIT ?`,
		query, query, searchPageSize,
	)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Name, &u.DisplayName, &u.Image, &u.Biography); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}
