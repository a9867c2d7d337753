package sqlite

// Timestamps are stored as unix milliseconds so cursor comparison and
// tie-break semantics are exact. Derived counts are never stored; they
// are computed from live rows in the read queries.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL UNIQUE,
	display_name TEXT NOT NULL DEFAULT '',
	image        TEXT NOT NULL DEFAULT '',
	biography    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS posts (
	id         TEXT PRIMARY KEY,
	author_id  TEXT NOT NULL REFERENCES users(id),
	content    TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_posts_feed ON posts(created_at DESC, id DESC);
CREATE INDEX IF NOT EXISTS idx_posts_author ON posts(author_id);

CREATE TABLE IF NOT EXISTS likes (
	user_id    TEXT NOT NULL REFERENCES users(id),
	post_id    TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (user_id, post_id)
);

CREATE INDEX IF NOT EXISTS idx_likes_post ON likes(post_id);

CREATE TABLE IF NOT EXISTS reposts (
	user_id    TEXT NOT NULL REFERENCES users(id),
	post_id    TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (user_id, post_id)
);

CREATE INDEX IF NOT EXISTS idx_reposts_post ON reposts(post_id);

CREATE TABLE IF NOT EXISTS follows (
	follower_id TEXT NOT NULL REFERENCES users(id),
	followee_id TEXT NOT NULL REFERENCES users(id),
	created_at  INTEGER NOT NULL,
	PRIMARY KEY (follower_id, followee_id)
);

CREATE INDEX IF NOT EXISTS idx_follows_followee ON follows(followee_id);

CREATE TABLE IF NOT EXISTS tags (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS post_tags (
	post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
	tag_id  TEXT NOT NULL REFERENCES tags(id),
	PRIMARY KEY (post_id, tag_id)
);
`
