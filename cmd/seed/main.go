// Command seed loads demo users, follows, and posts into a finch
// database so a fresh install has something to render.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/finchsocial/finch/internal/domain"
	"github.com/finchsocial/finch/internal/sqlite"
)

type seedUser struct {
	id, name, displayName, biography string
}

type seedPost struct {
	author  string
	content string
	tags    []string
}

var seedUsers = []seedUser{
	{"u-ada", "ada", "Ada L.", "counting machines before it was cool"},
	{"u-grace", "grace", "Grace H.", "ship it, then document it"},
	{"u-linus", "linus", "Linus T.", "talk is cheap"},
}

var seedPosts = []seedPost{
	{"u-ada", "Notes on the analytical engine, thread below.", []string{"history", "computing"}},
	{"u-grace", "A ship in port is safe, but that is not what ships are for.", nil},
	{"u-linus", "Given enough eyeballs, all bugs are shallow.", []string{"oss"}},
	{"u-grace", "Wrote a compiler today. The future is symbolic.", []string{"computing"}},
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var dbPath string
	flag.StringVar(&dbPath, "db", envOrDefault("FINCH_DB", "finch.db"), "SQLite database path")
	flag.Parse()

	repo, err := sqlite.Open(dbPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	ctx := context.Background()

	for _, u := range seedUsers {
		err := repo.CreateUser(ctx, &domain.User{
			ID:          u.id,
			Name:        u.name,
			DisplayName: u.displayName,
			Biography:   u.biography,
		})
		if err != nil {
			return fmt.Errorf("create user %s: %w", u.name, err)
		}
		fmt.Printf("created user %s (%s)\n", u.name, u.id)
	}

	// Everyone follows ada.
	for _, u := range seedUsers[1:] {
		if _, err := repo.Create(ctx, domain.RelationFollow, u.id, "u-ada", time.Now().UTC()); err != nil {
			return fmt.Errorf("follow: %w", err)
		}
	}

	base := time.Now().UTC().Add(-time.Duration(len(seedPosts)) * time.Minute)
	for i, p := range seedPosts {
		post := &domain.Post{
			ID:        uuid.NewString(),
			AuthorID:  p.author,
			Content:   p.content,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.CreatePost(ctx, post, p.tags); err != nil {
			return fmt.Errorf("create post: %w", err)
		}
		fmt.Printf("created post %s by %s\n", post.ID, p.author)
	}

	fmt.Println("seed complete")
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
