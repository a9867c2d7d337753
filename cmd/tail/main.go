// Command tail follows a finch server's event stream: it fetches the
// first feed page into a projection cache, subscribes to the stream,
// patches the cache as events arrive, and prints what changed.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/finchsocial/finch/internal/client"
	"github.com/finchsocial/finch/internal/domain"
)

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		baseURL string
		token   string
		limit   int
	)
	flag.StringVar(&baseURL, "url", envOrDefault("FINCH_URL", "http://localhost:3000"), "finch server base URL")
	flag.StringVar(&token, "token", os.Getenv("FINCH_TOKEN"), "bearer token (optional)")
	flag.IntVar(&limit, "limit", domain.DefaultPageLimit, "first page size")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := client.New(baseURL, token)

	page, err := c.Feed(ctx, domain.FeedFilter{}, nil, limit)
	if err != nil {
		return fmt.Errorf("fetch first page: %w", err)
	}
	for _, post := range page.Posts {
		printPost(post)
	}

	return c.Listen(ctx, func(event domain.Event) {
		cache := c.Cache()
		switch event.Type {
		case domain.EventPostCreated:
			if event.Post != nil {
				cache.PrependPost(*event.Post)
				printPost(*event.Post)
			}
		case domain.EventPostDeleted:
			cache.RemovePost(event.PostID)
			fmt.Printf("-- post %s deleted\n", event.PostID)
		case domain.EventLikeToggled:
			cache.ApplyLike(event.PostID, event.Added)
			fmt.Printf("-- like %s on %s\n", addedWord(event.Added), event.PostID)
		case domain.EventRepostToggled:
			cache.ApplyRepost(event.PostID, event.Added)
			fmt.Printf("-- repost %s on %s\n", addedWord(event.Added), event.PostID)
		case domain.EventFollowToggled:
			cache.ApplyFollow(event.ProfileID, event.Added)
			fmt.Printf("-- follow %s on %s\n", addedWord(event.Added), event.ProfileID)
		}
	})
}

func printPost(post domain.FeedItem) {
	fmt.Printf("%s @%s: %s\n", post.CreatedAt.Format("15:04:05"), post.Author.Name, post.Content)
}

func addedWord(added bool) string {
	if added {
		return "added"
	}
	return "removed"
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
