package domain

import "errors"

// Sentinel errors surfaced to the request boundary. Store failures are
// wrapped with %w and bubble unmodified; callers retry on their next
// interaction, never the core.
var (
	// ErrNotFound is returned when a post, user, or profile id does
	// not resolve. Feed and profile readers render an absent state.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized is returned for mutations without an
	// authenticated actor or by an actor who does not own the target.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrSelfFollow is returned when an actor tries to follow
	// themselves.
	ErrSelfFollow = errors.New("cannot follow yourself")

	// ErrInvalidLimit is returned for page limits <= 0.
	ErrInvalidLimit = errors.New("limit must be positive")

	// ErrInvalidCursor is returned for malformed resume tokens.
	ErrInvalidCursor = errors.New("invalid cursor")

	// ErrEmptyContent is returned when a post body is blank.
	ErrEmptyContent = errors.New("post content is empty")

	// ErrInvalidFilter is returned when a feed filter sets more than
	// one restriction.
	ErrInvalidFilter = errors.New("feed filter must set at most one restriction")
)
