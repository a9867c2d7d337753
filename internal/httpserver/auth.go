package httpserver

import (
	"net/http"
	"strings"
)

// Identity resolves the calling actor from a request. Session issuance
// is an external collaborator; the server only ever passes the
// resolved actor id into the core, never a caller-supplied identity.
type Identity interface {
	// ActorID returns the authenticated actor id for the request, or
	// false when the request is anonymous.
	ActorID(r *http.Request) (string, bool)
}

// StaticTokens is a bearer-token table standing in for the external
// identity provider.
type StaticTokens map[string]string

// ActorID resolves "Authorization: Bearer <token>" against the table.
func (t StaticTokens) ActorID(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	actorID, ok := t[token]
	return actorID, ok
}
