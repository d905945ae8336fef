// Package identity resolves the caller of an inbound request to a user id.
package identity

import (
	"context"
	"net/http"
	"strings"

	"github.com/slyt3/Quorum/internal/models"
)

// Resolver returns the caller's user id, or models.ErrUnauthorized when the
// request carries no valid identity.
type Resolver interface {
	Resolve(ctx context.Context, r *http.Request) (models.WorkerID, error)
}

// DefaultUserHeader carries the user id when a trusted gateway authenticates requests.
const DefaultUserHeader = "X-Quorum-User"

// HeaderResolver trusts a header set by an authenticating proxy in front of the server.
type HeaderResolver struct {
	Header string
}

func (h HeaderResolver) Resolve(_ context.Context, r *http.Request) (models.WorkerID, error) {
	name := h.Header
	if name == "" {
		name = DefaultUserHeader
	}
	id := strings.TrimSpace(r.Header.Get(name))
	if id == "" {
		return "", models.ErrUnauthorized
	}
	return models.WorkerID(id), nil
}
