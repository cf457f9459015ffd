package permission

import (
	"context"
	"sort"

	"github.com/hoteldex/hotel-admin/internal/auth"
	"github.com/hoteldex/hotel-admin/internal/store"
)

// Resolution splits a requested source set into what the caller may
// query, what was refused, and what was requested but is temporarily
// disabled. Slices are sorted for deterministic output.
type Resolution struct {
	Allowed  []string
	Denied   []string
	Disabled []string
}

// Resolver computes the allowed-source set for a caller. It is pure over
// the current permission state: denial logging and auditing are the
// caller's concern.
type Resolver struct {
	sources store.SourceStore
}

func NewResolver(sources store.SourceStore) *Resolver {
	return &Resolver{sources: sources}
}

// Resolve applies role and disablement rules to the requested sources.
// An empty requested set means "everything the caller may see".
//
// Privileged roles receive all sources except globally disabled ones.
// Other callers receive the intersection of the request and their
// explicit grants; disabled sources are excluded regardless of grant.
func (r *Resolver) Resolve(ctx context.Context, sess *auth.Session, requested []string) (*Resolution, error) {
	disabled, err := r.sources.Disabled(ctx)
	if err != nil {
		return nil, err
	}
	disabledSet := toSet(disabled)

	var base []string
	if sess.Privileged() {
		base, err = r.sources.All(ctx)
	} else {
		base, err = r.sources.Granted(ctx, sess.UserID())
	}
	if err != nil {
		return nil, err
	}
	baseSet := toSet(base)

	res := &Resolution{}
	candidates := base
	if len(requested) > 0 {
		candidates = requested
	}
	seen := map[string]bool{}
	for _, id := range candidates {
		if seen[id] {
			continue
		}
		seen[id] = true
		switch {
		case disabledSet[id]:
			res.Disabled = append(res.Disabled, id)
		case baseSet[id]:
			res.Allowed = append(res.Allowed, id)
		default:
			res.Denied = append(res.Denied, id)
		}
	}

	sort.Strings(res.Allowed)
	sort.Strings(res.Denied)
	sort.Strings(res.Disabled)
	return res, nil
}

func toSet(ids []string) map[string]bool {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}
