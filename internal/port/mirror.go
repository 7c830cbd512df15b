package port

import "context"

// MirrorSyncer keeps a bare local mirror of a provider repository current.
// Sync clones the mirror on first use and fetches updates afterwards.
// Concurrent syncs of the same repository serialize; different repositories
// sync independently.
type MirrorSyncer interface {
	Sync(ctx context.Context, owner, repo string, private bool) error
}
