package recordingaccess

import (
	"context"
	"fmt"

	"camrec/internal/api"
	"camrec/internal/recordings"
)

// Session represents a recording access handle and its cleanup function.
type Session struct {
	Access Access
	close  func() error
}

// Close releases resources associated with the session.
func (s Session) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenWithFallback tries the daemon API first, then falls back to direct store
// access. The daemon is considered reachable when its health endpoint answers.
func OpenWithFallback(
	ctx context.Context,
	dial func() *api.Client,
	openStore func() (recordings.Sink, error),
) (Session, error) {
	if dial != nil {
		if client := dial(); client != nil {
			if _, err := client.Health(ctx); err == nil {
				return Session{Access: NewAPIAccess(client)}, nil
			}
		}
	}

	if openStore == nil {
		return Session{}, fmt.Errorf("open recording store: no store opener configured")
	}
	store, err := openStore()
	if err != nil {
		return Session{}, fmt.Errorf("open recording store: %w", err)
	}
	return Session{
		Access: NewStoreAccess(store),
		close:  store.Close,
	}, nil
}
