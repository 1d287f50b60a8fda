package recordingaccess

import (
	"context"
	"errors"

	"camrec/internal/api"
	"camrec/internal/recordings"
)

// Access provides recording queries regardless of daemon API or direct store backing.
type Access interface {
	List(ctx context.Context, date string) ([]api.Recording, error)
	// Describe returns nil without error when id is unknown.
	Describe(ctx context.Context, id int64) (*api.Recording, error)
	// Source names the backing, "daemon" or "store".
	Source() string
}

// NewAPIAccess returns an Access backed by the daemon HTTP API.
func NewAPIAccess(client *api.Client) Access {
	return &apiAccess{client: client}
}

// NewStoreAccess returns an Access backed by direct database access.
func NewStoreAccess(store recordings.Sink) Access {
	return &storeAccess{store: store}
}

type apiAccess struct {
	client *api.Client
}

func (a *apiAccess) List(ctx context.Context, date string) ([]api.Recording, error) {
	return a.client.ListRecordings(ctx, date)
}

func (a *apiAccess) Describe(ctx context.Context, id int64) (*api.Recording, error) {
	rec, err := a.client.GetRecording(ctx, id)
	if errors.Is(err, api.ErrNotFound) {
		return nil, nil
	}
	return rec, err
}

func (a *apiAccess) Source() string { return "daemon" }

type storeAccess struct {
	store recordings.Sink
}

func (a *storeAccess) List(ctx context.Context, date string) ([]api.Recording, error) {
	recs, err := a.store.ListByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	return api.FromRecords(recs), nil
}

func (a *storeAccess) Describe(ctx context.Context, id int64) (*api.Recording, error) {
	rec, err := a.store.Get(ctx, id)
	if err != nil || rec == nil {
		return nil, err
	}
	out := api.FromRecord(*rec)
	return &out, nil
}

func (a *storeAccess) Source() string { return "store" }
