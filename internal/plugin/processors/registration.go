package processors

import (
	"context"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/sliink/relay/internal/openscoring"
	"golang.org/x/sync/singleflight"
)

// scoringTarget is one configuration of the relay: where to score and with
// which PMML document
type scoringTarget struct {
	serviceURL string
	pmml       string
	client     *openscoring.Client
}

// registrationState is a consistent view of the registration at one instant
type registrationState struct {
	generation uint64
	target     scoringTarget
	modelID    string
}

// staleModel is a model left behind by a configuration change
type staleModel struct {
	client  *openscoring.Client
	modelID string
}

// modelRegistration owns the model id cached for the current configuration.
// The generation increments whenever the service URL or PMML changes; a
// registration finishing under an older generation is not cached.
type modelRegistration struct {
	mu         sync.Mutex
	generation uint64
	target     scoringTarget
	configured bool
	modelID    string
	flights    singleflight.Group
}

// setTarget installs a new target. It resets the cached id when the URL or
// PMML differ from the current ones and returns the model that was dropped.
func (r *modelRegistration) setTarget(target scoringTarget) (stale staleModel, reset bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.configured && r.target.serviceURL == target.serviceURL && r.target.pmml == target.pmml {
		// Same model, only transport settings may differ
		r.target.client = target.client
		return staleModel{}, false
	}

	stale = staleModel{client: r.target.client, modelID: r.modelID}
	r.target = target
	r.configured = true
	r.modelID = ""
	r.generation++
	return stale, true
}

// forget drops modelID when it is still the cached id, so the next record
// registers the model again
func (r *modelRegistration) forget(modelID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if modelID == "" || r.modelID != modelID {
		return false
	}
	r.modelID = ""
	r.generation++
	return true
}

func (r *modelRegistration) snapshot() (registrationState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return registrationState{
		generation: r.generation,
		target:     r.target,
		modelID:    r.modelID,
	}, r.configured
}

// ensure returns the model id for state, registering it when none is cached.
// Concurrent callers of the same generation share a single registration.
func (r *modelRegistration) ensure(ctx context.Context, state registrationState, register func(ctx context.Context, id string) error) (string, error) {
	if state.modelID != "" {
		return state.modelID, nil
	}

	key := strconv.FormatUint(state.generation, 10)
	v, err, _ := r.flights.Do(key, func() (interface{}, error) {
		r.mu.Lock()
		if r.generation == state.generation && r.modelID != "" {
			id := r.modelID
			r.mu.Unlock()
			return id, nil
		}
		r.mu.Unlock()

		id := uuid.New().String()
		// The flight is shared by every waiter and bounded by the client timeout
		if err := register(context.WithoutCancel(ctx), id); err != nil {
			return nil, &ModelRegistrationError{ModelID: id, Err: err}
		}

		r.mu.Lock()
		if r.generation == state.generation {
			r.modelID = id
		}
		r.mu.Unlock()
		return id, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
