package db

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"

	"github.com/airenas/chapter-transcriber/internal/domain"
	"github.com/airenas/go-app/pkg/goapp"
)

// ErrNoIdentity indicates an AudioSource with neither identity component.
// Unreachable through the validated constructors, but defended anyway.
var ErrNoIdentity = errors.New("no youtube url or audio file to transcribe")

// Store is the durable mirror of the cache: one record per cache key.
type Store interface {
	Save(ctx context.Context, key string, state *domain.TranscriptionState) error
	LoadAll(ctx context.Context) (map[string][]byte, error)
}

// StateCache maps cache keys to transcription states and writes every update
// through to the durable store. Volumes are tiny, so correctness wins over
// throughput. No eviction: this is a bounded personal-use cache, a known gap.
type StateCache struct {
	store  Store
	states map[string]*domain.TranscriptionState

	lock sync.RWMutex
}

// NewStateCache creates an empty cache over the given store.
func NewStateCache(store Store) *StateCache {
	return &StateCache{store: store, states: make(map[string]*domain.TranscriptionState)}
}

// MakeKey derives the deterministic identity of a (source, quality) pair.
// No audio bytes are hashed: the URL or file basename plus the quality
// suffix is the sole equality mechanism.
func (c *StateCache) MakeKey(source domain.AudioSource) (string, error) {
	id := source.Identity()
	if id == "" {
		return "", ErrNoIdentity
	}
	return id + "_" + source.Quality.Suffix(), nil
}

// Get returns the cached state for key, or nil.
func (c *StateCache) Get(key string) *domain.TranscriptionState {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.states[key]
}

// Put upserts the state under state.Key and writes it to the store
// synchronously.
func (c *StateCache) Put(ctx context.Context, state *domain.TranscriptionState) error {
	c.lock.Lock()
	c.states[state.Key] = state
	c.lock.Unlock()
	return c.store.Save(ctx, state.Key, state)
}

// Load repopulates the in-memory map from the store and reports whether
// anything was loaded. Entries that fail to deserialize, and entries whose
// audio file is gone from disk, are dropped with a log line so one bad
// record never blocks the rest. The audio check is deliberate: a transcript
// without its source audio cannot be re-sliced, so it is not kept.
func (c *StateCache) Load(ctx context.Context) bool {
	raw, err := c.store.LoadAll(ctx)
	if err != nil {
		goapp.Log.Error().Err(err).Msg("can't read state store")
		return false
	}
	loaded := false
	c.lock.Lock()
	defer c.lock.Unlock()
	for key, bs := range raw {
		var state domain.TranscriptionState
		if err := json.Unmarshal(bs, &state); err != nil {
			goapp.Log.Warn().Err(err).Str("key", key).Msg("skip unreadable state entry")
			continue
		}
		if _, err := os.Stat(state.LocalAudioPath); err != nil {
			goapp.Log.Warn().Str("key", key).Str("path", state.LocalAudioPath).Msg("skip state entry, audio file missing")
			continue
		}
		c.states[key] = &state
		loaded = true
	}
	return loaded
}
