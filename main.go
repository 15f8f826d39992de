package schemavc

import (
	"github.com/avendley/schemavc/catalog"
	"github.com/avendley/schemavc/core"
	"github.com/avendley/schemavc/engine"
	"github.com/avendley/schemavc/track"
	"github.com/avendley/schemavc/vcs"
)

type Instance struct {
	Persistence *vcs.Persistence
	Tracker     *track.Tracker
	Provider    catalog.Provider
}

// Open wraps a persistence layer in an instance with a fresh tracker
// and an in-memory catalog provider.
func Open(persistence *vcs.Persistence) *Instance {
	return OpenWithProvider(persistence, catalog.NewMemory())
}

// OpenWithProvider wraps a persistence layer and a live catalog
// provider.
func OpenWithProvider(persistence *vcs.Persistence, provider catalog.Provider) *Instance {
	return &Instance{
		Persistence: persistence,
		Tracker:     track.NewTracker(persistence),
		Provider:    provider,
	}
}

// Engine returns an engine acting as the given identity. Engines share
// the instance's tracker and stores.
func (instance *Instance) Engine(identity core.Identity) *engine.Engine {
	return engine.NewEngine(instance.Persistence, instance.Tracker, instance.Provider, identity)
}
