// Package manifest defines the action-manifest data model and its assembly.
//
// A Manifest is the single declarative artifact describing an app's
// invocable actions, the entities their parameters reference, and any
// per-module error handlers. It is consumed by the dispatch backend, so
// its wire field names are a compatibility contract: they must not change
// unless Version changes.
package manifest

// Version identifies the manifest schema produced by this build of the
// generator. It is constant per build and independent of input.
const Version = "0.1"

// Parameter is a typed action parameter. EntityType references an
// Entity.ID; it does not own the entity.
type Parameter struct {
	Name       string `json:"Name"`
	EntityType string `json:"EntityType"`
}

// Action is a named invocable operation with typed parameters, destined
// for backend dispatch. Actions are never pruned or deduplicated.
type Action struct {
	Name       string      `json:"Name"`
	Parameters []Parameter `json:"Parameters,omitempty"`
}

// Entity is a named parameter-type domain referenced by actions.
// ID is the identifier actions reference through Parameter.EntityType;
// the remaining fields are miner-supplied descriptive metadata.
type Entity struct {
	ID     string   `json:"ID"`
	Name   string   `json:"Name,omitempty"`
	Values []string `json:"Values,omitempty"`
}

// ErrorHandler is an opaque, miner-supplied record describing how mining
// or dispatch failures for a module should be reported. It is passed
// through to the manifest unmodified.
type ErrorHandler map[string]interface{}

// Manifest is the serialized artifact published to the dispatch backend.
type Manifest struct {
	ID            string         `json:"ID"`
	Version       string         `json:"Version"`
	Domain        string         `json:"Domain"`
	Entities      []Entity       `json:"Entities"`
	Actions       []Action       `json:"Actions"`
	ErrorHandlers []ErrorHandler `json:"ErrorHandlers"`
}

// Build assembles a Manifest from the given sequences, stamping the fixed
// Version. Pure assembly: no I/O, no filtering. Nil sequences become empty
// ones so the wire form always carries arrays, never null.
func Build(entities []Entity, actions []Action, handlers []ErrorHandler, domain, id string) Manifest {
	if entities == nil {
		entities = []Entity{}
	}
	if actions == nil {
		actions = []Action{}
	}
	if handlers == nil {
		handlers = []ErrorHandler{}
	}
	return Manifest{
		ID:            id,
		Version:       Version,
		Domain:        domain,
		Entities:      entities,
		Actions:       actions,
		ErrorHandlers: handlers,
	}
}
