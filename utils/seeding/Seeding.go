// Package seeding derives the seeds of the random components of an
// experiment from a single base seed
package seeding

import "golang.org/x/exp/rand"

// Component names a consumer of random numbers
type Component string

const (
	Environment Component = "Environment"
	Agent       Component = "Agent"
	Replay      Component = "Replay"
	Explorer    Component = "Explorer"
	Policy      Component = "Policy"
	Warmup      Component = "Warmup"
	Evaluation  Component = "Evaluation"
)

// components lists every Component in the order in which seeds are
// drawn. New Components must be appended so that previously derived
// seeds do not change.
var components = []Component{
	Environment,
	Agent,
	Replay,
	Explorer,
	Policy,
	Warmup,
	Evaluation,
}

// Seeds maps each Component to its seed
type Seeds map[Component]uint64

// New derives a seed for each Component from base. Components with an
// override use the override instead of the derived seed.
func New(base uint64, overrides map[Component]uint64) Seeds {
	rng := rand.New(rand.NewSource(base))

	seeds := make(Seeds, len(components))
	for _, c := range components {
		seeds[c] = rng.Uint64()
	}
	for c, seed := range overrides {
		seeds[c] = seed
	}
	return seeds
}

// Get returns the seed of a Component
func (s Seeds) Get(c Component) uint64 {
	return s[c]
}

// Derive returns the Seeds of a nested consumer, such as the random
// components of an agent, using the seed of c as the base seed.
// Overrides take precedence over the derived seeds, so that an override
// of Replay given to an experiment reaches the replay buffer of its
// agent.
func (s Seeds) Derive(c Component, overrides map[Component]uint64) Seeds {
	return New(s.Get(c), overrides)
}
