package seeding

import "testing"

func TestNew(t *testing.T) {
	a := New(42, nil)
	b := New(42, nil)
	for _, c := range components {
		if a.Get(c) != b.Get(c) {
			t.Errorf("new: seed of %v not reproducible", c)
		}
	}

	seen := make(map[uint64]Component)
	for _, c := range components {
		if other, ok := seen[a.Get(c)]; ok {
			t.Errorf("new: %v and %v share a seed", c, other)
		}
		seen[a.Get(c)] = c
	}

	if New(43, nil).Get(Policy) == a.Get(Policy) {
		t.Error("new: different base seeds derived the same seed")
	}
}

func TestDerive(t *testing.T) {
	overrides := map[Component]uint64{Warmup: 11}
	seeds := New(5, overrides)
	derived := seeds.Derive(Agent, overrides)

	if derived.Get(Warmup) != 11 {
		t.Errorf("derive: expected overridden seed 11, got %v",
			derived.Get(Warmup))
	}
	want := New(seeds.Get(Agent), nil)
	if derived.Get(Replay) != want.Get(Replay) {
		t.Error("derive: seed not derived from the seed of the component")
	}
	if derived.Get(Replay) == seeds.Get(Replay) {
		t.Error("derive: derived seed equals the base seed of the component")
	}
}

func TestNewOverrides(t *testing.T) {
	base := New(7, nil)
	seeds := New(7, map[Component]uint64{Replay: 3})

	if seeds.Get(Replay) != 3 {
		t.Errorf("new: expected overridden seed 3, got %v", seeds.Get(Replay))
	}
	if seeds.Get(Policy) != base.Get(Policy) {
		t.Error("new: override changed the seed of another component")
	}
}
