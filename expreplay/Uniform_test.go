package expreplay

import (
	"path/filepath"
	"testing"

	ts "github.com/hisaki/rlrl/timestep"
	"gonum.org/v1/gonum/mat"
)

func transition(i float64, reset bool) ts.Transition {
	return ts.Transition{
		State:     mat.NewVecDense(2, []float64{i, i}),
		Action:    mat.NewVecDense(1, []float64{-i}),
		Reward:    i,
		NextState: mat.NewVecDense(2, []float64{i + 1, i + 1}),
		Terminal:  reset,
		Reset:     reset,
	}
}

func TestUniformAppendEvictsOldest(t *testing.T) {
	u, err := NewUniform(3, 2, 1, 1)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 5; i++ {
		if err := u.Append(transition(float64(i), false), 0); err != nil {
			t.Fatal(err)
		}
	}

	if u.Len() != 3 {
		t.Fatalf("len: expected 3, got %v", u.Len())
	}
	if c, bounded := u.Capacity(); c != 3 || !bounded {
		t.Errorf("capacity: expected (3, true), got (%v, %v)", c, bounded)
	}

	b, err := u.Sample(3)
	if err != nil {
		t.Fatal(err)
	}

	seen := make(map[float64]bool)
	for j := 0; j < b.Size; j++ {
		r := b.Reward[j]
		if r < 2 {
			t.Errorf("sample: evicted transition %v was sampled", r)
		}
		if seen[r] {
			t.Errorf("sample: transition %v sampled twice", r)
		}
		seen[r] = true

		if b.State[j*2] != r || b.Action[j] != -r || b.NextState[j*2] != r+1 {
			t.Errorf("sample: transition %v has mismatched data", r)
		}
	}
}

func TestUniformUnbounded(t *testing.T) {
	u, err := NewUniform(0, 2, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 100; i++ {
		if err := u.Append(transition(float64(i), false), 0); err != nil {
			t.Fatal(err)
		}
	}
	if u.Len() != 100 {
		t.Errorf("len: expected 100, got %v", u.Len())
	}
	if _, bounded := u.Capacity(); bounded {
		t.Error("capacity: expected unbounded buffer")
	}
}

func TestUniformSampleSeeded(t *testing.T) {
	sample := func(seed uint64) []float64 {
		u, err := NewUniform(20, 2, 1, seed)
		if err != nil {
			t.Fatal(err)
		}
		for i := 0; i < 20; i++ {
			if err := u.Append(transition(float64(i), false), 0); err != nil {
				t.Fatal(err)
			}
		}

		var rewards []float64
		for i := 0; i < 5; i++ {
			b, err := u.Sample(4)
			if err != nil {
				t.Fatal(err)
			}
			if b.Size != 4 || len(b.Reward) != 4 || len(b.State) != 8 {
				t.Fatalf("sample: expected 4 transitions, got %v", b.Size)
			}
			rewards = append(rewards, b.Reward...)
		}
		return rewards
	}

	first, second, other := sample(3), sample(3), sample(4)
	differ := false
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("sample: same seed gave different samples %v and %v",
				first, second)
		}
		if first[i] != other[i] {
			differ = true
		}
	}
	if !differ {
		t.Error("sample: different seeds gave identical samples")
	}
}

func TestUniformSampleErrors(t *testing.T) {
	u, err := NewUniform(10, 2, 1, 1)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := u.Sample(1); !IsEmptyBuffer(err) {
		t.Errorf("sample: expected empty buffer error, got %v", err)
	}

	if err := u.Append(transition(0, false), 0); err != nil {
		t.Fatal(err)
	}
	if _, err := u.Sample(2); !IsInsufficientSamples(err) {
		t.Errorf("sample: expected insufficient samples error, got %v", err)
	}

	bad := transition(0, false)
	bad.Action = mat.NewVecDense(2, nil)
	if err := u.Append(bad, 0); err == nil {
		t.Error("append: expected error on action dimension mismatch")
	}
}

func TestUniformEpisodeStart(t *testing.T) {
	u, err := NewUniform(10, 2, 1, 1)
	if err != nil {
		t.Fatal(err)
	}

	// Rewards index the transitions so that sampled batches can be
	// matched back to their appends
	appends := []struct {
		reward float64
		reset  bool
		envID  int
		stop   bool
		start  bool
	}{
		{0, false, 0, false, true},
		{1, false, 1, false, true},
		{2, true, 0, false, false},
		{3, false, 0, false, true},
		{4, false, 1, true, false},
		{5, false, 1, false, true},
	}

	for _, a := range appends {
		if err := u.Append(transition(a.reward, a.reset), a.envID); err != nil {
			t.Fatal(err)
		}
		if a.stop {
			u.StopCurrentEpisode(a.envID)
		}
	}

	b, err := u.Sample(len(appends))
	if err != nil {
		t.Fatal(err)
	}
	for j := 0; j < b.Size; j++ {
		a := appends[int(b.Reward[j])]
		if b.EpisodeStart[j] != a.start {
			t.Errorf("episodeStart: transition %v: expected %v, got %v",
				a.reward, a.start, b.EpisodeStart[j])
		}
		if b.EnvID[j] != a.envID {
			t.Errorf("envID: transition %v: expected %v, got %v", a.reward,
				a.envID, b.EnvID[j])
		}
	}
}

func TestNotTerminal(t *testing.T) {
	b := Batch{Size: 3, Terminal: []bool{false, true, false}}
	mask := b.NotTerminal()
	want := []float64{1, 0, 1}
	for i := range want {
		if mask[i] != want[i] {
			t.Errorf("notTerminal: expected %v, got %v", want, mask)
			break
		}
	}
}

func TestUniformSaveLoad(t *testing.T) {
	u, err := NewUniform(4, 2, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 6; i++ {
		if err := u.Append(transition(float64(i), i == 3), 0); err != nil {
			t.Fatal(err)
		}
	}

	filename := filepath.Join(t.TempDir(), "buffer.bin")
	if err := u.Save(filename); err != nil {
		t.Fatal(err)
	}

	loaded, err := NewUniform(100, 2, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := loaded.Load(filename); err != nil {
		t.Fatal(err)
	}

	if loaded.Len() != 4 {
		t.Errorf("load: expected 4 transitions, got %v", loaded.Len())
	}
	if c, _ := loaded.Capacity(); c != 4 {
		t.Errorf("load: expected capacity 4, got %v", c)
	}

	// The ring position is restored, so the next append evicts the
	// oldest remaining transition
	if err := loaded.Append(transition(6, false), 0); err != nil {
		t.Fatal(err)
	}
	b, err := loaded.Sample(4)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range b.Reward {
		if r == 2 {
			t.Error("load: oldest transition was not evicted")
		}
	}

	wrongShape, err := NewUniform(4, 3, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := wrongShape.Load(filename); err == nil {
		t.Error("load: expected error on shape mismatch")
	}
}
