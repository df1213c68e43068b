package moments

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/keagan/momentcut/internal/clips"
	"github.com/rs/zerolog"
)

type memIndex struct {
	entries map[string]Computation
	puts    int
}

func newMemIndex() *memIndex {
	return &memIndex{entries: map[string]Computation{}}
}

func (m *memIndex) Computation(videoID, queryKey, clipID string) (*Computation, bool, error) {
	c, ok := m.entries[videoID+"/"+queryKey+"/"+clipID]
	if !ok {
		return nil, false, nil
	}
	return &c, true, nil
}

func (m *memIndex) PutComputation(videoID, queryKey, clipID string, c Computation) error {
	m.puts++
	m.entries[videoID+"/"+queryKey+"/"+clipID] = c
	return nil
}

// computeOnce writes one moment file and counts invocations
func computeOnce(calls *int, clip clips.Segment, m *Moment) ComputeFunc {
	return func(ctx context.Context, outDir string) ([]Moment, error) {
		*calls++
		if m == nil {
			return nil, nil
		}
		if err := os.MkdirAll(outDir, 0755); err != nil {
			return nil, err
		}
		out := *m
		out.ClipID = clip.ID()
		out.Path = filepath.Join(outDir, out.FileName())
		return []Moment{out}, os.WriteFile(out.Path, []byte("moment"), 0644)
	}
}

func TestStoreReusesMomentFiles(t *testing.T) {
	store := NewStore(zerolog.Nop(), t.TempDir())
	clip := secondClip()
	m := &Moment{VideoID: "abc", Ordinal: 1, Start: 159, End: 169, Confidence: 0.9}

	calls := 0
	first, err := store.GetOrCompute(context.Background(), "abc", "Explosion", clip, computeOnce(&calls, clip, m))
	if err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	second, err := store.GetOrCompute(context.Background(), "abc", "explosion", clip, computeOnce(&calls, clip, m))
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}

	if calls != 1 {
		t.Errorf("expected compute once, got %d", calls)
	}
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("expected one moment each, got %d and %d", len(first), len(second))
	}
	if first[0].Path != second[0].Path || second[0].ClipID != clip.ID() {
		t.Errorf("cached moment mismatch: %+v vs %+v", first[0], second[0])
	}
	if second[0].Start != 159 || second[0].End != 169 || second[0].Confidence != 0.9 {
		t.Errorf("unexpected cached values %+v", second[0])
	}
}

func TestStoreNegativeCache(t *testing.T) {
	idx := newMemIndex()
	store := NewStore(zerolog.Nop(), t.TempDir()).WithIndex(idx)
	clip := secondClip()

	calls := 0
	for i := 0; i < 3; i++ {
		got, err := store.GetOrCompute(context.Background(), "abc", "explosion", clip, computeOnce(&calls, clip, nil))
		if err != nil {
			t.Fatalf("call %d failed: %v", i, err)
		}
		if len(got) != 0 {
			t.Fatalf("expected no moments, got %v", got)
		}
	}

	if calls != 1 {
		t.Errorf("clip without moment should be evaluated once, got %d", calls)
	}
	if idx.puts != 1 {
		t.Errorf("expected one index write, got %d", idx.puts)
	}
}

func TestStoreRecomputesWhenFilesMissing(t *testing.T) {
	idx := newMemIndex()
	store := NewStore(zerolog.Nop(), t.TempDir()).WithIndex(idx)
	clip := secondClip()
	m := &Moment{VideoID: "abc", Ordinal: 1, Start: 159, End: 169, Confidence: 0.9}

	calls := 0
	first, err := store.GetOrCompute(context.Background(), "abc", "explosion", clip, computeOnce(&calls, clip, m))
	if err != nil {
		t.Fatal(err)
	}
	os.Remove(first[0].Path)

	if _, err := store.GetOrCompute(context.Background(), "abc", "explosion", clip, computeOnce(&calls, clip, m)); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("deleted moment should be recomputed, compute calls = %d", calls)
	}
}

func TestStoreSkipsUnparsableFiles(t *testing.T) {
	store := NewStore(zerolog.Nop(), t.TempDir())
	clip := secondClip()
	dir := store.Dir("abc", "explosion", clip.ID())
	os.MkdirAll(dir, 0755)

	for _, name := range []string{
		"garbage.mp4",
		"video_abc_moment_001_10.0s_to_20.0s_conf_0.90.mp4", // outside clip 2
		"video_xyz_moment_001_159.0s_to_169.0s_conf_0.90.mp4",
		"video_abc_moment_002_200.0s_to_210.0s_conf_0.80.mp4",
	} {
		os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644)
	}

	got, err := store.Cached("abc", "explosion", clip)
	if err != nil {
		t.Fatalf("Cached failed: %v", err)
	}
	if len(got) != 1 || got[0].Ordinal != 2 {
		t.Errorf("expected only the valid moment, got %+v", got)
	}
}

func TestStoreComputeErrorNotRecorded(t *testing.T) {
	idx := newMemIndex()
	store := NewStore(zerolog.Nop(), t.TempDir()).WithIndex(idx)

	boom := errors.New("predict failed")
	_, err := store.GetOrCompute(context.Background(), "abc", "q", secondClip(), func(ctx context.Context, outDir string) ([]Moment, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("expected compute error, got %v", err)
	}
	if idx.puts != 0 {
		t.Error("failed computation must not be recorded")
	}
}

func TestStoreDir(t *testing.T) {
	store := NewStore(zerolog.Nop(), "/data/yt_moments")
	want := filepath.Join("/data/yt_moments", "video_abc", "a_man_cooking", "abc_clip_001_0.0s_to_149.0s")
	if got := store.Dir("abc", "A man cooking", "abc_clip_001_0.0s_to_149.0s"); got != want {
		t.Errorf("Dir() = %q, want %q", got, want)
	}
}

func TestStoreLastOrdinal(t *testing.T) {
	store := NewStore(zerolog.Nop(), t.TempDir())
	first := clips.Segment{VideoID: "abc", Index: 1, Start: 0, End: 149}
	second := secondClip()

	calls := 0
	ctx := context.Background()
	if _, err := store.GetOrCompute(ctx, "abc", "dog", first, computeOnce(&calls, first, &Moment{VideoID: "abc", Ordinal: 3, Start: 5, End: 10, Confidence: 0.8})); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetOrCompute(ctx, "abc", "dog", second, computeOnce(&calls, second, &Moment{VideoID: "abc", Ordinal: 1, Start: 159, End: 169, Confidence: 0.9})); err != nil {
		t.Fatal(err)
	}

	segs := []clips.Segment{first, second}
	if got := store.LastOrdinal("abc", "dog", segs); got != 3 {
		t.Errorf("LastOrdinal() = %d, want 3", got)
	}
	if got := store.LastOrdinal("abc", "cat", segs); got != 0 {
		t.Errorf("LastOrdinal() for an unseen query = %d, want 0", got)
	}
}
