package clips

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"
)

type fakeProber struct {
	duration float64
	err      error
	calls    int
}

func (p *fakeProber) ProbeDuration(ctx context.Context, path string) (float64, error) {
	p.calls++
	return p.duration, p.err
}

func TestFixedSegmentationProperties(t *testing.T) {
	for _, d := range []float64{1, 148, 149, 150, 298, 300, 447, 1000, 3601} {
		segs, err := Fixed("v", d, DefaultClipLength)
		if err != nil {
			t.Fatalf("Fixed(%v) failed: %v", d, err)
		}

		n := int(math.Ceil(d / DefaultClipLength))
		if len(segs) != n {
			t.Errorf("D=%v: expected %d segments, got %d", d, n, len(segs))
			continue
		}

		if segs[0].Start != 0 {
			t.Errorf("D=%v: first segment starts at %v", d, segs[0].Start)
		}
		for i := 1; i < len(segs); i++ {
			if segs[i].Start != segs[i-1].End {
				t.Errorf("D=%v: gap or overlap between %d and %d", d, i, i+1)
			}
			if segs[i].Index != i+1 {
				t.Errorf("D=%v: expected index %d, got %d", d, i+1, segs[i].Index)
			}
		}

		last := segs[len(segs)-1]
		if last.End != d {
			t.Errorf("D=%v: last segment ends at %v", d, last.End)
		}
		if want := d - DefaultClipLength*float64(n-1); last.Duration() != want {
			t.Errorf("D=%v: last segment length %v, want %v", d, last.Duration(), want)
		}
	}
}

func TestFixedSegmentation300(t *testing.T) {
	segs, err := Fixed("vid", 300, DefaultClipLength)
	if err != nil {
		t.Fatal(err)
	}
	want := [][2]float64{{0, 149}, {149, 298}, {298, 300}}
	if len(segs) != len(want) {
		t.Fatalf("expected %d segments, got %d", len(want), len(segs))
	}
	for i, w := range want {
		if segs[i].Start != w[0] || segs[i].End != w[1] {
			t.Errorf("segment %d = [%v,%v), want [%v,%v)", i+1, segs[i].Start, segs[i].End, w[0], w[1])
		}
	}
}

func TestFixedSegmentationZeroDuration(t *testing.T) {
	if _, err := Fixed("v", 0, DefaultClipLength); err == nil {
		t.Error("expected error for zero duration")
	}
}

func TestSegmenterUsesWindows(t *testing.T) {
	prober := &fakeProber{duration: 600}
	s := NewSegmenter(zerolog.Nop(), prober, 0)

	windows := []Window{{Start: 30, End: 75}, {Start: 10, End: 20}}
	segs, err := s.Segment(context.Background(), Video{ID: "v", Path: "/x.mp4"}, windows)
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	if prober.calls != 0 {
		t.Errorf("expected no probe when windows are supplied, got %d calls", prober.calls)
	}
	if len(segs) != 2 || segs[0].Start != 30 || segs[1].Index != 2 || segs[1].Start != 10 {
		t.Errorf("expected windows in input order, got %+v", segs)
	}
}

func TestSegmenterInvalidWindow(t *testing.T) {
	s := NewSegmenter(zerolog.Nop(), &fakeProber{duration: 600}, 0)

	for _, w := range []Window{{Start: -1, End: 5}, {Start: 5, End: 5}, {Start: 9, End: 3}, {Start: math.NaN(), End: 3}} {
		_, err := s.Segment(context.Background(), Video{ID: "v"}, []Window{{Start: 0, End: 10}, w})
		if !errors.Is(err, ErrInvalidWindow) {
			t.Errorf("window %+v: expected ErrInvalidWindow, got %v", w, err)
		}
	}
}

func TestSegmenterFallback(t *testing.T) {
	prober := &fakeProber{duration: 300}
	s := NewSegmenter(zerolog.Nop(), prober, 0)

	segs, err := s.Segment(context.Background(), Video{ID: "v", Path: "/x.mp4"}, nil)
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	if len(segs) != 3 {
		t.Fatalf("expected 3 clips, got %d", len(segs))
	}

	prober.err = errors.New("boom")
	if _, err := s.Segment(context.Background(), Video{ID: "v"}, nil); err == nil {
		t.Error("expected probe error to propagate")
	}
}

func TestParseWindow(t *testing.T) {
	tests := []struct {
		in   string
		want Window
	}{
		{"02:29-04:58", Window{Start: 149, End: 298}},
		{"149-298", Window{Start: 149, End: 298}},
		{"0:00:10.5-0:00:20", Window{Start: 10.5, End: 20}},
	}
	for _, tt := range tests {
		got, err := ParseWindow(tt.in)
		if err != nil {
			t.Errorf("ParseWindow(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseWindow(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}

	for _, bad := range []string{"", "149", "20-10", "10-10", "a-b", "1:2:3:4-5"} {
		if _, err := ParseWindow(bad); !errors.Is(err, ErrInvalidWindow) {
			t.Errorf("ParseWindow(%q): expected ErrInvalidWindow, got %v", bad, err)
		}
	}
}
