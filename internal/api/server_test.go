package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/keagan/momentcut/internal/clips"
	"github.com/keagan/momentcut/internal/download"
	"github.com/keagan/momentcut/internal/moments"
	"github.com/keagan/momentcut/internal/pipeline"
	"github.com/rs/zerolog"
)

type fakeService struct {
	videos     []clips.Video
	downloaded string
	quality    string
	queries    []string
	strict     bool
}

func (f *fakeService) Videos() ([]clips.Video, error) {
	return f.videos, nil
}

func (f *fakeService) Download(ctx context.Context, rawURL, quality string) (*clips.Video, error) {
	f.downloaded, f.quality = rawURL, quality
	id, err := download.VideoID(rawURL)
	if err != nil {
		return nil, err
	}
	return &clips.Video{ID: id, Path: "/data/yt_downloads/" + id + ".mp4"}, nil
}

func (f *fakeService) find(id string) error {
	for _, v := range f.videos {
		if v.ID == id {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", download.ErrNotFound, id)
}

func (f *fakeService) Clips(ctx context.Context, videoID string) ([]clips.Segment, error) {
	if err := f.find(videoID); err != nil {
		return nil, err
	}
	return clips.Fixed(videoID, 300, clips.DefaultClipLength)
}

func (f *fakeService) Query(ctx context.Context, videoID, query string, opts pipeline.QueryOptions) (*pipeline.Result, error) {
	if err := f.find(videoID); err != nil {
		return nil, err
	}
	f.queries = append(f.queries, query)
	f.strict = opts.Strict
	return &pipeline.Result{
		RunID:   "run-1",
		VideoID: videoID,
		Query:   query,
		Moments: []moments.Moment{{VideoID: videoID, Ordinal: 1, Start: 159, End: 169, Confidence: 0.9}},
		Clips:   3,
	}, nil
}

func (f *fakeService) Moments(videoID, query string) ([]moments.Moment, error) {
	return []moments.Moment{}, nil
}

func (f *fakeService) Queries(videoID string) ([]string, error) {
	if videoID != "dQw4w9WgXcQ" {
		return nil, nil
	}
	return []string{"a_dog", "explosion"}, nil
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func do(t *testing.T, s *Server, method, path, body string) (int, envelope) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.App().Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	data, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("%s %s: invalid JSON %q", method, path, data)
	}
	return resp.StatusCode, env
}

func newTestServer() (*Server, *fakeService) {
	svc := &fakeService{videos: []clips.Video{{ID: "dQw4w9WgXcQ", Path: "/data/yt_downloads/dQw4w9WgXcQ.mp4"}}}
	return NewServer(zerolog.Nop(), svc), svc
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := s.App().Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("expected a request id header")
	}
}

func TestListVideos(t *testing.T) {
	s, _ := newTestServer()
	code, env := do(t, s, http.MethodGet, "/api/v1/videos", "")
	if code != http.StatusOK || env.Status != "success" {
		t.Fatalf("unexpected response %d %+v", code, env)
	}

	var videos []clips.Video
	json.Unmarshal(env.Data, &videos)
	if len(videos) != 1 || videos[0].ID != "dQw4w9WgXcQ" {
		t.Errorf("unexpected videos %+v", videos)
	}
}

func TestDownloadValidation(t *testing.T) {
	s, svc := newTestServer()

	tests := []struct {
		body string
		code int
	}{
		{`{"url": "https://youtu.be/dQw4w9WgXcQ", "quality": "720p"}`, http.StatusCreated},
		{`{"url": "https://youtu.be/dQw4w9WgXcQ"}`, http.StatusCreated},
		{`{"quality": "best"}`, http.StatusBadRequest},
		{`{"url": "not a url"}`, http.StatusBadRequest},
		{`{"url": "https://youtu.be/dQw4w9WgXcQ", "quality": "ultra"}`, http.StatusBadRequest},
		{`{"url": "https://vimeo.com/1"}`, http.StatusBadGateway},
		{`{broken`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		code, env := do(t, s, http.MethodPost, "/api/v1/videos", tt.body)
		if code != tt.code {
			t.Errorf("body %s: status %d, want %d (%s)", tt.body, code, tt.code, env.Message)
		}
	}

	// the last request reaching the service was the vimeo one
	if svc.quality != "" || svc.downloaded != "https://vimeo.com/1" {
		t.Errorf("unexpected last download %q %q", svc.downloaded, svc.quality)
	}

	_, env := do(t, s, http.MethodPost, "/api/v1/videos", `{"quality": "best"}`)
	if !strings.Contains(env.Message, "Field 'URL' failed on the 'required' tag") {
		t.Errorf("unexpected validation message %q", env.Message)
	}
}

func TestListClips(t *testing.T) {
	s, _ := newTestServer()

	code, env := do(t, s, http.MethodGet, "/api/v1/videos/dQw4w9WgXcQ/clips", "")
	if code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", code, env.Message)
	}
	var segs []clips.Segment
	json.Unmarshal(env.Data, &segs)
	if len(segs) != 3 || segs[2].End != 300 {
		t.Errorf("unexpected clips %+v", segs)
	}

	code, env = do(t, s, http.MethodGet, "/api/v1/videos/unknown/clips", "")
	if code != http.StatusNotFound || env.Status != "error" {
		t.Errorf("expected 404 error envelope, got %d %+v", code, env)
	}
}

func TestQueryMoments(t *testing.T) {
	s, svc := newTestServer()

	code, env := do(t, s, http.MethodPost, "/api/v1/videos/dQw4w9WgXcQ/moments", `{"query": "  explosion ", "strict": true}`)
	if code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", code, env.Message)
	}
	var result pipeline.Result
	json.Unmarshal(env.Data, &result)
	if len(result.Moments) != 1 || result.Moments[0].Start != 159 {
		t.Errorf("unexpected result %+v", result)
	}
	if len(svc.queries) != 1 || svc.queries[0] != "explosion" || !svc.strict {
		t.Errorf("query not forwarded as expected: %v strict=%v", svc.queries, svc.strict)
	}

	code, _ = do(t, s, http.MethodPost, "/api/v1/videos/dQw4w9WgXcQ/moments", `{"query": "   "}`)
	if code != http.StatusBadRequest {
		t.Errorf("blank query should be rejected, got %d", code)
	}

	long := strings.Repeat("x", 201)
	code, _ = do(t, s, http.MethodPost, "/api/v1/videos/dQw4w9WgXcQ/moments", `{"query": "`+long+`"}`)
	if code != http.StatusBadRequest || len(svc.queries) != 1 {
		t.Errorf("overlong query should be rejected before running, got %d", code)
	}

	code, _ = do(t, s, http.MethodGet, "/api/v1/videos/dQw4w9WgXcQ/moments", "")
	if code != http.StatusBadRequest {
		t.Errorf("listing without query should be rejected, got %d", code)
	}
	code, _ = do(t, s, http.MethodGet, "/api/v1/videos/dQw4w9WgXcQ/moments?query=explosion", "")
	if code != http.StatusOK {
		t.Errorf("listing moments failed with %d", code)
	}
}

func TestListQueries(t *testing.T) {
	s, _ := newTestServer()

	code, env := do(t, s, http.MethodGet, "/api/v1/videos/dQw4w9WgXcQ/queries", "")
	if code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", code, env.Message)
	}
	var qs []string
	json.Unmarshal(env.Data, &qs)
	if len(qs) != 2 || qs[1] != "explosion" {
		t.Errorf("unexpected queries %v", qs)
	}

	code, env = do(t, s, http.MethodGet, "/api/v1/videos/other/queries", "")
	if code != http.StatusOK || string(env.Data) != "[]" {
		t.Errorf("expected an empty list, got %d %s", code, env.Data)
	}
}

func TestUnknownRoute(t *testing.T) {
	s, _ := newTestServer()
	code, env := do(t, s, http.MethodGet, "/api/v1/nope", "")
	if code != http.StatusNotFound || env.Status != "error" {
		t.Errorf("expected 404 error envelope, got %d %+v", code, env)
	}
}
