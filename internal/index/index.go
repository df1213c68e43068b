// Package index is a bbolt sidecar to the filename-encoded clip and moment
// caches. It records what was computed, including clips that produced no
// moment, so the on-disk caches do not have to be re-derived to answer
// listings or to skip work.
package index

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/keagan/momentcut/internal/clips"
	"github.com/keagan/momentcut/internal/moments"
	"github.com/keagan/momentcut/pkg/util"
	"go.etcd.io/bbolt"
)

var (
	bucketClips        = []byte("clips")
	bucketComputations = []byte("computations")
)

const sep = "/"

// Index is safe for concurrent use; bbolt serializes writers
type Index struct {
	db *bbolt.DB
}

// Open opens or creates the index at path
func Open(path string) (*Index, error) {
	if err := util.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open index %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketClips, bucketComputations} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Index{db: db}, nil
}

// Close closes the database
func (i *Index) Close() error {
	return i.db.Close()
}

// PutClips records the clip list of a video
func (i *Index) PutClips(videoID string, segs []clips.Segment) error {
	data, err := json.Marshal(segs)
	if err != nil {
		return err
	}
	return i.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketClips).Put([]byte(videoID), data)
	})
}

// Clips returns the recorded clip list of a video, or nil if none
func (i *Index) Clips(videoID string) ([]clips.Segment, error) {
	var segs []clips.Segment
	err := i.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketClips).Get([]byte(videoID))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &segs)
	})
	return segs, err
}

func computationKey(videoID, queryKey, clipID string) []byte {
	return []byte(videoID + sep + queryKey + sep + clipID)
}

// Computation returns the recorded outcome of a query on one clip
func (i *Index) Computation(videoID, queryKey, clipID string) (*moments.Computation, bool, error) {
	var c moments.Computation
	found := false
	err := i.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketComputations).Get(computationKey(videoID, queryKey, clipID))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &c)
	})
	if err != nil || !found {
		return nil, false, err
	}
	return &c, true, nil
}

// PutComputation records the outcome of a query on one clip
func (i *Index) PutComputation(videoID, queryKey, clipID string, c moments.Computation) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return i.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketComputations).Put(computationKey(videoID, queryKey, clipID), data)
	})
}

// Moments lists every recorded moment of a (video, query) in ordinal order
func (i *Index) Moments(videoID, queryKey string) ([]moments.Moment, error) {
	prefix := []byte(videoID + sep + queryKey + sep)

	var out []moments.Moment
	err := i.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketComputations).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var comp moments.Computation
			if err := json.Unmarshal(v, &comp); err != nil {
				return fmt.Errorf("corrupt index entry %q: %w", k, err)
			}
			out = append(out, comp.Moments...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Ordinal < out[b].Ordinal
	})
	return out, nil
}

// Queries lists the sanitized queries evaluated against a video
func (i *Index) Queries(videoID string) ([]string, error) {
	prefix := []byte(videoID + sep)

	var out []string
	err := i.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketComputations).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			rest := strings.TrimPrefix(string(k), string(prefix))
			q, _, ok := strings.Cut(rest, sep)
			if !ok {
				continue
			}
			if n := len(out); n == 0 || out[n-1] != q {
				out = append(out, q)
			}
		}
		return nil
	})
	return out, err
}
