package predictor

import (
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"unicode"
)

// CLIP text vocabulary layout
const (
	startToken = 49406
	endToken   = 49407
)

// Tokenize maps a query to fixed-length ids and an attention mask. Words are
// hashed into the vocabulary range below the special tokens, wrapped in
// start/end tokens and zero padded. Long queries are truncated but keep the
// end token.
func Tokenize(query string, length int) (ids, mask []int64) {
	ids = make([]int64, length)
	mask = make([]int64, length)
	if length < 2 {
		return ids, mask
	}

	words := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) > length-2 {
		words = words[:length-2]
	}

	ids[0], mask[0] = startToken, 1
	for i, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		ids[i+1] = int64(h.Sum32()%(startToken-1)) + 1
		mask[i+1] = 1
	}
	n := len(words) + 1
	ids[n], mask[n] = endToken, 1

	return ids, mask
}

// DecodeSpans converts normalized (center, width) spans and per-query
// logits into second-based windows over a feature sequence of the given
// duration, ranked by confidence. Spans are clamped to [0, duration] and
// empty spans are dropped.
func DecodeSpans(spans, logits []float32, duration float64) *Prediction {
	pred := &Prediction{RelevantWindows: [][]float64{}}
	n := len(logits)
	if len(spans)/2 < n {
		n = len(spans) / 2
	}

	for q := 0; q < n; q++ {
		cx, w := float64(spans[2*q]), float64(spans[2*q+1])
		start := clamp((cx-w/2)*duration, 0, duration)
		end := clamp((cx+w/2)*duration, 0, duration)
		if !(end > start) {
			continue
		}
		conf := sigmoid(float64(logits[q]))
		pred.RelevantWindows = append(pred.RelevantWindows, []float64{round4(start), round4(end), round4(conf)})
	}

	sort.SliceStable(pred.RelevantWindows, func(i, j int) bool {
		return pred.RelevantWindows[i][2] > pred.RelevantWindows[j][2]
	})
	return pred
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

// normalize scales an embedding to unit length
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return v
}
