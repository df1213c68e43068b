package predictor

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/keagan/momentcut/internal/ffmpeg"
	"github.com/nfnt/resize"
	"github.com/rs/zerolog"
	ort "github.com/yalue/onnxruntime_go"
)

const imageSize = 224

// CLIP normalization constants
var (
	clipMean = [3]float32{0.48145466, 0.4578275, 0.40821073}
	clipStd  = [3]float32{0.26862954, 0.26130258, 0.27577711}
)

// FrameSampler extracts evenly spaced frames from a clip
type FrameSampler interface {
	ExtractFrames(ctx context.Context, input, outDir string, opts ffmpeg.FrameOptions) ([]string, error)
}

// ONNXOptions locates the exported models and fixes their tensor shapes
type ONNXOptions struct {
	// Shared onnxruntime library; empty uses the platform default
	LibraryPath  string
	ImageEncoder string
	MomentHead   string
	// Seconds between sampled frames, one feature vector per frame
	FrameInterval float64
	EmbedDim      int
	NumQueries    int
	MaxFrames     int
	QueryLen      int
	TempDir       string
}

// ONNXPredictor runs a CLIP image encoder per sampled frame and a DETR-style
// moment head over the frame features and the tokenized query.
//
// Image encoder: pixel_values float32[1,3,224,224] -> image_embeds float32[1,D]
// Moment head:   video_feats float32[1,T,D], video_mask float32[1,T],
//
//	query_ids int64[1,L], query_mask int64[1,L]
//	-> pred_spans float32[1,Q,2] (normalized center, width), pred_logits float32[1,Q]
type ONNXPredictor struct {
	logger  zerolog.Logger
	sampler FrameSampler
	opts    ONNXOptions
	encoder *ort.DynamicAdvancedSession
	head    *ort.DynamicAdvancedSession
}

// NewONNXPredictor loads both sessions
func NewONNXPredictor(logger zerolog.Logger, sampler FrameSampler, opts ONNXOptions) (*ONNXPredictor, error) {
	for _, p := range []string{opts.ImageEncoder, opts.MomentHead} {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("model file not found: %s", p)
		}
	}
	if opts.FrameInterval <= 0 || opts.EmbedDim <= 0 || opts.NumQueries <= 0 || opts.QueryLen <= 0 {
		return nil, fmt.Errorf("invalid onnx predictor shape options: %+v", opts)
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}

	if opts.LibraryPath != "" {
		ort.SetSharedLibraryPath(opts.LibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
	}

	encoder, err := ort.NewDynamicAdvancedSession(opts.ImageEncoder,
		[]string{"pixel_values"}, []string{"image_embeds"}, nil)
	if err != nil {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create image encoder session: %w", err)
	}

	head, err := ort.NewDynamicAdvancedSession(opts.MomentHead,
		[]string{"video_feats", "video_mask", "query_ids", "query_mask"},
		[]string{"pred_spans", "pred_logits"}, nil)
	if err != nil {
		encoder.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create moment head session: %w", err)
	}

	logger.Info().
		Str("image_encoder", opts.ImageEncoder).
		Str("moment_head", opts.MomentHead).
		Int("embed_dim", opts.EmbedDim).
		Int("num_queries", opts.NumQueries).
		Msg("ONNX moment retrieval models loaded")

	return &ONNXPredictor{
		logger:  logger.With().Str("component", "predictor").Str("backend", "onnx").Logger(),
		sampler: sampler,
		opts:    opts,
		encoder: encoder,
		head:    head,
	}, nil
}

type frameFeatures struct {
	data     []float32 // T*D, row-major
	frames   int
	duration float64
}

func (f *frameFeatures) Release() error {
	f.data = nil
	return nil
}

// Encode samples frames from the clip and embeds each one
func (o *ONNXPredictor) Encode(ctx context.Context, clipPath string) (Features, error) {
	dir, err := os.MkdirTemp(o.opts.TempDir, "frames_*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	frames, err := o.sampler.ExtractFrames(ctx, clipPath, dir, ffmpeg.FrameOptions{
		Interval:  o.opts.FrameInterval,
		Width:     imageSize,
		Height:    imageSize,
		MaxFrames: o.opts.MaxFrames,
	})
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames sampled from %s", clipPath)
	}

	dim := o.opts.EmbedDim
	feats := &frameFeatures{
		data:     make([]float32, 0, len(frames)*dim),
		frames:   len(frames),
		duration: float64(len(frames)) * o.opts.FrameInterval,
	}

	for _, frame := range frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		emb, err := o.embedFrame(frame)
		if err != nil {
			return nil, fmt.Errorf("failed to embed %s: %w", frame, err)
		}
		feats.data = append(feats.data, emb...)
	}

	o.logger.Debug().
		Str("clip", clipPath).
		Int("frames", feats.frames).
		Msg("clip encoded")

	return feats, nil
}

func (o *ONNXPredictor) embedFrame(path string) ([]float32, error) {
	pixels, err := preprocessImage(path)
	if err != nil {
		return nil, err
	}

	pixelTensor, err := ort.NewTensor(ort.NewShape(1, 3, imageSize, imageSize), pixels)
	if err != nil {
		return nil, fmt.Errorf("failed to create pixel tensor: %w", err)
	}
	defer pixelTensor.Destroy()

	embTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(o.opts.EmbedDim)))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding tensor: %w", err)
	}
	defer embTensor.Destroy()

	if err := o.encoder.Run([]ort.ArbitraryTensor{pixelTensor}, []ort.ArbitraryTensor{embTensor}); err != nil {
		return nil, fmt.Errorf("image encoder inference failed: %w", err)
	}

	return normalize(append([]float32(nil), embTensor.GetData()...)), nil
}

// Predict scores the query against encoded frames
func (o *ONNXPredictor) Predict(ctx context.Context, query string, features Features) (*Prediction, error) {
	ff, ok := features.(*frameFeatures)
	if !ok || ff.data == nil {
		return nil, fmt.Errorf("features were not produced by the onnx predictor or were released")
	}

	t, d, q, l := int64(ff.frames), int64(o.opts.EmbedDim), int64(o.opts.NumQueries), int64(o.opts.QueryLen)

	featsTensor, err := ort.NewTensor(ort.NewShape(1, t, d), ff.data)
	if err != nil {
		return nil, fmt.Errorf("failed to create video_feats tensor: %w", err)
	}
	defer featsTensor.Destroy()

	mask := make([]float32, ff.frames)
	for i := range mask {
		mask[i] = 1
	}
	maskTensor, err := ort.NewTensor(ort.NewShape(1, t), mask)
	if err != nil {
		return nil, fmt.Errorf("failed to create video_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()

	ids, attn := Tokenize(query, o.opts.QueryLen)
	idsTensor, err := ort.NewTensor(ort.NewShape(1, l), ids)
	if err != nil {
		return nil, fmt.Errorf("failed to create query_ids tensor: %w", err)
	}
	defer idsTensor.Destroy()

	attnTensor, err := ort.NewTensor(ort.NewShape(1, l), attn)
	if err != nil {
		return nil, fmt.Errorf("failed to create query_mask tensor: %w", err)
	}
	defer attnTensor.Destroy()

	spansTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, q, 2))
	if err != nil {
		return nil, fmt.Errorf("failed to create pred_spans tensor: %w", err)
	}
	defer spansTensor.Destroy()

	logitsTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, q))
	if err != nil {
		return nil, fmt.Errorf("failed to create pred_logits tensor: %w", err)
	}
	defer logitsTensor.Destroy()

	inputs := []ort.ArbitraryTensor{featsTensor, maskTensor, idsTensor, attnTensor}
	outputs := []ort.ArbitraryTensor{spansTensor, logitsTensor}
	if err := o.head.Run(inputs, outputs); err != nil {
		return nil, fmt.Errorf("moment head inference failed: %w", err)
	}

	pred := DecodeSpans(spansTensor.GetData(), logitsTensor.GetData(), ff.duration)

	o.logger.Debug().
		Str("query", query).
		Int("windows", len(pred.RelevantWindows)).
		Msg("moment head complete")

	return pred, nil
}

// Close releases both sessions and the ONNX environment
func (o *ONNXPredictor) Close() error {
	o.logger.Info().Msg("closing ONNX sessions")
	if o.encoder != nil {
		if err := o.encoder.Destroy(); err != nil {
			return err
		}
	}
	if o.head != nil {
		if err := o.head.Destroy(); err != nil {
			return err
		}
	}
	return ort.DestroyEnvironment()
}

// preprocessImage -> pixel_values (float32[1,3,224,224]) with CLIP normalization.
func preprocessImage(imagePath string) ([]float32, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}

	return pixelValues(resize.Resize(imageSize, imageSize, img, resize.Bilinear)), nil
}

// pixelValues lays out an image channel-first with CLIP normalization
func pixelValues(img image.Image) []float32 {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	data := make([]float32, 3*w*h)

	plane := w * h
	idx := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			for ch, v := range [3]uint32{r, g, b} {
				px := float32(v>>8) / 255.0
				data[ch*plane+idx] = (px - clipMean[ch]) / clipStd[ch]
			}
			idx++
		}
	}
	return data
}
