package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"path"
	"slices"
	"strings"
	"sync"

	"postengine/internal/storage"

	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/image/draw"

	_ "image/jpeg"
	_ "image/png"
)

const (
	queueSize     = 25
	webpQuality   = 75
	variantPrefix = "variants/"
)

// originals the processor can decode, gifs stay as is to keep animations
var variantSourceExtensions = []string{".jpg", ".jpeg", ".png"}

// SupportsVariants reports whether resized webp renditions can be built from key
func SupportsVariants(key string) bool {
	return slices.Contains(variantSourceExtensions, strings.ToLower(path.Ext(key)))
}

// VariantKey is the storage key of the webp rendition of asset id at width
func VariantKey(id string, width int) string {
	return fmt.Sprintf("%s%s_%d.webp", variantPrefix, id, width)
}

type ImageJob struct {
	SourcePath string
	ID         string
	Width      int
	ParentSpan trace.SpanContext
}

// ImageProcessorService accepts variant generation requests
type ImageProcessorService interface {
	Enqueue(ctx context.Context, job ImageJob) error
}

type encodeFunc func(w io.Writer, img image.Image) error

// Processor is a bounded worker pool turning source images into resized webp variants
type Processor struct {
	jobs    chan ImageJob
	pending sync.Map
	wg      sync.WaitGroup
	store   storage.Provider
	encode  encodeFunc
	logger  *slog.Logger
	tracer  trace.Tracer
}

var _ ImageProcessorService = (*Processor)(nil)

// NewProcessor starts workercount workers, they stop once ctx is cancelled
func NewProcessor(ctx context.Context, store storage.Provider, workercount int, logger *slog.Logger) *Processor {
	return newProcessor(ctx, store, workercount, logger, encodeWebP)
}

func newProcessor(ctx context.Context, store storage.Provider, workercount int, logger *slog.Logger, encode encodeFunc) *Processor {
	p := &Processor{
		jobs:   make(chan ImageJob, queueSize),
		store:  store,
		encode: encode,
		logger: logger,
		tracer: otel.Tracer("postengine/media/processor"),
	}
	for i := range workercount {
		p.wg.Go(func() {
			p.run(ctx, i)
		})
	}
	return p
}

// Wait blocks until every worker has returned
func (p *Processor) Wait() {
	p.wg.Wait()
	p.logger.Info("image processor stopped")
}

func (p *Processor) run(ctx context.Context, worker int) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-p.jobs:
			p.ProcessJob(ctx, worker, job)
			p.pending.Delete(jobKey(job))
		}
	}
}

func jobKey(job ImageJob) string {
	return fmt.Sprintf("%s_%d", job.ID, job.Width)
}

// ProcessJob builds and stores one variant, variants already stored are left alone
func (p *Processor) ProcessJob(ctx context.Context, worker int, job ImageJob) {
	ctx, span := p.tracer.Start(ctx, "Processor.ProcessJob",
		trace.WithAttributes(
			attribute.String("image.id", job.ID),
			attribute.Int("image.width", job.Width),
		),
		trace.WithLinks(trace.Link{SpanContext: job.ParentSpan}),
	)
	defer span.End()

	stored, err := p.buildVariant(ctx, job)
	if err != nil {
		p.logger.Error("image variant failed", "worker", worker, "source", job.SourcePath, "width", job.Width, "err", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "variant failed")
		return
	}
	span.SetAttributes(attribute.Bool("image.stored", stored))
	if stored {
		p.logger.Debug("image variant stored", "worker", worker, "id", job.ID, "width", job.Width)
	}
}

// buildVariant reports false without error when there was nothing to do
func (p *Processor) buildVariant(ctx context.Context, job ImageJob) (bool, error) {
	dest := VariantKey(job.ID, job.Width)
	if p.store.Exists(ctx, dest) || ctx.Err() != nil {
		return false, nil
	}

	src, err := p.store.Open(ctx, job.SourcePath)
	if err != nil {
		return false, fmt.Errorf("open: %w", err)
	}
	defer src.Close()

	img, _, err := image.Decode(src)
	if err != nil {
		return false, fmt.Errorf("decode: %w", err)
	}
	if ctx.Err() != nil {
		return false, nil
	}

	_, encodeSpan := p.tracer.Start(ctx, "Processor.Encode")
	var buf bytes.Buffer
	err = p.encode(&buf, resizeImage(img, job.Width))
	encodeSpan.End()
	if err != nil {
		return false, fmt.Errorf("encode: %w", err)
	}

	if err := p.store.Save(ctx, dest, bytes.NewReader(buf.Bytes())); err != nil {
		return false, fmt.Errorf("save %s: %w", dest, err)
	}
	return true, nil
}

func encodeWebP(w io.Writer, img image.Image) error {
	options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, webpQuality)
	if err != nil {
		return err
	}
	return webp.Encode(w, img, options)
}

// Enqueue schedules a variant unless the same one is already pending.
// It never blocks: a full queue reports ErrQueueFull.
func (p *Processor) Enqueue(ctx context.Context, job ImageJob) error {
	key := jobKey(job)
	if _, pending := p.pending.LoadOrStore(key, struct{}{}); pending {
		return nil
	}

	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		p.pending.Delete(key)
		return ctx.Err()
	default:
		p.pending.Delete(key)
		return ErrQueueFull
	}
}

// resizeImage scales src down to maxWidth keeping its aspect ratio, narrower images are returned as is
func resizeImage(src image.Image, maxWidth int) image.Image {
	bounds := src.Bounds()
	if maxWidth <= 0 || bounds.Dx() <= maxWidth {
		return src
	}

	height := max(1, bounds.Dy()*maxWidth/bounds.Dx())
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}
