package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/i474232898/weather-chunk-server/internal/chunk"
	"github.com/i474232898/weather-chunk-server/internal/dataset"
	"github.com/i474232898/weather-chunk-server/internal/grid"
	"github.com/i474232898/weather-chunk-server/internal/metrics"
)

// Locator resolves a coordinate to its index cell.
type Locator interface {
	Locate(lat, lon float64) (grid.Entry, error)
}

// SnapshotResolver names the snapshot lookups should read from.
type SnapshotResolver interface {
	Latest(ctx context.Context) (dataset.Snapshot, error)
}

// ChunkReader loads the raw bytes of one chunk file.
type ChunkReader interface {
	Read(snapshot, field string, chunkID int) ([]byte, error)
}

// Cache stores finished results. Implementations must be safe for
// concurrent use and treat expired entries as misses.
type Cache interface {
	Get(ctx context.Context, key string) (Result, bool)
	Set(ctx context.Context, key string, r Result)
}

// Options tune the decode stage of the pipeline.
type Options struct {
	// DecodeConcurrency caps simultaneous decompress/reshape work.
	// Zero means runtime.NumCPU().
	DecodeConcurrency int
	// DecodeTimeout bounds waiting for a decode slot plus the decode itself.
	// Zero disables the deadline.
	DecodeTimeout time.Duration
	Logger        *slog.Logger
}

// Service runs the lookup pipeline: locate, consult the cache, resolve the
// snapshot, read, decode, convert.
type Service struct {
	locator   Locator
	snapshots SnapshotResolver
	chunks    ChunkReader
	cache     Cache

	group         singleflight.Group
	decodeSlots   *semaphore.Weighted
	decodeTimeout time.Duration
	log           *slog.Logger
}

// NewService creates a new Service.
func NewService(locator Locator, snapshots SnapshotResolver, chunks ChunkReader, cache Cache, opts Options) *Service {
	n := opts.DecodeConcurrency
	if n <= 0 {
		n = runtime.NumCPU()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		locator:       locator,
		snapshots:     snapshots,
		chunks:        chunks,
		cache:         cache,
		decodeSlots:   semaphore.NewWeighted(int64(n)),
		decodeTimeout: opts.DecodeTimeout,
		log:           logger,
	}
}

// Point returns the value of field at the cell nearest to c.
func (s *Service) Point(ctx context.Context, field string, c GeoCoordinate) (Result, error) {
	return s.lookup(ctx, KindPoint, field, c)
}

// Chunk returns the whole chunk of field containing c.
func (s *Service) Chunk(ctx context.Context, field string, c GeoCoordinate) (Result, error) {
	return s.lookup(ctx, KindChunk, field, c)
}

// Ready reports whether a snapshot is available to serve from.
func (s *Service) Ready(ctx context.Context) error {
	_, err := s.snapshots.Latest(ctx)
	return err
}

func (s *Service) lookup(ctx context.Context, kind Kind, field string, c GeoCoordinate) (res Result, err error) {
	start := time.Now()
	defer func() {
		metrics.LookupsTotal.WithLabelValues(string(kind), fieldLabel(field), outcome(err)).Inc()
		metrics.LookupDurationMs.WithLabelValues(string(kind)).Observe(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if err := ValidateField(field); err != nil {
		return Result{}, err
	}
	if err := c.Validate(); err != nil {
		return Result{}, err
	}
	entry, err := s.locator.Locate(c.Lat, c.Lon)
	if err != nil {
		return Result{}, err
	}

	key := CacheKey{Kind: kind, Field: field, ChunkID: entry.ChunkID, Row: entry.Row, Col: entry.Col}.String()
	if r, ok := s.cache.Get(ctx, key); ok {
		return r, nil
	}
	metrics.CacheMissesTotal.Inc()

	v, err, shared := s.group.Do(key, func() (any, error) {
		// The first caller's cancellation must not fail the others waiting on it.
		detached := context.WithoutCancel(ctx)
		r, err := s.load(detached, kind, field, entry)
		if err != nil {
			return Result{}, err
		}
		s.cache.Set(detached, key, r)
		return r, nil
	})
	if shared {
		metrics.CoalescedTotal.Inc()
	}
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

func (s *Service) load(ctx context.Context, kind Kind, field string, entry grid.Entry) (Result, error) {
	snap, err := s.snapshots.Latest(ctx)
	if err != nil {
		return Result{}, err
	}

	raw, err := s.chunks.Read(snap.Path, field, entry.ChunkID)
	if err != nil {
		if !errors.Is(err, dataset.ErrChunkNotFound) {
			s.log.Error("chunk read failed", "field", field, "chunk", entry.ChunkID, "snapshot", snap.Name, "err", err)
		}
		return Result{}, err
	}

	arr, err := s.decode(ctx, raw)
	if err != nil {
		s.log.Error("chunk decode failed", "field", field, "chunk", entry.ChunkID, "snapshot", snap.Name, "err", err)
		return Result{}, err
	}

	conv := ConversionFor(field)
	res := Result{
		Kind:     kind,
		Field:    field,
		Units:    conv.Units,
		Snapshot: snap.Name,
		ChunkID:  entry.ChunkID,
	}

	if kind == KindChunk {
		res.Shape = arr.Shape()
		res.Values = make(Samples, len(arr.Data))
		for i, v := range arr.Data {
			res.Values[i] = float32(conv.apply(float64(v)))
		}
		return res, nil
	}

	// Offsets are range-checked when the index loads; a miss here means the
	// index and the finder disagree.
	if entry.Row < 0 || entry.Row >= chunk.Side || entry.Col < 0 || entry.Col >= chunk.Side {
		return Result{}, fmt.Errorf("offset (%d,%d) outside chunk %d", entry.Row, entry.Col, entry.ChunkID)
	}
	res.Row, res.Col = entry.Row, entry.Col
	res.Value = Finite(RoundTo(conv.apply(float64(arr.At(0, entry.Row, entry.Col))), 2))
	if arr.Stacked() {
		col := arr.Column(entry.Row, entry.Col)
		res.Series = make([]*float64, len(col))
		for i, v := range col {
			res.Series[i] = Finite(RoundTo(conv.apply(float64(v)), 2))
		}
	}
	return res, nil
}

type decoded struct {
	arr *chunk.Array
	err error
}

// decode runs chunk.Decode on a bounded pool. When the deadline passes the
// caller gets an error while the abandoned decode finishes and frees its slot.
func (s *Service) decode(ctx context.Context, raw []byte) (*chunk.Array, error) {
	if s.decodeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.decodeTimeout)
		defer cancel()
	}
	if err := s.decodeSlots.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("wait for decoder: %w", err)
	}

	done := make(chan decoded, 1)
	go func() {
		defer s.decodeSlots.Release(1)
		start := time.Now()
		arr, err := chunk.Decode(raw)
		metrics.DecodeDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000)
		done <- decoded{arr: arr, err: err}
	}()

	select {
	case d := <-done:
		return d.arr, d.err
	case <-ctx.Done():
		return nil, fmt.Errorf("decode: %w", ctx.Err())
	}
}

// fieldLabel keeps metric cardinality bounded: field names come from the
// request path, so only fields with a known conversion get their own series.
func fieldLabel(field string) string {
	if _, ok := conversions[field]; ok {
		return field
	}
	return "other"
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidCoordinate), errors.Is(err, ErrInvalidField), errors.Is(err, grid.ErrOutsideGrid):
		return "invalid"
	case errors.Is(err, dataset.ErrNoSnapshot):
		return "no_snapshot"
	case errors.Is(err, dataset.ErrChunkNotFound):
		return "not_found"
	case errors.Is(err, chunk.ErrCorrupt):
		return "corrupt"
	default:
		return "error"
	}
}
