package weather

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
)

var (
	// ErrInvalidCoordinate is returned for non-finite or out-of-range input.
	ErrInvalidCoordinate = errors.New("invalid coordinate")

	// ErrInvalidField is returned for field names that cannot name a chunk directory.
	ErrInvalidField = errors.New("invalid field")
)

// Kind selects what a lookup returns.
type Kind string

const (
	KindPoint Kind = "point"
	KindChunk Kind = "chunk"
)

// Fields served by the named routes.
const (
	FieldTemperature = "t2m"
	FieldVisibility  = "vis"
)

var fieldPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ValidateField rejects names that are empty or could escape the snapshot tree.
func ValidateField(field string) error {
	if !fieldPattern.MatchString(field) {
		return fmt.Errorf("%w: %q", ErrInvalidField, field)
	}
	return nil
}

// GeoCoordinate is a WGS84-style latitude/longitude pair in degrees.
// Longitudes may be given east-positive (0..360) as the forecast grid uses.
type GeoCoordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"long"`
}

func (c GeoCoordinate) Validate() error {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || math.IsNaN(c.Lon) || math.IsInf(c.Lon, 0) {
		return fmt.Errorf("%w: coordinates must be finite", ErrInvalidCoordinate)
	}
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidCoordinate, c.Lat)
	}
	if c.Lon < -180 || c.Lon > 360 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidCoordinate, c.Lon)
	}
	return nil
}

// CacheKey identifies a response independently of the exact coordinate:
// every coordinate that lands on the same cell shares one entry.
type CacheKey struct {
	Kind    Kind
	Field   string
	ChunkID int
	Row     int
	Col     int
}

func (k CacheKey) String() string {
	s := string(k.Kind) + ":" + k.Field + ":" + strconv.Itoa(k.ChunkID)
	if k.Kind == KindChunk {
		return s
	}
	return s + ":" + strconv.Itoa(k.Row) + ":" + strconv.Itoa(k.Col)
}

// Samples is a run of grid values. Fill values (NaN, ±Inf) encode as JSON
// null and decode back to NaN.
type Samples []float32

func (s Samples) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	buf := make([]byte, 0, 2+len(s)*10)
	buf = append(buf, '[')
	for i, v := range s {
		if i > 0 {
			buf = append(buf, ',')
		}
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			buf = append(buf, "null"...)
			continue
		}
		buf = strconv.AppendFloat(buf, f, 'g', -1, 32)
	}
	return append(buf, ']'), nil
}

func (s *Samples) UnmarshalJSON(b []byte) error {
	var raw []*float32
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == nil {
		*s = nil
		return nil
	}
	out := make(Samples, len(raw))
	for i, p := range raw {
		if p == nil {
			out[i] = float32(math.NaN())
			continue
		}
		out[i] = *p
	}
	*s = out
	return nil
}

// Finite returns nil for NaN and ±Inf so fill values render as null.
func Finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Result is the outcome of a lookup. Chunk results carry the whole array
// flattened row-major with its shape; point results carry Value and, for
// stacked chunks, the value of every grid in Series. A nil Value or Series
// element is a fill value: the grid has no data there.
type Result struct {
	Kind     Kind   `json:"kind"`
	Field    string `json:"field"`
	Units    string `json:"units"`
	Snapshot string `json:"snapshot"`
	ChunkID  int    `json:"chunkId"`
	Row      int    `json:"row"`
	Col      int    `json:"col"`

	Shape  []int   `json:"shape,omitempty"`
	Values Samples `json:"values,omitempty"`

	Value  *float64   `json:"value"`
	Series []*float64 `json:"series,omitempty"`
}
