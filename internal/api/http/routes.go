package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/i474232898/weather-chunk-server/internal/chunk"
	"github.com/i474232898/weather-chunk-server/internal/dataset"
	"github.com/i474232898/weather-chunk-server/internal/grid"
	"github.com/i474232898/weather-chunk-server/internal/metrics"
	"github.com/i474232898/weather-chunk-server/internal/weather"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("fieldname", func(fl validator.FieldLevel) bool {
		return weather.ValidateField(fl.Field().String()) == nil
	})
	return v
}

// retryAfterSeconds is advertised while no snapshot has been ingested yet.
const retryAfterSeconds = 30

// Lookups is the part of weather.Service the handlers need.
type Lookups interface {
	Point(ctx context.Context, field string, c weather.GeoCoordinate) (weather.Result, error)
	Chunk(ctx context.Context, field string, c weather.GeoCoordinate) (weather.Result, error)
	Ready(ctx context.Context) error
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service Lookups) {
	app.Get("/test", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "Hello, World!"})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-chunk-server",
		})
	})
	app.Get("/ready", func(c *fiber.Ctx) error {
		if err := service.Ready(c.UserContext()); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"status": "ready"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	app.Post("/temperature/now/chunk", chunkHandler(service, weather.FieldTemperature))
	app.Post("/visibility/now/chunk", chunkHandler(service, weather.FieldVisibility))
	app.Post("/temperature/now", pointHandler(service, weather.FieldTemperature, "temperature"))
	app.Post("/visibility/now", pointHandler(service, weather.FieldVisibility, "visibility"))

	v1 := app.Group("/api/v1")
	v1.Post("/fields/:field/point", func(c *fiber.Ctx) error {
		field, err := fieldParam(c)
		if err != nil {
			return err
		}
		return pointHandler(service, field, "value")(c)
	})
	v1.Post("/fields/:field/chunk", func(c *fiber.Ctx) error {
		field, err := fieldParam(c)
		if err != nil {
			return err
		}
		return chunkHandler(service, field)(c)
	})
}

// coordinateRequest is the body every lookup route accepts.
type coordinateRequest struct {
	Lat  *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Long *float64 `json:"long" validate:"required,gte=-180,lte=360"`
}

func parseCoordinate(c *fiber.Ctx) (weather.GeoCoordinate, error) {
	var req coordinateRequest
	if err := c.BodyParser(&req); err != nil {
		return weather.GeoCoordinate{}, fiber.NewError(fiber.StatusBadRequest, "body must be JSON with lat and long")
	}
	if err := validate.Struct(req); err != nil {
		return weather.GeoCoordinate{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return weather.GeoCoordinate{Lat: *req.Lat, Lon: *req.Long}, nil
}

func fieldParam(c *fiber.Ctx) (string, error) {
	field := c.Params("field")
	if err := validate.Var(field, "required,max=64,fieldname"); err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, "invalid field name")
	}
	return field, nil
}

func pointHandler(service Lookups, field, valueKey string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		coord, err := parseCoordinate(c)
		if err != nil {
			return err
		}
		res, err := service.Point(c.UserContext(), field, coord)
		if err != nil {
			return err
		}

		body := fiber.Map{
			valueKey:   res.Value,
			"field":    res.Field,
			"units":    res.Units,
			"snapshot": res.Snapshot,
			"chunkId":  res.ChunkID,
			"row":      res.Row,
			"col":      res.Col,
		}
		if res.Series != nil {
			body["series"] = res.Series
		}
		return c.JSON(body)
	}
}

func chunkHandler(service Lookups, field string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		coord, err := parseCoordinate(c)
		if err != nil {
			return err
		}
		res, err := service.Chunk(c.UserContext(), field, coord)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"chunk":    nest(res.Shape, res.Values),
			"field":    res.Field,
			"units":    res.Units,
			"snapshot": res.Snapshot,
			"chunkId":  res.ChunkID,
			"shape":    res.Shape,
		})
	}
}

// nest turns row-major values into rows for a 2-D shape or grids of rows for
// a 3-D one. Rows stay weather.Samples so fill values render as null.
func nest(shape []int, values weather.Samples) any {
	rows := func(flat weather.Samples, nrows, ncols int) []weather.Samples {
		out := make([]weather.Samples, nrows)
		for r := range out {
			out[r] = flat[r*ncols : (r+1)*ncols]
		}
		return out
	}
	switch len(shape) {
	case 2:
		return rows(values, shape[0], shape[1])
	case 3:
		plane := shape[1] * shape[2]
		out := make([][]weather.Samples, shape[0])
		for k := range out {
			out[k] = rows(values[k*plane:(k+1)*plane], shape[1], shape[2])
		}
		return out
	default:
		return values
	}
}

// ErrorHandler renders every error as {"error": true, "message": ...} with a
// status derived from the pipeline's sentinel errors.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *fiber.Ctx, err error) error {
		code, msg := statusFor(err)
		if code == fiber.StatusServiceUnavailable {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfterSeconds))
		}
		if code >= fiber.StatusInternalServerError && code != fiber.StatusServiceUnavailable {
			logger.Error("request failed", "method", c.Method(), "path", c.Path(), "err", err)
		}
		return c.Status(code).JSON(fiber.Map{
			"error":   true,
			"message": msg,
		})
	}
}

func statusFor(err error) (int, string) {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code, fe.Message
	case errors.Is(err, weather.ErrInvalidCoordinate),
		errors.Is(err, weather.ErrInvalidField),
		errors.Is(err, grid.ErrOutsideGrid):
		return fiber.StatusBadRequest, err.Error()
	case errors.Is(err, dataset.ErrNoSnapshot):
		return fiber.StatusServiceUnavailable, "forecast data not yet available"
	case errors.Is(err, dataset.ErrChunkNotFound):
		return fiber.StatusNotFound, "no data for this location and field"
	case errors.Is(err, chunk.ErrCorrupt), errors.Is(err, dataset.ErrStoreIO):
		return fiber.StatusInternalServerError, "failed to read forecast data"
	default:
		return fiber.StatusInternalServerError, "internal server error"
	}
}
