package httpapi

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/url"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/i474232898/weather-cities/internal/metrics"
	"github.com/i474232898/weather-cities/internal/weather"
)

// HeaderIconPlaceholder marks icon responses that carry the placeholder image.
const HeaderIconPlaceholder = "X-Icon-Placeholder"

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app. m may be nil, in
// which case /metrics is not exposed.
func RegisterRoutes(app *fiber.App, service *weather.Service, m *metrics.Collector) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-cities",
		})
	})

	if m != nil {
		app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))
	}

	v1 := app.Group("/api/v1")

	v1.Get("/cities", func(c *fiber.Ctx) error {
		cities, err := service.Cities()
		if err != nil {
			return toHTTPError(err, "failed to load saved cities")
		}
		return c.JSON(cities)
	})

	v1.Post("/cities", func(c *fiber.Ctx) error {
		var req addCityRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		rec, err := service.AddCity(c.UserContext(), req.Query)
		if err != nil {
			return toHTTPError(err, "failed to add city")
		}
		return c.Status(fiber.StatusCreated).JSON(rec)
	})

	v1.Post("/cities/refresh", func(c *fiber.Ctx) error {
		report, err := service.Refresh(c.UserContext())
		if err != nil {
			return toHTTPError(err, "failed to refresh cities")
		}
		return c.JSON(report)
	})

	v1.Delete("/cities/:name", func(c *fiber.Ctx) error {
		name, err := cityParam(c)
		if err != nil {
			return err
		}
		if err := service.RemoveCity(name); err != nil {
			return toHTTPError(err, "failed to remove city")
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	v1.Get("/cities/:name/forecast", func(c *fiber.Ctx) error {
		name, err := cityParam(c)
		if err != nil {
			return err
		}
		entries, err := service.Forecast(c.UserContext(), name)
		if err != nil {
			return toHTTPError(err, "failed to fetch forecast")
		}
		return c.JSON(fiber.Map{
			"city":    name,
			"entries": entries,
		})
	})

	v1.Get("/icons/:code", func(c *fiber.Ctx) error {
		code := c.Params("code")
		if err := validate.Var(code, "required,alphanum,max=8"); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid icon code")
		}

		c.Set(fiber.HeaderContentType, "image/png")
		img, err := service.Icon(c.UserContext(), code)
		if err != nil {
			c.Set(HeaderIconPlaceholder, "true")
			return c.Send(placeholderIcon())
		}
		return c.Send(img)
	})

	v1.Get("/suggestions", func(c *fiber.Ctx) error {
		q := c.Query("q")
		suggestions, err := service.Suggest(c.UserContext(), q)
		if err != nil {
			return toHTTPError(err, "failed to fetch suggestions")
		}
		return c.JSON(fiber.Map{
			"query":       q,
			"suggestions": suggestions,
		})
	})
}

// ErrorHandler renders every error as a JSON body with the matching status.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

// addCityRequest is the body of POST /api/v1/cities.
type addCityRequest struct {
	Query string `json:"query" validate:"required"`
}

func cityParam(c *fiber.Ctx) (string, error) {
	name, err := url.PathUnescape(c.Params("name"))
	if err != nil || name == "" {
		return "", fiber.NewError(fiber.StatusBadRequest, "invalid city name")
	}
	return name, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, weather.ErrInvalidQuery), errors.Is(err, weather.ErrInvalidURL):
		return fiber.StatusBadRequest
	case errors.Is(err, weather.ErrCityNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, weather.ErrNetwork), errors.Is(err, weather.ErrDecode):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func toHTTPError(err error, msg string) error {
	return fiber.NewError(statusFor(err), msg+": "+err.Error())
}

var placeholderIcon = sync.OnceValue(func() []byte {
	const size = 100
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	gray := color.NRGBA{R: 0xd3, G: 0xd3, B: 0xd3, A: 0xff}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetNRGBA(x, y, gray)
		}
	}
	var buf bytes.Buffer
	// encoding an in-memory image cannot fail
	_ = png.Encode(&buf, img)
	return buf.Bytes()
})
