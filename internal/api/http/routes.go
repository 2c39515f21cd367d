package httpapi

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/field-conditions/internal/conditions"
	"github.com/i474232898/field-conditions/internal/store"
)

var validate = validator.New()

// Runner executes the conditions pipeline for a raw request body.
type Runner interface {
	Run(ctx context.Context, body []byte) conditions.Outcome
}

// StatusReader is the read side of the provider health store.
type StatusReader interface {
	Providers() []string
	GetLatest(provider string) (conditions.ProviderStatus, error)
	GetRange(provider string, from, to time.Time) ([]conditions.ProviderStatus, error)
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, pipeline Runner, statuses StatusReader) {
	conditionsHandler := func(c *fiber.Ctx) error {
		out := pipeline.Run(c.UserContext(), c.Body())
		if !out.OK() {
			return c.Status(fiber.StatusBadRequest).JSON(errorBody(out.Errors...))
		}
		return c.JSON(fiber.Map{
			"status": "success",
			"data":   out.Data,
		})
	}

	// /get_data is kept for existing clients; both take the query as a JSON body.
	app.Post("/get_data", conditionsHandler)

	v1 := app.Group("/api/v1")
	v1.Post("/conditions", conditionsHandler)

	app.Get("/health", func(c *fiber.Ctx) error {
		names := statuses.Providers()
		sort.Strings(names)

		latest := make([]conditions.ProviderStatus, 0, len(names))
		for _, name := range names {
			st, err := statuses.GetLatest(name)
			if err != nil {
				continue
			}
			latest = append(latest, st)
		}

		return c.JSON(fiber.Map{
			"status":    "ok",
			"service":   "field-conditions",
			"providers": latest,
		})
	})

	v1.Get("/providers/:name/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		samples, err := statuses.GetRange(req.Provider, req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no provider history for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch provider history")
		}

		return c.JSON(fiber.Map{
			"provider": req.Provider,
			"from":     req.From,
			"to":       req.To,
			"samples":  samples,
		})
	})
}

// ErrorHandler renders every error in the same envelope as a failed
// conditions request.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(errorBody(err.Error()))
}

func errorBody(msgs ...string) fiber.Map {
	return fiber.Map{"errors": msgs}
}

// historyQuery holds parameters for the provider history endpoint.
type historyQuery struct {
	Provider string    `validate:"required"`
	From     time.Time `validate:"required"`
	To       time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	h.Provider = c.Params("name")

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
