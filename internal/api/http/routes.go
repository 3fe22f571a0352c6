package httpapi

import (
	"context"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/growth-observations/internal/growth"
)

// fhirIDPattern is the FHIR resource id format.
var fhirIDPattern = regexp.MustCompile(`^[A-Za-z0-9\-.]{1,64}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("fhirid", func(fl validator.FieldLevel) bool {
		return fhirIDPattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// RegisterRoutes wires the HTTP handlers into the Fiber app. awaitTimeout
// bounds requests that wait for a fetch to settle.
func RegisterRoutes(app *fiber.App, reader *growth.Reader, awaitTimeout time.Duration) {
	v1 := app.Group("/api/v1")

	v1.Get("/growth", func(c *fiber.Ctx) error {
		var q growthQuery
		q.bind(c)

		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if !q.Wait {
			return c.JSON(newGrowthResponse(reader.GetGrowthData(q.Patient)))
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), awaitTimeout)
		defer cancel()
		return c.JSON(newGrowthResponse(reader.AwaitGrowthData(ctx, q.Patient)))
	})

	v1.Post("/growth/refresh", func(c *fiber.Ctx) error {
		q := refreshQuery{Patient: c.Query("patient")}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), awaitTimeout)
		defer cancel()
		return c.JSON(newGrowthResponse(reader.Refresh(ctx, q.Patient)))
	})
}

// RegisterMetrics exposes the gatherer's metrics at /metrics.
func RegisterMetrics(app *fiber.App, gatherer prometheus.Gatherer) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}

// growthQuery holds query parameters for the growth endpoint. An empty patient is allowed.
type growthQuery struct {
	Patient string `validate:"omitempty,fhirid"`
	Wait    bool
}

func (q *growthQuery) bind(c *fiber.Ctx) {
	q.Patient = c.Query("patient")
	q.Wait = c.QueryBool("wait", false)
}

// refreshQuery holds query parameters for the refresh endpoint.
type refreshQuery struct {
	Patient string `validate:"required,fhirid"`
}

// growthResponse is the wire form of growth.Result. Error is null when the fetch succeeded.
type growthResponse struct {
	GrowthData growth.Series `json:"growthData"`
	IsLoading  bool          `json:"isLoading"`
	Error      *string       `json:"error"`
}

func newGrowthResponse(res growth.Result) growthResponse {
	resp := growthResponse{
		GrowthData: res.GrowthData,
		IsLoading:  res.IsLoading,
	}
	if res.Error != nil {
		msg := res.Error.Error()
		resp.Error = &msg
	}
	return resp
}
