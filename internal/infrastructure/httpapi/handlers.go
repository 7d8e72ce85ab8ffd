package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"cdoportal/internal/domain"
)

type handlers struct {
	catalog CatalogService
	seeder  Seeder
	career  CareerService
	logger  *slog.Logger
}

type seedResponse struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
}

type reviewResumeRequest struct {
	ResumeText     string `json:"resumeText" validate:"required"`
	JobDescription string `json:"jobDescription"`
}

type prepareInterviewRequest struct {
	JobTitle string `json:"jobTitle" validate:"required"`
	Agency   string `json:"agency"`
}

type sendMessageRequest struct {
	Messages []domain.Message `json:"messages" validate:"required,min=1,dive"`
}

// listQuery carries the list filters of one kind; Kind comes from the route.
type listQuery struct {
	Kind           domain.Kind `json:"-"`
	Category       string      `query:"category"`
	Source         string      `query:"source"`
	Agency         string      `query:"agency"`
	Keyword        string      `query:"keyword"`
	ClearanceLevel string      `query:"clearanceLevel"`
	Remote         string      `query:"remote" validate:"omitempty,boolean"`
	Limit          *int        `query:"limit" validate:"omitempty,min=1,max=100"`
}

func (h *handlers) list(kind domain.Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		filter, err := bindFilter(c, kind)
		if err != nil {
			return err
		}

		items, err := h.catalog.List(c.Request().Context(), kind, filter)
		if err != nil {
			return h.mapError(err)
		}
		return c.JSON(http.StatusOK, items)
	}
}

func (h *handlers) stats(kind domain.Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		stats, err := h.catalog.Stats(c.Request().Context(), kind)
		if err != nil {
			return h.mapError(err)
		}
		return c.JSON(http.StatusOK, stats)
	}
}

func (h *handlers) seedSample(kind domain.Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		count, err := h.seeder.SeedSample(c.Request().Context(), kind)
		if err != nil {
			return h.mapError(err)
		}
		return c.JSON(http.StatusOK, seedResponse{Success: true, Count: count})
	}
}

func (h *handlers) reviewResume(c echo.Context) error {
	var req reviewResumeRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	feedback, err := h.career.ReviewResume(c.Request().Context(), req.ResumeText, req.JobDescription)
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"feedback": feedback})
}

func (h *handlers) prepareInterview(c echo.Context) error {
	var req prepareInterviewRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	questions, err := h.career.PrepareInterview(c.Request().Context(), req.JobTitle, req.Agency)
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"questions": questions})
}

func (h *handlers) sendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	response, err := h.career.SendMessage(c.Request().Context(), req.Messages)
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"response": response})
}

// bindFilter reads and validates the query parameters accepted by the kind's list route.
func bindFilter(c echo.Context, kind domain.Kind) (domain.Filter, error) {
	q := listQuery{Kind: kind}

	b := echo.QueryParamsBinder(c)
	if kind == domain.KindJobs {
		b = b.String("agency", &q.Agency).
			String("keyword", &q.Keyword).
			String("clearanceLevel", &q.ClearanceLevel).
			String("remote", &q.Remote)
	} else {
		b = b.String("category", &q.Category).
			String("source", &q.Source)
	}
	if c.QueryParam("limit") != "" {
		var limit int
		b = b.Int("limit", &limit)
		q.Limit = &limit
	}
	if err := b.BindError(); err != nil {
		return domain.Filter{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&q); err != nil {
		return domain.Filter{}, err
	}

	filter := domain.Filter{
		Category:       q.Category,
		Source:         q.Source,
		Agency:         q.Agency,
		Keyword:        q.Keyword,
		ClearanceLevel: q.ClearanceLevel,
	}
	if q.Limit != nil {
		filter.Limit = *q.Limit
	}
	if q.Remote != "" {
		remote, _ := strconv.ParseBool(q.Remote)
		filter.Remote = &remote
	}
	return filter, nil
}

// mapError converts a usecase error into an echo.HTTPError.
func (h *handlers) mapError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrUnknownKind):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUpstream):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		h.logger.Error("request error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
