// Package api exposes downloads, clips and moment queries over HTTP.
package api

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/keagan/momentcut/internal/download"
	"github.com/keagan/momentcut/internal/logging"
	"github.com/keagan/momentcut/internal/pipeline"
	"github.com/rs/zerolog"
)

// DownloadRequest is the body of POST /api/v1/videos
type DownloadRequest struct {
	URL     string `json:"url" validate:"required,url"`
	Quality string `json:"quality" validate:"omitempty,quality"`
}

// QueryRequest is the body of POST /api/v1/videos/:id/moments
type QueryRequest struct {
	Query  string `json:"query" validate:"required,max=200"`
	Strict bool   `json:"strict"`
}

// Server is the HTTP front end
type Server struct {
	app      *fiber.App
	logger   zerolog.Logger
	svc      Service
	validate *validator.Validate
}

// NewServer builds the fiber app and registers routes
func NewServer(logger zerolog.Logger, svc Service) *Server {
	logger = logging.WithComponent(logger, "api")

	validate := validator.New()
	validate.RegisterValidation("quality", func(fl validator.FieldLevel) bool {
		return download.ValidQuality(fl.Field().String())
	})

	s := &Server{
		logger:   logger,
		svc:      svc,
		validate: validate,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "momentcut",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.app.Use(recover.New())
	s.app.Use(cors.New())
	s.app.Use(requestLogger(logger))

	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":  "ok",
			"message": "momentcut is healthy",
		})
	})

	v1 := s.app.Group("/api/v1")
	v1.Get("/videos", s.listVideos)
	v1.Post("/videos", s.downloadVideo)
	v1.Get("/videos/:id/clips", s.listClips)
	v1.Get("/videos/:id/moments", s.listMoments)
	v1.Post("/videos/:id/moments", s.queryMoments)
	v1.Get("/videos/:id/queries", s.listQueries)

	return s
}

// App returns the underlying fiber app
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown
func (s *Server) Listen(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("api listening")
	return s.app.Listen(addr)
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return respondWithError(c, code, err.Error())
}

func (s *Server) listVideos(c *fiber.Ctx) error {
	videos, err := s.svc.Videos()
	if err != nil {
		return respondWithError(c, fiber.StatusInternalServerError, err.Error())
	}
	return respondWithJSON(c, fiber.StatusOK, videos)
}

func (s *Server) downloadVideo(c *fiber.Ctx) error {
	var req DownloadRequest
	if err := c.BodyParser(&req); err != nil {
		return respondWithError(c, fiber.StatusBadRequest, "Cannot parse JSON: "+err.Error())
	}
	req.URL = strings.TrimSpace(req.URL)
	if err := s.validate.Struct(req); err != nil {
		return respondWithError(c, fiber.StatusBadRequest, strings.Join(formatValidationErrors(err), "; "))
	}

	video, err := s.svc.Download(c.UserContext(), req.URL, req.Quality)
	if err != nil {
		return respondWithError(c, fiber.StatusBadGateway, err.Error())
	}
	return respondWithJSON(c, fiber.StatusCreated, video)
}

func (s *Server) listClips(c *fiber.Ctx) error {
	segs, err := s.svc.Clips(c.UserContext(), c.Params("id"))
	if err != nil {
		return s.videoError(c, err)
	}
	return respondWithJSON(c, fiber.StatusOK, segs)
}

func (s *Server) listMoments(c *fiber.Ctx) error {
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		return respondWithError(c, fiber.StatusBadRequest, "query parameter is required")
	}

	ms, err := s.svc.Moments(c.Params("id"), query)
	if err != nil {
		return respondWithError(c, fiber.StatusInternalServerError, err.Error())
	}
	return respondWithJSON(c, fiber.StatusOK, ms)
}

func (s *Server) listQueries(c *fiber.Ctx) error {
	qs, err := s.svc.Queries(c.Params("id"))
	if err != nil {
		return respondWithError(c, fiber.StatusInternalServerError, err.Error())
	}
	if qs == nil {
		qs = []string{}
	}
	return respondWithJSON(c, fiber.StatusOK, qs)
}

func (s *Server) queryMoments(c *fiber.Ctx) error {
	var req QueryRequest
	if err := c.BodyParser(&req); err != nil {
		return respondWithError(c, fiber.StatusBadRequest, "Cannot parse JSON: "+err.Error())
	}
	req.Query = strings.TrimSpace(req.Query)
	if err := s.validate.Struct(req); err != nil {
		return respondWithError(c, fiber.StatusBadRequest, strings.Join(formatValidationErrors(err), "; "))
	}

	result, err := s.svc.Query(c.UserContext(), c.Params("id"), req.Query, pipeline.QueryOptions{Strict: req.Strict})
	if err != nil {
		return s.videoError(c, err)
	}
	return respondWithJSON(c, fiber.StatusOK, result)
}

func (s *Server) videoError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, download.ErrNotFound):
		return respondWithError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, pipeline.ErrClipMissing):
		return respondWithError(c, fiber.StatusConflict, err.Error())
	default:
		return respondWithError(c, fiber.StatusInternalServerError, err.Error())
	}
}
