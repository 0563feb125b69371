// Package http serves the availability and booking engine over the JSON
// contract the web client consumes.
package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"tutorflow/backend/internal/domain"
	"tutorflow/backend/internal/service/availability"
	"tutorflow/backend/internal/service/bookings"
	"tutorflow/backend/internal/service/scheduling"
	"tutorflow/backend/internal/store"
)

type availabilityService interface {
	SetRecurring(ctx context.Context, in availability.SetRecurringInput) (domain.RecurringRule, error)
	SetOverride(ctx context.Context, tutorID string, date time.Time, windows []domain.Interval) (domain.Override, error)
	ClearOverride(ctx context.Context, tutorID string, date time.Time) error
}

type slotEngine interface {
	ComputeSlots(ctx context.Context, tutorID, requestingUserID string, date time.Time, granularity time.Duration) ([]scheduling.Slot, error)
}

type bookingService interface {
	Create(ctx context.Context, in bookings.CreateInput) (domain.Booking, error)
	Accept(ctx context.Context, bookingID uuid.UUID, actorID string) (domain.Booking, error)
	Cancel(ctx context.Context, bookingID uuid.UUID, actorID string) (domain.Booking, error)
	Get(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error)
	ListForParty(ctx context.Context, partyID string, date time.Time) ([]domain.Booking, error)
}

type Config struct {
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
	RequestTimeout time.Duration
}

type Server struct {
	availability availabilityService
	engine       slotEngine
	bookings     bookingService
	log          *slog.Logger
}

func NewRouter(avail availabilityService, engine slotEngine, book bookingService, log *slog.Logger, cfg Config) *gin.Engine {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		availability: avail,
		engine:       engine,
		bookings:     book,
		log:          log.With(slog.String("component", "http")),
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(s.log))
	r.Use(requestTimeout(cfg.RequestTimeout))
	if cfg.RateLimitRPS > 0 {
		r.Use(rateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, s.log))
	}
	if len(cfg.AllowedOrigins) > 0 {
		corsCfg := cors.DefaultConfig()
		corsCfg.AllowOrigins = cfg.AllowedOrigins
		corsCfg.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
		r.Use(cors.New(corsCfg))
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1")
	{
		v1.GET("/availability", s.getAvailability)
		v1.POST("/availability", s.postAvailability)
		v1.DELETE("/availability/override", s.deleteOverride)

		v1.POST("/bookings", s.createBooking)
		v1.GET("/bookings", s.listBookings)
		v1.GET("/bookings/:id", s.getBooking)
		v1.PATCH("/bookings/:id", s.patchBooking)
	}

	return r
}

// writeError maps the engine's error taxonomy onto the wire contract. Every
// structured failure stays caller-visible; nothing is swallowed.
func (s *Server) writeError(c *gin.Context, log *slog.Logger, err error) {
	var slotErr *domain.SlotUnavailableError
	if errors.As(err, &slotErr) {
		log.Info("slot unavailable", slog.String("conflict_type", string(slotErr.Conflict)))
		c.JSON(http.StatusConflict, gin.H{"error": "slot_unavailable", "conflict_type": string(slotErr.Conflict)})
		return
	}
	var transErr *domain.InvalidTransitionError
	if errors.As(err, &transErr) {
		log.Info("invalid transition", slog.String("from", string(transErr.From)), slog.String("to", string(transErr.To)))
		c.JSON(http.StatusConflict, gin.H{"error": "invalid_transition"})
		return
	}
	var permErr *bookings.PermissionError
	if errors.As(err, &permErr) {
		log.Warn("forbidden", slog.Any("err", err))
		c.JSON(http.StatusForbidden, gin.H{"error": permErr.Error()})
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	var bvErr *bookings.ValidationError
	if availability.IsValidationError(err) || errors.As(err, &bvErr) {
		log.Warn("invalid request", slog.Any("err", err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	log.Error("request failed", slog.Any("err", err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
