package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tutorflow/backend/internal/domain"
	"tutorflow/backend/internal/service/availability"
)

type slotJSON struct {
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Disabled     bool      `json:"disabled"`
	ConflictType string    `json:"conflict_type"`
}

// GET /v1/availability?tutor_id=&date=&user_id=&granularity=
func (s *Server) getAvailability(c *gin.Context) {
	log := s.log.With(slog.String("handler", "getAvailability"))

	tutorID := c.Query("tutor_id")
	if tutorID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tutor_id is required"})
		return
	}
	date, err := parseDate(c.Query("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	granularity, err := parseGranularity(c.Query("granularity"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	slots, err := s.engine.ComputeSlots(c.Request.Context(), tutorID, c.Query("user_id"), date, granularity)
	if err != nil {
		s.writeError(c, log, err)
		return
	}

	out := make([]slotJSON, 0, len(slots))
	for _, sl := range slots {
		out = append(out, slotJSON{
			Start:        sl.Interval.Start,
			End:          sl.Interval.End,
			Disabled:     sl.Disabled,
			ConflictType: string(sl.Conflict),
		})
	}

	log.Debug(
		"slots computed",
		slog.String("tutor_id", tutorID),
		slog.Time("date", date),
		slog.Int("count", len(out)),
	)
	c.JSON(http.StatusOK, gin.H{"slots": out})
}

type windowJSON struct {
	Start string `json:"start" binding:"required"`
	End   string `json:"end" binding:"required"`
}

// POST /v1/availability sets either a recurring rule (day_of_week with
// HH:MM bounds) or a date override (date with concrete windows).
func (s *Server) postAvailability(c *gin.Context) {
	log := s.log.With(slog.String("handler", "postAvailability"))

	var req struct {
		TutorID   string       `json:"tutor_id" binding:"required"`
		DayOfWeek *int         `json:"day_of_week"`
		Start     string       `json:"start"`
		End       string       `json:"end"`
		Date      string       `json:"date"`
		Windows   []windowJSON `json:"windows"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch {
	case req.DayOfWeek != nil:
		rule, err := s.availability.SetRecurring(c.Request.Context(), availability.SetRecurringInput{
			TutorID:   req.TutorID,
			Weekday:   *req.DayOfWeek,
			StartTime: req.Start,
			EndTime:   req.End,
		})
		if err != nil {
			s.writeError(c, log, err)
			return
		}
		log.Info(
			"recurring rule set",
			slog.String("tutor_id", rule.TutorID),
			slog.Int("weekday", rule.Weekday),
		)
		c.JSON(http.StatusOK, gin.H{
			"tutor_id":    rule.TutorID,
			"day_of_week": rule.Weekday,
			"start":       domain.FormatTimeOfDay(rule.StartMinute),
			"end":         domain.FormatTimeOfDay(rule.EndMinute),
		})

	case req.Date != "":
		date, err := parseDate(req.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		windows := make([]domain.Interval, 0, len(req.Windows))
		for _, w := range req.Windows {
			start, err := parseInstant(w.Start)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			end, err := parseInstant(w.End)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			windows = append(windows, domain.Interval{Start: start, End: end})
		}
		ov, err := s.availability.SetOverride(c.Request.Context(), req.TutorID, date, windows)
		if err != nil {
			s.writeError(c, log, err)
			return
		}
		log.Info(
			"override set",
			slog.String("tutor_id", ov.TutorID),
			slog.Time("date", ov.Date),
			slog.Int("windows", len(ov.Windows)),
		)
		c.JSON(http.StatusOK, gin.H{
			"tutor_id": ov.TutorID,
			"date":     ov.Date.Format("2006-01-02"),
			"windows":  ov.Windows,
		})

	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "day_of_week or date is required"})
	}
}

// DELETE /v1/availability/override?tutor_id=&date=
func (s *Server) deleteOverride(c *gin.Context) {
	log := s.log.With(slog.String("handler", "deleteOverride"))

	tutorID := c.Query("tutor_id")
	if tutorID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tutor_id is required"})
		return
	}
	date, err := parseDate(c.Query("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.availability.ClearOverride(c.Request.Context(), tutorID, date); err != nil {
		s.writeError(c, log, err)
		return
	}
	log.Info("override cleared", slog.String("tutor_id", tutorID), slog.Time("date", date))
	c.Status(http.StatusNoContent)
}
