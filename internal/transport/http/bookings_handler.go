package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"tutorflow/backend/internal/domain"
	"tutorflow/backend/internal/service/bookings"
)

type bookingJSON struct {
	BookingID   string    `json:"booking_id"`
	TutorID     string    `json:"tutor_id"`
	StudentID   string    `json:"student_id"`
	CourseID    string    `json:"course_id"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Status      string    `json:"status"`
	MeetingLink string    `json:"meeting_link,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toBookingJSON(b domain.Booking) bookingJSON {
	return bookingJSON{
		BookingID:   b.ID.String(),
		TutorID:     b.TutorID,
		StudentID:   b.StudentID,
		CourseID:    b.CourseID,
		Start:       b.StartTime,
		End:         b.EndTime,
		Status:      string(b.Status),
		MeetingLink: b.MeetingLink,
		Notes:       b.Notes,
		CreatedAt:   b.CreatedAt,
	}
}

// POST /v1/bookings
func (s *Server) createBooking(c *gin.Context) {
	log := s.log.With(slog.String("handler", "createBooking"))

	var req struct {
		TutorID   string `json:"tutor_id" binding:"required"`
		StudentID string `json:"student_id" binding:"required"`
		CourseID  string `json:"course_id" binding:"required"`
		Start     string `json:"start" binding:"required"`
		End       string `json:"end" binding:"required"`
		Notes     string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	start, err := parseInstant(req.Start)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	end, err := parseInstant(req.End)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	b, err := s.bookings.Create(c.Request.Context(), bookings.CreateInput{
		TutorID:   req.TutorID,
		StudentID: req.StudentID,
		CourseID:  req.CourseID,
		StartTime: start,
		EndTime:   end,
		Notes:     req.Notes,
	})
	if err != nil {
		s.writeError(c, log, err)
		return
	}

	log.Info(
		"booking created",
		slog.String("booking_id", b.ID.String()),
		slog.String("tutor_id", b.TutorID),
		slog.String("student_id", b.StudentID),
		slog.Time("start", b.StartTime),
		slog.Time("end", b.EndTime),
	)
	c.JSON(http.StatusCreated, gin.H{"booking_id": b.ID.String(), "status": string(b.Status)})
}

// PATCH /v1/bookings/:id
func (s *Server) patchBooking(c *gin.Context) {
	log := s.log.With(slog.String("handler", "patchBooking"))

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "booking id must be a UUID"})
		return
	}
	var req struct {
		Status  string `json:"status" binding:"required"`
		ActorID string `json:"actor_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var b domain.Booking
	switch domain.BookingStatus(req.Status) {
	case domain.BookingStatusConfirmed:
		b, err = s.bookings.Accept(c.Request.Context(), id, req.ActorID)
	case domain.BookingStatusCancelled:
		b, err = s.bookings.Cancel(c.Request.Context(), id, req.ActorID)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be confirmed or cancelled"})
		return
	}
	if err != nil {
		s.writeError(c, log, err)
		return
	}

	log.Info(
		"booking status changed",
		slog.String("booking_id", b.ID.String()),
		slog.String("status", string(b.Status)),
		slog.String("actor_id", req.ActorID),
	)
	c.JSON(http.StatusOK, gin.H{"booking_id": b.ID.String(), "status": string(b.Status)})
}

// GET /v1/bookings/:id
func (s *Server) getBooking(c *gin.Context) {
	log := s.log.With(slog.String("handler", "getBooking"))

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "booking id must be a UUID"})
		return
	}
	b, err := s.bookings.Get(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, toBookingJSON(b))
}

// GET /v1/bookings?party_id=&date=
func (s *Server) listBookings(c *gin.Context) {
	log := s.log.With(slog.String("handler", "listBookings"))

	partyID := c.Query("party_id")
	if partyID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "party_id is required"})
		return
	}
	date, err := parseDate(c.Query("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rows, err := s.bookings.ListForParty(c.Request.Context(), partyID, date)
	if err != nil {
		s.writeError(c, log, err)
		return
	}
	out := make([]bookingJSON, 0, len(rows))
	for _, b := range rows {
		out = append(out, toBookingJSON(b))
	}
	c.JSON(http.StatusOK, gin.H{"bookings": out})
}
