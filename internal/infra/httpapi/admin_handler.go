// internal/infra/httpapi/admin_handler.go
package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"lecture_coordinator_bot/internal/app"
	"lecture_coordinator_bot/internal/domain/lecture"
	idb "lecture_coordinator_bot/internal/infra/database"
)

// AdminHandler exposes the operational entry points that are not driven by
// inbound WhatsApp events: direct lecture edits, the day-of reminder nudge
// and the ongoing announcement.
type AdminHandler struct {
	admin     app.AdminService
	reminders app.ReminderService
	logger    *logrus.Logger
	location  *time.Location
}

func NewAdminHandler(admin app.AdminService, reminders app.ReminderService, logger *logrus.Logger, location *time.Location) *AdminHandler {
	return &AdminHandler{admin: admin, reminders: reminders, logger: logger, location: location}
}

func (h *AdminHandler) Register(r *gin.Engine) {
	r.PATCH("/admin/lectures/:id", h.updateLecture)
	r.POST("/admin/lectures/:id/reminder", h.sendReminder)
	r.POST("/admin/lectures/:id/announce", h.announceOngoing)
}

type updateLectureRequest struct {
	Course      *string `json:"course"`
	Location    *string `json:"location"`
	Description *string `json:"description"`
	StartTime   *string `json:"start_time"` // RFC 3339
	EndTime     *string `json:"end_time"`
	Status      *string `json:"status"`

	// LecturerName renames a lecturer entry; LecturerID selects it when the
	// lecture has more than one lecturer.
	LecturerID   *int64  `json:"lecturer_id"`
	LecturerName *string `json:"lecturer_name"`

	// SuppressNotifications skips the student notification step entirely.
	SuppressNotifications bool `json:"suppress_notifications"`
}

func (h *AdminHandler) updateLecture(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lecture id"})
		return
	}
	var req updateLectureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	patch := app.LecturePatch{
		Course:       req.Course,
		Location:     req.Location,
		Description:  req.Description,
		LecturerID:   req.LecturerID,
		LecturerName: req.LecturerName,
	}
	if req.StartTime != nil {
		t, err := time.Parse(time.RFC3339, *req.StartTime)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_time"})
			return
		}
		t = t.In(h.location)
		patch.StartTime = &t
	}
	if req.EndTime != nil {
		t, err := time.Parse(time.RFC3339, *req.EndTime)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_time"})
			return
		}
		t = t.In(h.location)
		patch.EndTime = &t
	}
	if req.Status != nil {
		s := lecture.Status(*req.Status)
		patch.Status = &s
	}

	lec, err := h.admin.UpdateLecture(c.Request.Context(), id, patch, !req.SuppressNotifications)
	if err != nil {
		if errors.Is(err, idb.ErrLectureNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "lecture not found"})
			return
		}
		h.logger.WithField("lecture_id", id).Error("Lecture update failed: ", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": lec.ID, "status": lec.Status})
}

type reminderRequest struct {
	Mode string `json:"mode"` // "session" or "template"
}

func (h *AdminHandler) sendReminder(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lecture id"})
		return
	}
	var req reminderRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err = h.reminders.SendReminder(c.Request.Context(), id, req.Mode)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "sent"})
	case errors.Is(err, idb.ErrLectureNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "lecture not found"})
	case errors.Is(err, app.ErrLectureNotToday):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "lecture does not start today"})
	case errors.Is(err, app.ErrLectureLocked):
		c.JSON(http.StatusConflict, gin.H{"error": "decision already locked"})
	case errors.Is(err, app.ErrNoReminderDelivered):
		c.JSON(http.StatusBadGateway, gin.H{"error": "no reminder could be delivered"})
	default:
		h.logger.WithField("lecture_id", id).Error("Reminder dispatch failed: ", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reminder failed"})
	}
}

func (h *AdminHandler) announceOngoing(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lecture id"})
		return
	}

	err = h.reminders.AnnounceOngoing(c.Request.Context(), id)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "announced"})
	case errors.Is(err, idb.ErrLectureNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "lecture not found"})
	case errors.Is(err, app.ErrLectureNotToday):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "lecture does not start today"})
	case errors.Is(err, app.ErrAlreadyAnnounced):
		c.JSON(http.StatusConflict, gin.H{"error": "already announced"})
	default:
		h.logger.WithField("lecture_id", id).Error("Announcement failed: ", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "announcement failed"})
	}
}
