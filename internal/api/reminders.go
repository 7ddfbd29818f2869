package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nhle/hotel-ops/internal/model"
	"github.com/nhle/hotel-ops/internal/reminder"
)

// reminderRequest is reminder.Input with a start date that may be a bare
// "YYYY-MM-DD" calendar date.
type reminderRequest struct {
	Message      string             `json:"message"`
	ScheduleType model.ScheduleType `json:"schedule_type"`
	StartDate    string             `json:"start_date"`
	StartTime    string             `json:"start_time"`
	Shifts       []model.Shift      `json:"shifts"`
	Recurrence   *model.Recurrence  `json:"recurrence"`
}

func (r reminderRequest) input() (reminder.Input, error) {
	in := reminder.Input{
		Message:      r.Message,
		ScheduleType: r.ScheduleType,
		StartTime:    r.StartTime,
		Shifts:       r.Shifts,
		Recurrence:   r.Recurrence,
	}

	raw := strings.TrimSpace(r.StartDate)
	if raw == "" {
		return in, nil
	}
	d, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		d, err = time.Parse(time.RFC3339, raw)
	}
	if err != nil {
		return in, badRequest("start_date must be YYYY-MM-DD or RFC 3339, got %q", raw)
	}
	in.StartDate = &d
	return in, nil
}

// setReminder attaches a reminder to a saved task, replacing its
// previous one.
func (s *Server) setReminder(c *gin.Context) {
	ctx := c.Request.Context()

	var req reminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest("%v", err))
		return
	}
	in, err := req.input()
	if err != nil {
		s.fail(c, err)
		return
	}

	task, err := s.store.GetTask(ctx, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}

	out, err := s.reminders.BufferOrPersist(ctx, *task, in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"reminder": out.Reminder,
		"linked":   out.Linked,
	})
}

// createDraft buffers a reminder for a task that does not exist yet and
// returns the token to pass as draft_token when creating it.
func (s *Server) createDraft(c *gin.Context) {
	ctx := c.Request.Context()

	var req reminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest("%v", err))
		return
	}
	in, err := req.input()
	if err != nil {
		s.fail(c, err)
		return
	}

	out, err := s.reminders.BufferOrPersist(ctx, model.Task{}, in)
	if err != nil {
		s.fail(c, err)
		return
	}
	token, err := s.drafts.Put(ctx, *out.Buffered)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"draft_token": token,
		"reminder":    out.Buffered,
	})
}
