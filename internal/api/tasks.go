package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nhle/hotel-ops/internal/assign"
	"github.com/nhle/hotel-ops/internal/board"
	"github.com/nhle/hotel-ops/internal/model"
	"github.com/nhle/hotel-ops/internal/store"
)

type createTaskRequest struct {
	Title        string           `json:"title" binding:"required"`
	Location     string           `json:"location"`
	Priority     int              `json:"priority"`
	AssignedTo   []string         `json:"assigned_to"`
	AssigneeName string           `json:"assignee_name"`
	DraftToken   string           `json:"draft_token"`
	Reminder     *reminderRequest `json:"reminder"`
}

type moveRequest struct {
	To     string `json:"to"`
	Action string `json:"action"`
}

type moveResponse struct {
	Task    *model.Task  `json:"task"`
	From    model.Status `json:"from"`
	Changed bool         `json:"changed"`
}

type assignRequest struct {
	UserIDs []string `json:"user_ids"`
}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func (s *Server) listTasks(c *gin.Context) {
	var filter store.TaskFilter

	if raw := c.Query("status"); raw != "" {
		st, err := model.ParseStatus(raw)
		if err != nil {
			s.fail(c, badRequest("%v", err))
			return
		}
		filter.Status = &st
	}
	filter.AssignedTo = c.Query("assigned_to")

	var err error
	if filter.Limit, err = intQuery(c, "limit"); err != nil {
		s.fail(c, err)
		return
	}
	if filter.Offset, err = intQuery(c, "offset"); err != nil {
		s.fail(c, err)
		return
	}

	tasks, err := s.store.ListTasks(c.Request.Context(), filter)
	if err != nil {
		s.fail(c, err)
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func intQuery(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, badRequest("%s must be a non-negative integer", name)
	}
	return n, nil
}

func (s *Server) getTask(c *gin.Context) {
	task, err := s.store.GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// createTask creates a task, folding in a reminder given inline or
// parked earlier under a draft token.
func (s *Server) createTask(c *gin.Context) {
	ctx := c.Request.Context()

	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest("%v", err))
		return
	}
	if req.DraftToken != "" && req.Reminder != nil {
		s.fail(c, badRequest("draft_token and reminder are mutually exclusive"))
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		s.fail(c, badRequest("title must not be empty"))
		return
	}

	_, members := assign.Merge(nil, req.AssignedTo)
	if len(members) > model.MaxAssignees {
		s.fail(c, fmt.Errorf("%w: %d selected, at most %d allowed",
			assign.ErrTooManyAssignees, len(members), model.MaxAssignees))
		return
	}
	if len(members) > 0 {
		if err := s.merger.CheckUsers(ctx, members); err != nil {
			s.fail(c, err)
			return
		}
	}

	nt := model.NewTask{
		Title:        req.Title,
		Location:     req.Location,
		Priority:     req.Priority,
		AssignedTo:   members,
		AssigneeName: req.AssigneeName,
	}

	switch {
	case req.Reminder != nil:
		in, err := req.Reminder.input()
		if err != nil {
			s.fail(c, err)
			return
		}
		out, err := s.reminders.BufferOrPersist(ctx, model.Task{}, in)
		if err != nil {
			s.fail(c, err)
			return
		}
		nt.Reminder = out.Buffered
	case req.DraftToken != "":
		// Taken last: a draft is consumed only by a request that is
		// otherwise valid.
		buffered, err := s.drafts.Take(ctx, req.DraftToken)
		if err != nil {
			s.fail(c, err)
			return
		}
		nt.Reminder = buffered
	}

	task, err := s.store.CreateTask(ctx, nt)
	if err != nil {
		if req.DraftToken != "" {
			s.restoreDraft(ctx, req.DraftToken, nt.Reminder)
		}
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

// restoreDraft puts a taken draft back under its token so the client
// can retry after a failed create.
func (s *Server) restoreDraft(ctx context.Context, token string, r *model.BufferedReminder) {
	if r == nil {
		return
	}
	if err := s.drafts.Restore(ctx, token, *r); err != nil {
		s.logger.Warnw("restoring draft reminder", "token", token, "error", err)
	}
}

// moveTask moves a task to the column named by "to", or the column an
// "action" such as reopen leads to.
func (s *Server) moveTask(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest("%v", err))
		return
	}
	if (req.To == "") == (req.Action == "") {
		s.fail(c, badRequest("exactly one of to and action is required"))
		return
	}

	var to model.Status
	if req.To != "" {
		st, err := model.ParseStatus(req.To)
		if err != nil {
			s.fail(c, badRequest("%v", err))
			return
		}
		to = st
	} else {
		action, err := board.ParseAction(req.Action)
		if err != nil {
			s.fail(c, badRequest("%v", err))
			return
		}
		current, err := s.store.GetTask(ctx, id)
		if err != nil {
			s.fail(c, err)
			return
		}
		to, _, err = board.Next(current.Status, action)
		if err != nil {
			s.fail(c, badRequest("%v", err))
			return
		}
	}

	task, m, err := s.coord.MoveStored(ctx, id, to)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, moveResponse{Task: task, From: m.From, Changed: m.Changed})
}

func (s *Server) assignMembers(c *gin.Context) {
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest("%v", err))
		return
	}

	res, err := s.merger.MergeAssign(c.Request.Context(), c.Param("id"), req.UserIDs)
	if err != nil {
		s.fail(c, err)
		return
	}
	if res.Added == nil {
		res.Added = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"task_id":     res.TaskID,
		"assigned_to": res.Assignees,
		"added":       res.Added,
	})
}

func (s *Server) listNotifications(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	if _, err := s.store.GetTask(ctx, id); err != nil {
		s.fail(c, err)
		return
	}
	deliveries, err := s.store.ListDeliveries(ctx, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	if deliveries == nil {
		deliveries = []model.Delivery{}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": deliveries})
}

func (s *Server) listUsers(c *gin.Context) {
	users, err := s.store.ListUsers(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}
