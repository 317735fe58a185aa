package controller

import (
	"context"
	"encoding/json"
	"strconv"

	"examgrader/internal/common/mq"
	"examgrader/internal/grader/model"
	"examgrader/internal/grader/sandbox/result"
	appErr "examgrader/pkg/errors"
	"examgrader/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// GraderService is what the HTTP layer needs from the grading service.
type GraderService interface {
	Execute(ctx context.Context, req model.ExecuteRequest) (model.ExecuteResponse, error)
	GradeSubmission(ctx context.Context, msg model.GradeMessage) (model.GradeStatusResponse, error)
	GetStatus(ctx context.Context, submissionID string) (model.GradeStatusResponse, error)
}

// OutcomeReader loads archived per-case outcomes.
type OutcomeReader interface {
	Get(ctx context.Context, submissionID string) (result.GradeResult, error)
}

// GraderController handles execution and grading requests.
type GraderController struct {
	svc        GraderService
	outcomes   OutcomeReader
	queue      mq.Producer
	gradeTopic string
}

// NewGraderController creates a controller. outcomes and queue may be nil.
func NewGraderController(svc GraderService, outcomes OutcomeReader, queue mq.Producer, gradeTopic string) *GraderController {
	return &GraderController{svc: svc, outcomes: outcomes, queue: queue, gradeTopic: gradeTopic}
}

// Execute runs code against ad-hoc inputs.
func (h *GraderController) Execute(c *gin.Context) {
	var req model.ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Code and language are required.")
		return
	}
	resp, err := h.svc.Execute(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

// Grade grades one submission. With ?async=true the work is queued and the
// caller polls GetStatus.
func (h *GraderController) Grade(c *gin.Context) {
	submissionID := c.Param("id")
	if submissionID == "" {
		response.BadRequest(c, "Invalid submission id")
		return
	}
	var body model.GradeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}
	}
	msg := model.GradeMessage{SubmissionID: submissionID, Questions: body.Questions}

	async, _ := strconv.ParseBool(c.Query("async"))
	if async {
		h.enqueue(c, msg)
		return
	}
	status, err := h.svc.GradeSubmission(c.Request.Context(), msg)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, status)
}

func (h *GraderController) enqueue(c *gin.Context, msg model.GradeMessage) {
	if h.queue == nil || h.gradeTopic == "" {
		response.ErrorWithCode(c, appErr.ServiceUnavailable, "asynchronous grading is not configured")
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		response.Error(c, appErr.Wrapf(err, appErr.InternalServerError, "encode grade message failed"))
		return
	}
	message := mq.NewMessage(payload)
	message.ID = msg.SubmissionID
	if err := h.queue.Publish(c.Request.Context(), h.gradeTopic, message); err != nil {
		response.Error(c, appErr.Wrapf(err, appErr.ServiceUnavailable, "enqueue grade request failed"))
		return
	}
	response.Accepted(c, gin.H{"submission_id": msg.SubmissionID})
}

// GetStatus returns status for one submission.
func (h *GraderController) GetStatus(c *gin.Context) {
	submissionID := c.Param("id")
	if submissionID == "" {
		response.BadRequest(c, "Invalid submission id")
		return
	}
	status, err := h.svc.GetStatus(c.Request.Context(), submissionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, status)
}

// GetOutcomes returns the archived per-case outcomes of a graded submission.
func (h *GraderController) GetOutcomes(c *gin.Context) {
	if h.outcomes == nil {
		response.ErrorWithCode(c, appErr.NotFound, "outcome archive is not configured")
		return
	}
	grade, err := h.outcomes.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, grade)
}
