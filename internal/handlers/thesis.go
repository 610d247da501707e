package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ls1intum/thesis-management-sub000/internal/middleware"
	"github.com/ls1intum/thesis-management-sub000/internal/models"
	"github.com/ls1intum/thesis-management-sub000/internal/services"
	"github.com/ls1intum/thesis-management-sub000/pkg/response"
)

type ThesisHandler struct {
	thesisService  *services.ThesisService
	maxUploadBytes int64
}

func NewThesisHandler(thesisService *services.ThesisService, maxUploadBytes int64) *ThesisHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 25 << 20
	}
	return &ThesisHandler{thesisService: thesisService, maxUploadBytes: maxUploadBytes}
}

type requestChangesRequest struct {
	Type  string   `json:"type" binding:"required"`
	Items []string `json:"items" binding:"required"`
}

type completeFeedbackRequest struct {
	Completed bool `json:"completed"`
}

type schedulePresentationRequest struct {
	NotifyUsers bool `json:"notify_users"`
}

// GET /api/theses
func (h *ThesisHandler) List(c *gin.Context) {
	groupID, ok := queryUUID(c, "research_group_id")
	if !ok {
		return
	}
	page, pageSize := pagination(c)

	resp, err := h.thesisService.ListTheses(c.Request.Context(), middleware.GetActor(c), &services.ThesisListParams{
		States:          queryList(c, "state"),
		ResearchGroupID: groupID,
		Search:          c.Query("search"),
		OnlyOwn:         c.Query("only_own") == "true",
		Page:            page,
		PageSize:        pageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

// GET /api/theses/:id
func (h *ThesisHandler) Get(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	thesis, err := h.thesisService.GetThesis(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, thesis)
}

// POST /api/theses
func (h *ThesisHandler) Create(c *gin.Context) {
	var req services.CreateThesisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	thesis, err := h.thesisService.CreateThesis(c.Request.Context(), middleware.GetActor(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, thesis)
}

// PUT /api/theses/:id
func (h *ThesisHandler) Update(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req services.UpdateThesisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	thesis, err := h.thesisService.UpdateThesis(c.Request.Context(), middleware.GetActor(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, thesis)
}

// PUT /api/theses/:id/info
func (h *ThesisHandler) UpdateInfo(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req services.UpdateThesisInfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	thesis, err := h.thesisService.UpdateThesisInfo(c.Request.Context(), middleware.GetActor(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, thesis)
}

// Proposal

// POST /api/theses/:id/proposal (multipart field "proposal")
func (h *ThesisHandler) UploadProposal(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	upload, ok := readUpload(c, "proposal", h.maxUploadBytes, true)
	if !ok {
		return
	}
	thesis, err := h.thesisService.UploadProposal(c.Request.Context(), middleware.GetActor(c), id, upload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, thesis)
}

// PUT /api/theses/:id/proposal/accept
func (h *ThesisHandler) AcceptProposal(c *gin.Context) {
	h.transition(c, h.thesisService.AcceptProposal)
}

// GET /api/theses/:id/proposal/:proposal_id
func (h *ThesisHandler) DownloadProposal(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	proposalID, ok := paramUUID(c, "proposal_id")
	if !ok {
		return
	}
	doc, err := h.thesisService.DownloadProposal(c.Request.Context(), middleware.GetActor(c), id, proposalID)
	if err != nil {
		response.Error(c, err)
		return
	}
	sendDocument(c, doc)
}

// DELETE /api/theses/:id/proposal/:proposal_id
func (h *ThesisHandler) DeleteProposal(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	proposalID, ok := paramUUID(c, "proposal_id")
	if !ok {
		return
	}
	thesis, err := h.thesisService.DeleteProposal(c.Request.Context(), middleware.GetActor(c), id, proposalID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, thesis)
}

// Files

// POST /api/theses/:id/files (multipart fields "type" and "file")
func (h *ThesisHandler) UploadFile(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	fileType := c.PostForm("type")
	if fileType == "" {
		response.BadRequest(c, "file type is required")
		return
	}
	upload, ok := readUpload(c, "file", h.maxUploadBytes, true)
	if !ok {
		return
	}
	thesis, err := h.thesisService.UploadThesisFile(c.Request.Context(), middleware.GetActor(c), id, fileType, upload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, thesis)
}

// GET /api/theses/:id/files/:file_id
func (h *ThesisHandler) DownloadFile(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	fileID, ok := paramUUID(c, "file_id")
	if !ok {
		return
	}
	doc, err := h.thesisService.DownloadThesisFile(c.Request.Context(), middleware.GetActor(c), id, fileID)
	if err != nil {
		response.Error(c, err)
		return
	}
	sendDocument(c, doc)
}

// DELETE /api/theses/:id/files/:file_id
func (h *ThesisHandler) DeleteFile(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	fileID, ok := paramUUID(c, "file_id")
	if !ok {
		return
	}
	thesis, err := h.thesisService.DeleteThesisFile(c.Request.Context(), middleware.GetActor(c), id, fileID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, thesis)
}

// Feedback

// POST /api/theses/:id/feedback
func (h *ThesisHandler) RequestChanges(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req requestChangesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	thesis, err := h.thesisService.RequestChanges(c.Request.Context(), middleware.GetActor(c), id, req.Type, req.Items)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, thesis)
}

// PUT /api/theses/:id/feedback/:feedback_id
func (h *ThesisHandler) CompleteFeedback(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	feedbackID, ok := paramUUID(c, "feedback_id")
	if !ok {
		return
	}
	var req completeFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	thesis, err := h.thesisService.CompleteFeedback(c.Request.Context(), middleware.GetActor(c), id, feedbackID, req.Completed)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, thesis)
}

// DELETE /api/theses/:id/feedback/:feedback_id
func (h *ThesisHandler) DeleteFeedback(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	feedbackID, ok := paramUUID(c, "feedback_id")
	if !ok {
		return
	}
	thesis, err := h.thesisService.DeleteFeedback(c.Request.Context(), middleware.GetActor(c), id, feedbackID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, thesis)
}

// Comments

// GET /api/theses/:id/comments?type=THESIS_COMMENTS
func (h *ThesisHandler) ListComments(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	page, pageSize := pagination(c)
	resp, err := h.thesisService.ListComments(c.Request.Context(), middleware.GetActor(c), id, c.Query("type"), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

// POST /api/theses/:id/comments (multipart fields "type", "message" and optional "file")
func (h *ThesisHandler) PostComment(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	attachment, ok := readUpload(c, "file", h.maxUploadBytes, false)
	if !ok {
		return
	}
	comment, err := h.thesisService.PostComment(c.Request.Context(), middleware.GetActor(c), id,
		c.PostForm("type"), c.PostForm("message"), attachment)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, comment)
}

// GET /api/theses/:id/comments/:comment_id/file
func (h *ThesisHandler) DownloadCommentAttachment(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	commentID, ok := paramUUID(c, "comment_id")
	if !ok {
		return
	}
	doc, err := h.thesisService.DownloadCommentAttachment(c.Request.Context(), middleware.GetActor(c), id, commentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	sendDocument(c, doc)
}

// DELETE /api/theses/:id/comments/:comment_id
func (h *ThesisHandler) DeleteComment(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	commentID, ok := paramUUID(c, "comment_id")
	if !ok {
		return
	}
	if err := h.thesisService.DeleteComment(c.Request.Context(), middleware.GetActor(c), id, commentID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"message": "comment deleted"})
}

// Lifecycle

// PUT /api/theses/:id/submit
func (h *ThesisHandler) Submit(c *gin.Context) {
	h.transition(c, h.thesisService.SubmitThesis)
}

// POST /api/theses/:id/assessment
func (h *ThesisHandler) SubmitAssessment(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req services.AssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	thesis, err := h.thesisService.SubmitAssessment(c.Request.Context(), middleware.GetActor(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, thesis)
}

// POST /api/theses/:id/grade
func (h *ThesisHandler) Grade(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req services.GradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	thesis, err := h.thesisService.GradeThesis(c.Request.Context(), middleware.GetActor(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, thesis)
}

// PUT /api/theses/:id/complete
func (h *ThesisHandler) Complete(c *gin.Context) {
	h.transition(c, h.thesisService.CompleteThesis)
}

// DELETE /api/theses/:id
func (h *ThesisHandler) Close(c *gin.Context) {
	h.transition(c, h.thesisService.CloseThesis)
}

// Presentations

// POST /api/theses/:id/presentations
func (h *ThesisHandler) CreatePresentation(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req services.PresentationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	thesis, err := h.thesisService.CreatePresentation(c.Request.Context(), middleware.GetActor(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, thesis)
}

// PUT /api/theses/:id/presentations/:presentation_id
func (h *ThesisHandler) UpdatePresentation(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	presentationID, ok := paramUUID(c, "presentation_id")
	if !ok {
		return
	}
	var req services.PresentationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	thesis, err := h.thesisService.UpdatePresentation(c.Request.Context(), middleware.GetActor(c), id, presentationID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, thesis)
}

// POST /api/theses/:id/presentations/:presentation_id/schedule
func (h *ThesisHandler) SchedulePresentation(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	presentationID, ok := paramUUID(c, "presentation_id")
	if !ok {
		return
	}
	var req schedulePresentationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	thesis, err := h.thesisService.SchedulePresentation(c.Request.Context(), middleware.GetActor(c), id, presentationID, req.NotifyUsers)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, thesis)
}

// DELETE /api/theses/:id/presentations/:presentation_id
func (h *ThesisHandler) DeletePresentation(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	presentationID, ok := paramUUID(c, "presentation_id")
	if !ok {
		return
	}
	thesis, err := h.thesisService.DeletePresentation(c.Request.Context(), middleware.GetActor(c), id, presentationID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, thesis)
}

type thesisTransition func(ctx context.Context, actor *models.User, id uuid.UUID) (*models.Thesis, error)

// transition runs a body-less state change on the thesis named by :id
func (h *ThesisHandler) transition(c *gin.Context, fn thesisTransition) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	thesis, err := fn(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, thesis)
}
