package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/ls1intum/thesis-management-sub000/internal/middleware"
	"github.com/ls1intum/thesis-management-sub000/internal/services"
	"github.com/ls1intum/thesis-management-sub000/pkg/response"
)

type ApplicationHandler struct {
	applicationService *services.ApplicationService
}

func NewApplicationHandler(applicationService *services.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{applicationService: applicationService}
}

type applicationCommentRequest struct {
	Comment string `json:"comment"`
}

type reviewApplicationRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type rejectApplicationRequest struct {
	Reason     string `json:"reason" binding:"required"`
	NotifyUser bool   `json:"notify_user"`
}

// GET /api/applications
func (h *ApplicationHandler) List(c *gin.Context) {
	topicID, ok := queryUUID(c, "topic_id")
	if !ok {
		return
	}
	groupID, ok := queryUUID(c, "research_group_id")
	if !ok {
		return
	}
	page, pageSize := pagination(c)

	resp, err := h.applicationService.ListApplications(c.Request.Context(), middleware.GetActor(c), &services.ApplicationListParams{
		States:          queryList(c, "state"),
		TopicID:         topicID,
		ResearchGroupID: groupID,
		Search:          c.Query("search"),
		Page:            page,
		PageSize:        pageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

// GET /api/applications/:id
func (h *ApplicationHandler) Get(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	app, err := h.applicationService.GetApplication(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, app)
}

// POST /api/applications
func (h *ApplicationHandler) Create(c *gin.Context) {
	var req services.CreateApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	app, err := h.applicationService.CreateApplication(c.Request.Context(), middleware.GetActor(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, app)
}

// PUT /api/applications/:id
func (h *ApplicationHandler) Update(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req services.UpdateApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	app, err := h.applicationService.UpdateApplication(c.Request.Context(), middleware.GetActor(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, app)
}

// PUT /api/applications/:id/comment
func (h *ApplicationHandler) UpdateComment(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req applicationCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	app, err := h.applicationService.UpdateComment(c.Request.Context(), middleware.GetActor(c), id, req.Comment)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, app)
}

// PUT /api/applications/:id/review
func (h *ApplicationHandler) Review(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req reviewApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	app, err := h.applicationService.ReviewApplication(c.Request.Context(), middleware.GetActor(c), id, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, app)
}

// Accept accepts an application and creates its thesis
// PUT /api/applications/:id/accept
func (h *ApplicationHandler) Accept(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req services.AcceptApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	changed, err := h.applicationService.AcceptApplication(c.Request.Context(), middleware.GetActor(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, changed)
}

// PUT /api/applications/:id/reject
func (h *ApplicationHandler) Reject(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req rejectApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	changed, err := h.applicationService.RejectApplication(c.Request.Context(), middleware.GetActor(c), id, req.Reason, req.NotifyUser)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, changed)
}
