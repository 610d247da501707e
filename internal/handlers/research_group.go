package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/ls1intum/thesis-management-sub000/internal/middleware"
	"github.com/ls1intum/thesis-management-sub000/internal/services"
	"github.com/ls1intum/thesis-management-sub000/pkg/response"
)

type ResearchGroupHandler struct {
	groupService *services.ResearchGroupService
}

func NewResearchGroupHandler(groupService *services.ResearchGroupService) *ResearchGroupHandler {
	return &ResearchGroupHandler{groupService: groupService}
}

type archiveRequest struct {
	Archived bool `json:"archived"`
}

// GET /api/research-groups
func (h *ResearchGroupHandler) List(c *gin.Context) {
	page, pageSize := pagination(c)
	resp, err := h.groupService.ListResearchGroups(c.Request.Context(), middleware.GetActor(c), &services.ResearchGroupListParams{
		IncludeArchived: c.Query("include_archived") == "true",
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

// GET /api/research-groups/:id
func (h *ResearchGroupHandler) Get(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	group, err := h.groupService.GetResearchGroup(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, group)
}

// POST /api/research-groups
func (h *ResearchGroupHandler) Create(c *gin.Context) {
	var req services.ResearchGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	group, err := h.groupService.CreateResearchGroup(c.Request.Context(), middleware.GetActor(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, group)
}

// PUT /api/research-groups/:id
func (h *ResearchGroupHandler) Update(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req services.ResearchGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	group, err := h.groupService.UpdateResearchGroup(c.Request.Context(), middleware.GetActor(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, group)
}

// PUT /api/research-groups/:id/archive
func (h *ResearchGroupHandler) Archive(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req archiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	group, err := h.groupService.ArchiveResearchGroup(c.Request.Context(), middleware.GetActor(c), id, req.Archived)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, group)
}

// GET /api/research-groups/:id/settings
func (h *ResearchGroupHandler) GetSettings(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	settings, err := h.groupService.GetSettings(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, settings)
}

// PUT /api/research-groups/:id/settings
func (h *ResearchGroupHandler) UpdateSettings(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req services.ResearchGroupSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	settings, err := h.groupService.UpdateSettings(c.Request.Context(), middleware.GetActor(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, settings)
}

// GET /api/research-groups/:id/members
func (h *ResearchGroupHandler) ListMembers(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	members, err := h.groupService.ListMembers(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, members)
}

// PUT /api/research-groups/:id/members/:user_id
func (h *ResearchGroupHandler) AssignMember(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	userID, ok := paramUUID(c, "user_id")
	if !ok {
		return
	}
	user, err := h.groupService.AssignMember(c.Request.Context(), middleware.GetActor(c), id, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, user)
}

// DELETE /api/research-groups/:id/members/:user_id
func (h *ResearchGroupHandler) RemoveMember(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	userID, ok := paramUUID(c, "user_id")
	if !ok {
		return
	}
	if err := h.groupService.RemoveMember(c.Request.Context(), middleware.GetActor(c), id, userID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"message": "member removed"})
}
