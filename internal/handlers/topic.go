package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/ls1intum/thesis-management-sub000/internal/middleware"
	"github.com/ls1intum/thesis-management-sub000/internal/services"
	"github.com/ls1intum/thesis-management-sub000/pkg/response"
)

type TopicHandler struct {
	topicService *services.TopicService
}

func NewTopicHandler(topicService *services.TopicService) *TopicHandler {
	return &TopicHandler{topicService: topicService}
}

type closeTopicRequest struct {
	Reason     string `json:"reason"`
	NotifyUser bool   `json:"notify_user"`
}

// List returns topics visible to the actor
// GET /api/topics
func (h *TopicHandler) List(c *gin.Context) {
	groupID, ok := queryUUID(c, "research_group_id")
	if !ok {
		return
	}
	page, pageSize := pagination(c)

	resp, err := h.topicService.ListTopics(c.Request.Context(), middleware.GetActor(c), &services.TopicListParams{
		ResearchGroupID: groupID,
		States:          queryList(c, "state"),
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

// GET /api/topics/:id
func (h *TopicHandler) Get(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	topic, err := h.topicService.GetTopic(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, topic)
}

// POST /api/topics
func (h *TopicHandler) Create(c *gin.Context) {
	var req services.TopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	topic, err := h.topicService.CreateTopic(c.Request.Context(), middleware.GetActor(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, topic)
}

// PUT /api/topics/:id
func (h *TopicHandler) Update(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req services.TopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	topic, err := h.topicService.UpdateTopic(c.Request.Context(), middleware.GetActor(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, topic)
}

// POST /api/topics/:id/publish
func (h *TopicHandler) Publish(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	topic, err := h.topicService.PublishTopic(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, topic)
}

// Close closes a topic and rejects its pending applications
// POST /api/topics/:id/close
func (h *TopicHandler) Close(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req closeTopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	rejected, err := h.topicService.CloseTopic(c.Request.Context(), middleware.GetActor(c), id, req.Reason, req.NotifyUser)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"rejected_applications": rejected})
}
