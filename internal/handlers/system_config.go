package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/ls1intum/thesis-management-sub000/internal/services"
	"github.com/ls1intum/thesis-management-sub000/pkg/response"
	"gorm.io/gorm"
)

type SystemConfigHandler struct {
	configService *services.SystemConfigService
}

func NewSystemConfigHandler(db *gorm.DB) *SystemConfigHandler {
	return &SystemConfigHandler{
		configService: services.NewSystemConfigService(db),
	}
}

// List returns runtime configuration, optionally one group
// GET /api/system-config?group=workflow
func (h *SystemConfigHandler) List(c *gin.Context) {
	var (
		configs interface{}
		err     error
	)
	if group := c.Query("group"); group != "" {
		configs, err = h.configService.GetByGroup(group)
	} else {
		configs, err = h.configService.List()
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, configs)
}

// Update writes a batch of key/value pairs
// PUT /api/system-config
func (h *SystemConfigHandler) Update(c *gin.Context) {
	var req map[string]string
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if len(req) == 0 {
		response.BadRequest(c, "no fields to update")
		return
	}

	if err := h.configService.UpdateBatch(req); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, h.configService.GetWorkflowSwitches())
}

// GetWorkflowSwitches returns the state of the scheduled jobs
// GET /api/system-config/workflow
func (h *SystemConfigHandler) GetWorkflowSwitches(c *gin.Context) {
	response.Success(c, h.configService.GetWorkflowSwitches())
}
