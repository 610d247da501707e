package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ls1intum/thesis-management-sub000/internal/middleware"
	"github.com/ls1intum/thesis-management-sub000/internal/models"
	"github.com/ls1intum/thesis-management-sub000/pkg/response"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserHandler struct {
	db *gorm.DB
}

func NewUserHandler(db *gorm.DB) *UserHandler {
	return &UserHandler{db: db}
}

// List returns users for administration and for staff picking role holders.
// GET /api/users?group=advisor&search=...&research_group_id=...
func (h *UserHandler) List(c *gin.Context) {
	actor := middleware.GetActor(c)
	if actor == nil || !(actor.IsAdmin() || actor.IsStaff()) {
		response.Forbidden(c, "staff access required")
		return
	}
	page, pageSize := pagination(c)
	groupID, ok := queryUUID(c, "research_group_id")
	if !ok {
		return
	}

	query := h.db.Model(&models.User{})
	if search := c.Query("search"); search != "" {
		like := "%" + search + "%"
		query = query.Where("username LIKE ? OR first_name LIKE ? OR last_name LIKE ? OR email LIKE ? OR university_id LIKE ?",
			like, like, like, like, like)
	}
	if groups := queryList(c, "group"); len(groups) > 0 {
		query = query.Where("id IN (?)", h.db.Model(&models.UserGroup{}).Select("user_id").
			Where(clause.IN{Column: clause.Column{Name: "group"}, Values: toInterfaces(groups)}))
	}
	if groupID != nil {
		query = query.Where("research_group_id = ?", *groupID)
	}
	if authType := c.Query("auth_type"); authType != "" && actor.IsAdmin() {
		query = query.Where("auth_type = ?", authType)
	}
	if !actor.IsAdmin() {
		query = query.Where("is_active = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		response.Error(c, err)
		return
	}
	var users []models.User
	if err := query.Preload("Groups").Order("last_name ASC, first_name ASC").
		Offset((page - 1) * pageSize).Limit(pageSize).Find(&users).Error; err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{
		"items":     users,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

type UpdateUserRequest struct {
	Groups          *[]string  `json:"groups"`
	IsActive        *bool      `json:"is_active"`
	FirstName       *string    `json:"first_name"`
	LastName        *string    `json:"last_name"`
	Email           *string    `json:"email"`
	MatriculationNo *string    `json:"matriculation_number"`
	ResearchGroupID *uuid.UUID `json:"research_group_id"`
}

// Update changes a user's profile, active flag and group memberships
// PUT /api/users/:id
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	if id == middleware.GetUserID(c) {
		response.BadRequest(c, "cannot modify your own account")
		return
	}

	var user models.User
	if err := h.db.Where("id = ?", id).First(&user).Error; err != nil {
		response.NotFound(c, "user not found")
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	updates := make(map[string]interface{})
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.FirstName != nil {
		updates["first_name"] = *req.FirstName
	}
	if req.LastName != nil {
		updates["last_name"] = *req.LastName
	}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if req.MatriculationNo != nil {
		updates["matriculation_no"] = *req.MatriculationNo
	}
	if req.ResearchGroupID != nil {
		if *req.ResearchGroupID == uuid.Nil {
			updates["research_group_id"] = nil
		} else {
			updates["research_group_id"] = *req.ResearchGroupID
		}
	}
	if req.Groups != nil {
		for _, g := range *req.Groups {
			if !containsString(models.AllGroups, g) {
				response.BadRequest(c, "invalid group: "+g)
				return
			}
		}
	}

	if len(updates) == 0 && req.Groups == nil {
		response.BadRequest(c, "no fields to update")
		return
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(&user).Omit(clause.Associations).Updates(updates).Error; err != nil {
				return err
			}
		}
		if req.Groups == nil {
			return nil
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.UserGroup{}).Error; err != nil {
			return err
		}
		for _, g := range dedupe(*req.Groups) {
			if err := tx.Create(&models.UserGroup{UserID: user.ID, Group: g}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	h.db.Preload("Groups").Preload("ResearchGroup").Where("id = ?", id).First(&user)
	response.Success(c, user)
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func toInterfaces(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
