package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ls1intum/thesis-management-sub000/internal/config"
	"github.com/ls1intum/thesis-management-sub000/internal/models"
	"github.com/ls1intum/thesis-management-sub000/internal/utils"
	"github.com/ls1intum/thesis-management-sub000/pkg/response"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AuthService struct {
	db          *gorm.DB
	ldapService *LDAPService
	ldapEnabled bool
	jwtConfig   *config.JWTConfig
	configSvc   *SystemConfigService
	now         func() time.Time
}

func NewAuthService(db *gorm.DB, jwtCfg *config.JWTConfig, ldapCfg *config.LDAPConfig) *AuthService {
	s := &AuthService{
		db:        db,
		jwtConfig: jwtCfg,
		configSvc: NewSystemConfigService(db),
		now:       time.Now,
	}
	if ldapCfg != nil {
		s.ldapService = NewLDAPService(ldapCfg)
		s.ldapEnabled = ldapCfg.Enabled
	}
	return s
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	AuthType string `json:"auth_type"` // local, ldap
}

type LoginResult struct {
	AccessToken     string
	AccessExpireAt  time.Time
	RefreshToken    string
	RefreshExpireAt time.Time
	User            *models.User
}

type RefreshResult struct {
	AccessToken     string
	AccessExpireAt  time.Time
	RefreshToken    string
	RefreshExpireAt time.Time
}

var errInvalidCredentials = response.NewUnauthorized("invalid username or password")

// Login authenticates a user and issues an access and a refresh token
func (s *AuthService) Login(req *LoginRequest, clientIP, userAgent string) (*LoginResult, error) {
	var user *models.User
	var err error

	switch req.AuthType {
	case "", "local":
		user, err = s.localAuth(req.Username, req.Password)
	case "ldap":
		user, err = s.ldapAuth(req.Username, req.Password)
	default:
		return nil, response.NewBadRequest("invalid auth type")
	}
	if err != nil {
		return nil, err
	}

	access, accessExpireAt, err := s.issueAccessToken(user)
	if err != nil {
		return nil, err
	}
	refresh, refreshRecord, err := s.newRefreshRecord(user.ID, clientIP, userAgent)
	if err != nil {
		return nil, err
	}
	if err := s.db.Create(refreshRecord).Error; err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	now := s.now()
	user.LastLogin = &now
	if err := s.db.Model(user).Omit(clause.Associations).Update("last_login", now).Error; err != nil {
		return nil, fmt.Errorf("failed to update last login: %w", err)
	}

	return &LoginResult{
		AccessToken:     access,
		AccessExpireAt:  accessExpireAt,
		RefreshToken:    refresh,
		RefreshExpireAt: refreshRecord.ExpiresAt,
		User:            user,
	}, nil
}

// Refresh rotates a refresh token; the presented token is revoked and replaced
func (s *AuthService) Refresh(refreshToken, clientIP, userAgent string) (*RefreshResult, error) {
	if refreshToken == "" {
		return nil, response.NewBadRequest("refresh token required")
	}

	var stored models.RefreshToken
	if err := s.db.Where("token_hash = ?", hashRefreshToken(refreshToken)).First(&stored).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewUnauthorized("invalid refresh token")
		}
		return nil, err
	}
	if stored.RevokedAt != nil {
		return nil, response.NewUnauthorized("refresh token revoked")
	}
	now := s.now()
	if now.After(stored.ExpiresAt) {
		return nil, response.NewUnauthorized("refresh token expired")
	}

	user, err := loadUser(s.db, stored.UserID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, response.NewForbidden("user is disabled")
	}

	access, accessExpireAt, err := s.issueAccessToken(user)
	if err != nil {
		return nil, err
	}
	refresh, newRecord, err := s.newRefreshRecord(user.ID, clientIP, userAgent)
	if err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(newRecord).Error; err != nil {
			return err
		}
		return tx.Model(&stored).Updates(map[string]interface{}{
			"revoked_at":           now,
			"replaced_by_token_id": newRecord.ID,
		}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	return &RefreshResult{
		AccessToken:     access,
		AccessExpireAt:  accessExpireAt,
		RefreshToken:    refresh,
		RefreshExpireAt: newRecord.ExpiresAt,
	}, nil
}

func (s *AuthService) RevokeRefreshToken(refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.db.Model(&models.RefreshToken{}).
		Where("token_hash = ? AND revoked_at IS NULL", hashRefreshToken(refreshToken)).
		Update("revoked_at", s.now()).Error
}

func (s *AuthService) issueAccessToken(user *models.User) (string, time.Time, error) {
	hours := s.configSvc.GetInt(ConfigAccessTokenExpireHours, s.jwtConfig.ExpireHour)
	if hours <= 0 {
		hours = s.jwtConfig.ExpireHour
	}
	token, err := utils.GenerateToken(user.ID, user.Username, user.GroupNames(), hours)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, s.now().Add(time.Duration(hours) * time.Hour), nil
}

func (s *AuthService) newRefreshRecord(userID uuid.UUID, clientIP, userAgent string) (string, *models.RefreshToken, error) {
	hours := s.configSvc.GetInt(ConfigRefreshExpireHours, 720)
	if hours <= 0 {
		hours = 720
	}
	token, hash, err := generateRefreshToken()
	if err != nil {
		return "", nil, err
	}
	return token, &models.RefreshToken{
		UserID:      userID,
		TokenHash:   hash,
		ExpiresAt:   s.now().Add(time.Duration(hours) * time.Hour),
		CreatedByIP: clientIP,
		UserAgent:   userAgent,
	}, nil
}

func generateRefreshToken() (token string, tokenHash string, err error) {
	randomBytes := make([]byte, 32)
	if _, err = rand.Read(randomBytes); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(randomBytes)
	return token, hashRefreshToken(token), nil
}

func hashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *AuthService) localAuth(username, password string) (*models.User, error) {
	var user models.User
	err := s.db.Preload("Groups").Preload("ResearchGroup").
		Where("username = ? AND auth_type = ?", username, "local").First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, response.NewForbidden("user is disabled")
	}
	if !utils.CheckPassword(password, user.Password) {
		return nil, errInvalidCredentials
	}
	return &user, nil
}

// ldapAuth binds against the directory and provisions first-time users as students
func (s *AuthService) ldapAuth(username, password string) (*models.User, error) {
	if !s.IsLDAPEnabled() {
		return nil, response.NewBadRequest("LDAP login is not enabled")
	}
	ldapUser, err := s.ldapService.Authenticate(username, password)
	if err != nil {
		return nil, response.NewUnauthorized(err.Error())
	}

	var user models.User
	err = s.db.Where("username = ? AND auth_type = ?", ldapUser.Username, "ldap").First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = models.User{
			Username:     ldapUser.Username,
			UniversityID: ldapUser.UniversityID,
			Email:        ldapUser.Email,
			FirstName:    ldapUser.FirstName,
			LastName:     ldapUser.LastName,
			AuthType:     "ldap",
			IsActive:     true,
		}
		err = s.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Omit(clause.Associations).Create(&user).Error; err != nil {
				return err
			}
			return tx.Create(&models.UserGroup{UserID: user.ID, Group: models.GroupStudent}).Error
		})
		if err != nil {
			return nil, fmt.Errorf("failed to provision LDAP user: %w", err)
		}
	case err != nil:
		return nil, err
	default:
		if !user.IsActive {
			return nil, response.NewForbidden("user is disabled")
		}
		err = s.db.Model(&user).Omit(clause.Associations).Updates(map[string]interface{}{
			"email":      ldapUser.Email,
			"first_name": ldapUser.FirstName,
			"last_name":  ldapUser.LastName,
		}).Error
		if err != nil {
			return nil, fmt.Errorf("failed to update LDAP user: %w", err)
		}
	}

	return loadUser(s.db, user.ID)
}

// GetUserByID loads a user with groups and research group, as the request actor
func (s *AuthService) GetUserByID(id uuid.UUID) (*models.User, error) {
	return loadUser(s.db, id)
}

// CreateAdminIfNotExists creates a local admin account when nobody holds the admin group
func (s *AuthService) CreateAdminIfNotExists() error {
	var count int64
	err := s.db.Model(&models.UserGroup{}).
		Where(clause.Eq{Column: clause.Column{Name: "group"}, Value: models.GroupAdmin}).
		Count(&count).Error
	if err != nil || count > 0 {
		return err
	}

	hashedPassword, err := utils.HashPassword("admin")
	if err != nil {
		return err
	}
	admin := models.User{
		Username:  "admin",
		Password:  hashedPassword,
		FirstName: "System",
		LastName:  "Administrator",
		AuthType:  "local",
		IsActive:  true,
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&admin).Error; err != nil {
			return err
		}
		return tx.Create(&models.UserGroup{UserID: admin.ID, Group: models.GroupAdmin}).Error
	})
}

func (s *AuthService) IsLDAPEnabled() bool {
	return s.ldapService != nil && s.ldapEnabled
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=6"`
}

func (s *AuthService) ChangePassword(userID uuid.UUID, req *ChangePasswordRequest) error {
	var user models.User
	if err := s.db.Where("id = ?", userID).First(&user).Error; err != nil {
		return notFoundOr(err, "user")
	}
	if user.AuthType != "local" {
		return response.NewBadRequest("LDAP users cannot change their password here")
	}
	if !utils.CheckPassword(req.OldPassword, user.Password) {
		return response.NewBadRequest("incorrect old password")
	}

	hashedPassword, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	return s.db.Model(&user).Omit(clause.Associations).Update("password", hashedPassword).Error
}
