package public

import (
	"time"

	"github.com/ZeoXel/SUNSTUDIO/internal/http/response"
	"github.com/ZeoXel/SUNSTUDIO/internal/models"

	"github.com/gin-gonic/gin"
)

// UserRegisterRequest 注册请求
type UserRegisterRequest struct {
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name"`
}

// UserLoginRequest 登录请求
type UserLoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func buildAuthResponse(user *models.User, token string, expiresAt time.Time) gin.H {
	return gin.H{
		"token":      token,
		"expires_at": expiresAt,
		"user": gin.H{
			"id":           user.ID,
			"email":        user.Email,
			"display_name": user.DisplayName,
			"balance":      user.Balance,
			"points":       user.Points,
		},
	}
}

// Register 用户注册
func (h *Handler) Register(c *gin.Context) {
	var req UserRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}

	user, token, expiresAt, err := h.AuthService.Register(req.Email, req.Password, req.DisplayName)
	if err != nil {
		respondAuthError(c, err)
		return
	}
	response.Success(c, buildAuthResponse(user, token, expiresAt))
}

// Login 用户登录
func (h *Handler) Login(c *gin.Context) {
	var req UserLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}

	user, token, expiresAt, err := h.AuthService.Login(req.Email, req.Password)
	if err != nil {
		respondAuthError(c, err)
		return
	}
	response.Success(c, buildAuthResponse(user, token, expiresAt))
}

// Profile 获取当前用户信息
func (h *Handler) Profile(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	user, err := h.AuthService.GetUserByID(uid)
	if err != nil {
		respondError(c, response.CodeInternal, "获取用户信息失败", err)
		return
	}
	if user == nil {
		respondError(c, response.CodeNotFound, "用户不存在", nil)
		return
	}
	response.Success(c, gin.H{
		"id":            user.ID,
		"email":         user.Email,
		"display_name":  user.DisplayName,
		"balance":       user.Balance,
		"points":        user.Points,
		"last_login_at": user.LastLoginAt,
		"created_at":    user.CreatedAt,
	})
}

// Logout 注销当前登录 token
func (h *Handler) Logout(c *gin.Context) {
	jti := c.GetString("token_jti")
	expiresAt, _ := c.Get("token_expires_at")
	expireTime, _ := expiresAt.(time.Time)
	if err := h.AuthService.Logout(c.Request.Context(), jti, expireTime); err != nil {
		respondError(c, response.CodeInternal, "注销失败", err)
		return
	}
	response.Success(c, gin.H{"message": "已注销"})
}
