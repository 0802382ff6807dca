package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/internal/service"
	"github.com/weiawesome/wes-io-chat/pkg/middleware"
	"github.com/weiawesome/wes-io-chat/pkg/response"
)

// AdminHandler handles the admin console routes.
type AdminHandler struct {
	admin          service.AdminService
	authMiddleware *middleware.AuthMiddleware
	cookie         CookieConfig
}

func NewAdminHandler(admin service.AdminService, authMiddleware *middleware.AuthMiddleware, cookie CookieConfig) *AdminHandler {
	return &AdminHandler{
		admin:          admin,
		authMiddleware: authMiddleware,
		cookie:         cookie,
	}
}

// RegisterRoutes registers /admin routes on api.
func (h *AdminHandler) RegisterRoutes(api *gin.RouterGroup) {
	admin := api.Group("/admin")
	{
		admin.POST("/verify", h.Verify)
		admin.GET("/logout", h.Logout)

		protected := admin.Group("")
		protected.Use(h.authMiddleware.RequireAdmin())
		{
			protected.GET("", h.GetAdmin)
			protected.GET("/users", h.Users)
			protected.GET("/chats", h.Chats)
			protected.GET("/messages", h.Messages)
			protected.GET("/admin-dashboard", h.Dashboard)
		}
	}
}

func (h *AdminHandler) Verify(c *gin.Context) {
	var req domain.AdminVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	token, err := h.admin.Verify(c.Request.Context(), req.SecretKey)
	if err != nil {
		respondError(c, err, "failed to verify admin")
		return
	}

	h.cookie.set(c, token)
	response.SuccessMessage(c, "Authenticated Successfully, Welcome BOSS!")
}

func (h *AdminHandler) Logout(c *gin.Context) {
	h.cookie.clear(c)
	response.SuccessMessage(c, "Logged out successfully")
}

func (h *AdminHandler) GetAdmin(c *gin.Context) {
	response.Success(c, gin.H{"admin": true})
}

func (h *AdminHandler) Users(c *gin.Context) {
	users, err := h.admin.Users(c.Request.Context())
	if err != nil {
		respondError(c, err, "failed to list users")
		return
	}
	response.Success(c, users)
}

func (h *AdminHandler) Chats(c *gin.Context) {
	chats, err := h.admin.Chats(c.Request.Context())
	if err != nil {
		respondError(c, err, "failed to list chats")
		return
	}
	response.Success(c, chats)
}

func (h *AdminHandler) Messages(c *gin.Context) {
	msgs, err := h.admin.Messages(c.Request.Context())
	if err != nil {
		respondError(c, err, "failed to list messages")
		return
	}
	response.Success(c, msgs)
}

func (h *AdminHandler) Dashboard(c *gin.Context) {
	stats, err := h.admin.Dashboard(c.Request.Context())
	if err != nil {
		respondError(c, err, "failed to load dashboard")
		return
	}
	response.Success(c, stats)
}
