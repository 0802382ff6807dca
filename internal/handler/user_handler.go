package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-chat/internal/audit"
	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/internal/media"
	"github.com/weiawesome/wes-io-chat/internal/service"
	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/middleware"
	"github.com/weiawesome/wes-io-chat/pkg/response"
)

// UserHandler handles account and friend request routes.
type UserHandler struct {
	users          service.UserService
	authMiddleware *middleware.AuthMiddleware
	cookie         CookieConfig
}

func NewUserHandler(users service.UserService, authMiddleware *middleware.AuthMiddleware, cookie CookieConfig) *UserHandler {
	return &UserHandler{
		users:          users,
		authMiddleware: authMiddleware,
		cookie:         cookie,
	}
}

// RegisterRoutes registers /users routes on api.
func (h *UserHandler) RegisterRoutes(api *gin.RouterGroup) {
	users := api.Group("/users")
	{
		// Public routes
		users.POST("/register", h.Register)
		users.POST("/login", h.Login)

		// Protected routes
		authed := users.Group("")
		authed.Use(h.authMiddleware.RequireAuth())
		{
			authed.GET("/logout", h.Logout)
			authed.GET("/me", h.GetMe)
			authed.GET("/profile", h.GetProfile)
			authed.GET("/search", h.Search)
			authed.PUT("/sendrequest", h.SendRequest)
			authed.PUT("/acceptrequest", h.AcceptRequest)
			authed.GET("/notification", h.Notifications)
			authed.GET("/friends", h.Friends)
		}
	}
}

// Register handles multipart registration with an avatar file.
func (h *UserHandler) Register(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)
	var req domain.RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		l.Warn().Err(err).Msg("invalid register request")
		response.BadRequest(c, err.Error())
		return
	}

	var avatar *media.Upload
	if fh, err := c.FormFile("avatar"); err == nil {
		u := media.FromFileHeader(fh)
		avatar = &u
	}

	result, err := h.users.Register(ctx, &req, avatar)
	if err != nil {
		respondError(c, err, "failed to register user")
		return
	}

	h.cookie.set(c, result.Token)
	response.CreatedMessage(c, "User created", result.User)
}

// Login handles username and password login.
func (h *UserHandler) Login(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)
	var req domain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid login request")
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.users.Login(ctx, &req)
	if err != nil {
		respondError(c, err, "failed to login")
		return
	}

	h.cookie.set(c, result.Token)
	response.Success(c, result.User)
}

func (h *UserHandler) Logout(c *gin.Context) {
	h.cookie.clear(c)
	audit.Log(c.Request.Context(), audit.ActionLogout, middleware.GetUserID(c), "user logged out")
	response.SuccessMessage(c, "Logged out successfully")
}

func (h *UserHandler) GetMe(c *gin.Context) {
	user, err := h.users.GetProfile(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err, "failed to get user")
		return
	}
	response.Success(c, user)
}

// GetProfile looks a user up by ?username=.
func (h *UserHandler) GetProfile(c *gin.Context) {
	username := c.Query("username")
	if username == "" {
		response.BadRequest(c, "username is required")
		return
	}

	user, err := h.users.GetByUsername(c.Request.Context(), username)
	if err != nil {
		respondError(c, err, "failed to get user")
		return
	}
	response.Success(c, user)
}

func (h *UserHandler) Search(c *gin.Context) {
	users, err := h.users.Search(c.Request.Context(), middleware.GetUserID(c), c.Query("name"))
	if err != nil {
		respondError(c, err, "failed to search users")
		return
	}
	response.Success(c, users)
}

func (h *UserHandler) SendRequest(c *gin.Context) {
	ctx := c.Request.Context()
	var req domain.SendRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.users.SendRequest(ctx, middleware.GetUserID(c), req.UserID); err != nil {
		respondError(c, err, "failed to send request")
		return
	}
	response.SuccessMessage(c, "Friend Request Sent")
}

func (h *UserHandler) AcceptRequest(c *gin.Context) {
	ctx := c.Request.Context()
	var req domain.AcceptRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	senderID, err := h.users.AcceptRequest(ctx, middleware.GetUserID(c), req.RequestID, *req.Accept)
	if err != nil {
		respondError(c, err, "failed to answer request")
		return
	}

	if !*req.Accept {
		response.SuccessMessage(c, "Friend Request Rejected")
		return
	}
	response.SuccessWithMessage(c, "Friend Request Accepted", gin.H{"senderId": senderID})
}

func (h *UserHandler) Notifications(c *gin.Context) {
	notifications, err := h.users.Notifications(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err, "failed to get notifications")
		return
	}
	response.Success(c, notifications)
}

// Friends lists friends, leaving out members of ?chatId= when given.
func (h *UserHandler) Friends(c *gin.Context) {
	friends, err := h.users.Friends(c.Request.Context(), middleware.GetUserID(c), c.Query("chatId"))
	if err != nil {
		respondError(c, err, "failed to get friends")
		return
	}
	response.Success(c, friends)
}
