package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/internal/media"
	"github.com/weiawesome/wes-io-chat/internal/service"
	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/middleware"
	"github.com/weiawesome/wes-io-chat/pkg/response"
)

// ChatHandler handles chat, group and history routes.
type ChatHandler struct {
	chats          service.ChatService
	authMiddleware *middleware.AuthMiddleware
}

func NewChatHandler(chats service.ChatService, authMiddleware *middleware.AuthMiddleware) *ChatHandler {
	return &ChatHandler{
		chats:          chats,
		authMiddleware: authMiddleware,
	}
}

// RegisterRoutes registers /chats routes on api. All of them need a session.
func (h *ChatHandler) RegisterRoutes(api *gin.RouterGroup) {
	chats := api.Group("/chats")
	chats.Use(h.authMiddleware.RequireAuth())
	{
		chats.GET("/chat", h.MyChats)
		chats.GET("/mygroups", h.MyGroups)
		chats.POST("/group", h.CreateGroup)
		chats.PUT("/groupadd", h.AddMembers)
		chats.PUT("/groupremove", h.RemoveMember)
		chats.DELETE("/groupleave/:id", h.LeaveGroup)
		chats.POST("/sendAttachments", h.SendAttachments)
		chats.GET("/message/:id", h.Messages)
		chats.GET("/:id", h.GetChat)
		chats.PUT("/:id", h.RenameGroup)
		chats.DELETE("/:id", h.DeleteChat)
	}
}

func (h *ChatHandler) MyChats(c *gin.Context) {
	chats, err := h.chats.MyChats(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err, "failed to list chats")
		return
	}
	response.Success(c, chats)
}

func (h *ChatHandler) MyGroups(c *gin.Context) {
	groups, err := h.chats.MyGroups(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err, "failed to list groups")
		return
	}
	response.Success(c, groups)
}

func (h *ChatHandler) CreateGroup(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)
	var req domain.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid create group request")
		response.BadRequest(c, err.Error())
		return
	}

	chat, err := h.chats.CreateGroup(ctx, middleware.GetUserID(c), &req)
	if err != nil {
		respondError(c, err, "failed to create group")
		return
	}
	response.CreatedMessage(c, "Group Created", chat)
}

func (h *ChatHandler) AddMembers(c *gin.Context) {
	ctx := c.Request.Context()
	var req domain.AddMembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.chats.AddMembers(ctx, middleware.GetUserID(c), &req); err != nil {
		respondError(c, err, "failed to add members")
		return
	}
	response.SuccessMessage(c, "Members added successfully")
}

func (h *ChatHandler) RemoveMember(c *gin.Context) {
	ctx := c.Request.Context()
	var req domain.RemoveMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.chats.RemoveMember(ctx, middleware.GetUserID(c), &req); err != nil {
		respondError(c, err, "failed to remove member")
		return
	}
	response.SuccessMessage(c, "Member removed successfully")
}

func (h *ChatHandler) LeaveGroup(c *gin.Context) {
	if err := h.chats.LeaveGroup(c.Request.Context(), middleware.GetUserID(c), c.Param("id")); err != nil {
		respondError(c, err, "failed to leave group")
		return
	}
	response.SuccessMessage(c, "Leave Group Successfully")
}

// SendAttachments stores the multipart "files" for "chatId" as one message.
func (h *ChatHandler) SendAttachments(c *gin.Context) {
	ctx := c.Request.Context()
	form, err := c.MultipartForm()
	if err != nil {
		response.BadRequest(c, "Please upload attachments")
		return
	}

	chatID := ""
	if v := form.Value["chatId"]; len(v) > 0 {
		chatID = v[0]
	}
	if chatID == "" {
		response.BadRequest(c, "chatId is required")
		return
	}

	msg, err := h.chats.SendAttachments(ctx, middleware.GetUserID(c), chatID, media.FromFileHeaders(form.File["files"]))
	if err != nil {
		respondError(c, err, "failed to send attachments")
		return
	}
	response.Success(c, msg)
}

// GetChat returns the chat, with members resolved when ?populate=true.
func (h *ChatHandler) GetChat(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.GetUserID(c)

	if c.Query("populate") == "true" {
		chat, err := h.chats.GetPopulatedChat(ctx, userID, c.Param("id"))
		if err != nil {
			respondError(c, err, "failed to get chat")
			return
		}
		response.Success(c, chat)
		return
	}

	chat, err := h.chats.GetChat(ctx, userID, c.Param("id"))
	if err != nil {
		respondError(c, err, "failed to get chat")
		return
	}
	response.Success(c, chat)
}

func (h *ChatHandler) RenameGroup(c *gin.Context) {
	ctx := c.Request.Context()
	var req domain.RenameGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.chats.RenameGroup(ctx, middleware.GetUserID(c), c.Param("id"), req.Name); err != nil {
		respondError(c, err, "failed to rename group")
		return
	}
	response.SuccessMessage(c, "Group renamed successfully")
}

func (h *ChatHandler) DeleteChat(c *gin.Context) {
	if err := h.chats.DeleteChat(c.Request.Context(), middleware.GetUserID(c), c.Param("id")); err != nil {
		respondError(c, err, "failed to delete chat")
		return
	}
	response.SuccessMessage(c, "Chat deleted successfully")
}

// Messages returns ?page= of the chat history, ?resultPerPage= messages per page.
func (h *ChatHandler) Messages(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		response.BadRequest(c, "Invalid page")
		return
	}
	perPage, err := strconv.Atoi(c.DefaultQuery("resultPerPage", strconv.Itoa(domain.DefaultResultPerPage)))
	if err != nil {
		response.BadRequest(c, "Invalid resultPerPage")
		return
	}

	result, err := h.chats.Messages(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), page, perPage)
	if err != nil {
		respondError(c, err, "failed to get messages")
		return
	}
	response.Success(c, result)
}
