package controllers

import (
	"net/http"

	"github.com/agrisense/irrigation-backend/internal/services"
	"github.com/agrisense/irrigation-backend/internal/utils"
	"github.com/gin-gonic/gin"
)

// ChatRequest is one user message to the assistant
type ChatRequest struct {
	Message string `json:"message" binding:"required"`
}

// ChatController serves the assistant endpoint
type ChatController struct {
	chatService *services.ChatService
	logger      *utils.Logger
}

// NewChatController creates a new chat controller
func NewChatController(chatService *services.ChatService, logger *utils.Logger) *ChatController {
	return &ChatController{
		chatService: chatService,
		logger:      logger.Named("chat_controller"),
	}
}

// RegisterRoutes registers the chat routes
func (c *ChatController) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/chat", c.Chat)
}

// Chat answers one user message. The service never fails; the fallback chain
// bottoms out at a static reply.
func (c *ChatController) Chat(ctx *gin.Context) {
	var req ChatRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.HandleError(ctx, utils.ErrBadRequest, c.logger)
		return
	}

	resp := c.chatService.Ask(ctx.Request.Context(), req.Message)
	ctx.JSON(http.StatusOK, resp)
}
