package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"astrohub/internal/models"
)

// ChatResponder answers astronomy questions
type ChatResponder interface {
	Reply(ctx context.Context, message string) (*models.ChatReply, error)
}

// ChatHandler handles the assistant endpoint
type ChatHandler struct {
	chat ChatResponder
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chat ChatResponder) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// Chat sends one message to the assistant
// POST /api/chat
func (h *ChatHandler) Chat(c *fiber.Ctx) error {
	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	trimFields(&req.Message)
	if err := validate.Struct(req); err != nil {
		return badRequest(c, validationMessage(err))
	}

	reply, err := h.chat.Reply(c.UserContext(), req.Message)
	if err != nil {
		return upstreamError(c, err)
	}
	return c.JSON(reply)
}
