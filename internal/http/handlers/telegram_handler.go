// README: Telegram webhook endpoint.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// UpdateHandler is satisfied by *bot.Router.
type UpdateHandler interface {
	Handle(ctx context.Context, upd tgbotapi.Update)
}

type TelegramHandler struct {
	updates UpdateHandler
}

func NewTelegramHandler(updates UpdateHandler) *TelegramHandler {
	return &TelegramHandler{updates: updates}
}

// Webhook always answers 200 once the update decodes so Telegram does not redeliver it.
func (h *TelegramHandler) Webhook(c *gin.Context) {
	var upd tgbotapi.Update
	if err := c.ShouldBindJSON(&upd); err != nil {
		writeError(c, http.StatusBadRequest, "invalid update")
		return
	}
	h.updates.Handle(c.Request.Context(), upd)
	c.Status(http.StatusOK)
}
