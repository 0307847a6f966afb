package telegram

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/tverdokhlib/bankbridge/internal/service"
)

const pollTimeout = 30 * time.Second

// CallbackHandler long-polls for inline-keyboard presses and applies the
// requested change to the budgeting backend.
type CallbackHandler struct {
	client *Client
	budget service.BudgetClient
}

// NewCallbackHandler wires a handler over the bot client and the backend.
func NewCallbackHandler(client *Client, budget service.BudgetClient) *CallbackHandler {
	return &CallbackHandler{client: client, budget: budget}
}

// Run polls for callback queries until ctx is canceled.
func (h *CallbackHandler) Run(ctx context.Context) {
	var offset int64
	for {
		updates, err := h.client.GetUpdates(ctx, offset, pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("Failed to poll for callbacks", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			if update.CallbackQuery != nil {
				h.handle(ctx, update.CallbackQuery)
			}
		}
	}
}

func (h *CallbackHandler) handle(ctx context.Context, query *CallbackQuery) {
	if !strings.HasPrefix(query.Data, clearCallbackPrefix) {
		_ = h.client.AnswerCallbackQuery(ctx, query.ID, "")
		return
	}
	transactionID := strings.TrimPrefix(query.Data, clearCallbackPrefix)

	_, err := h.budget.UpdateTransaction(ctx, transactionID, service.TransactionFields{Cleared: true})
	if err != nil {
		slog.Error("Failed to clear transaction from callback",
			"transaction_id", transactionID,
			"error", err)
		_ = h.client.AnswerCallbackQuery(ctx, query.ID, "Failed, try again later")
		return
	}

	if err := h.client.AnswerCallbackQuery(ctx, query.ID, "Cleared ✅"); err != nil {
		slog.Warn("Failed to answer callback", "error", err)
	}

	// Drop the button now that the action is done.
	if query.Message != nil {
		if err := h.client.EditMessageReplyMarkup(ctx, query.Message.Chat.ID, query.Message.MessageID, nil); err != nil {
			slog.Warn("Failed to remove inline keyboard", "error", err)
		}
	}
}
