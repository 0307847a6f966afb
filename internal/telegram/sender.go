package telegram

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/tverdokhlib/bankbridge/internal/model"
	"github.com/tverdokhlib/bankbridge/internal/service"
)

// currencyFractionDigits covers the minor-unit scale of supported currencies.
const currencyFractionDigits = 2

const failureText = "Something went wrong while processing a transaction. Check the logs."

// clearCallbackPrefix tags the "mark cleared" inline button's callback data.
const clearCallbackPrefix = "clear:"

// Sender is the notification layer: it turns reconciliation results into
// chat messages with interactive controls. Delivery failures are logged,
// never surfaced, so a flaky chat cannot fail reconciliation.
type Sender struct {
	client   *Client
	accounts map[string]model.AccountMapping
}

// NewSender creates a sender notifying the chats configured per account.
func NewSender(client *Client, accounts map[string]model.AccountMapping) *Sender {
	return &Sender{client: client, accounts: accounts}
}

// SendNotification reports one reconciled transaction to the account's chat
// and returns a reference to the sent message, or nil when delivery failed.
func (s *Sender) SendNotification(ctx context.Context, chatID int64, result *model.ReconciliationResult) *service.MessageRef {
	markup := &InlineKeyboardMarkup{
		InlineKeyboard: [][]InlineKeyboardButton{{
			{Text: "✅ Mark cleared", CallbackData: clearCallbackPrefix + result.TransactionID},
		}},
	}
	if result.Classification == model.ClassificationTransfer {
		// Transfer legs are already cleared by the reconciler.
		markup = nil
	}

	message, err := s.client.SendMessage(ctx, chatID, s.format(result), markup)
	if err != nil {
		slog.Error("Failed to send notification", "chat_id", chatID, "error", err)
		return nil
	}
	return &service.MessageRef{ChatID: message.Chat.ID, MessageID: message.MessageID}
}

// SendFailure reports a generic processing failure. The underlying cause is
// never exposed to the chat, only logged.
func (s *Sender) SendFailure(ctx context.Context, chatID int64) {
	if _, err := s.client.SendMessage(ctx, chatID, failureText, nil); err != nil {
		slog.Error("Failed to send failure notification", "chat_id", chatID, "error", err)
	}
}

func (s *Sender) format(result *model.ReconciliationResult) string {
	statement := result.Event.Statement

	header := "💸 Spending"
	if statement.Amount > 0 {
		header = "💰 Income"
	}
	if result.Classification == model.ClassificationTransfer {
		header = "🔀 Transfer between accounts"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n", header)
	fmt.Fprintf(&b, "Amount: <b>%s %s</b>\n",
		statement.Amount.Format(currencyFractionDigits),
		html.EscapeString(statement.CurrencyCode))

	if alias := s.accountAlias(result.Event.AccountID); alias != "" {
		fmt.Fprintf(&b, "Account: %s\n", html.EscapeString(alias))
	}
	if memo := result.Event.Memo(); memo != "" {
		fmt.Fprintf(&b, "Memo: %s\n", html.EscapeString(memo))
	}
	if result.PayeeName != "" {
		fmt.Fprintf(&b, "Payee: %s\n", html.EscapeString(result.PayeeName))
	}
	if result.CategoryName != "" {
		fmt.Fprintf(&b, "Category: %s\n", html.EscapeString(result.CategoryName))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (s *Sender) accountAlias(bankAccountID string) string {
	mapping, ok := s.accounts[bankAccountID]
	if !ok {
		return ""
	}
	if mapping.Alias != "" {
		return mapping.Alias
	}
	return mapping.BudgetAccountID
}
