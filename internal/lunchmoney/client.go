// Package lunchmoney implements the budgeting-backend client for Lunch Money.
package lunchmoney

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/tverdokhlib/bankbridge/internal/common"
	"github.com/tverdokhlib/bankbridge/internal/model"
	"github.com/tverdokhlib/bankbridge/internal/service"
)

const defaultBaseURL = "https://dev.lunchmoney.app/v1"

const dateLayout = "2006-01-02"

// TransferPayee is Lunch Money's conventional payee label for transfers.
// The API has no payee ids, so the sentinel is the literal payee name.
const TransferPayee = "Transfer"

// fractionDigits for converting minor units to Lunch Money's decimal
// amounts. All supported currencies use two.
const fractionDigits = 2

// payeeScanLimit bounds how many recent transactions the payee list is
// derived from; Lunch Money has no payee listing endpoint.
const payeeScanLimit = 500

// Client talks to the Lunch Money REST API.
type Client struct {
	http *resty.Client
}

// NewClient creates a client authenticated with the given access token.
// baseURL overrides the production endpoint when non-empty.
func NewClient(token, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetAuthToken(token).
			SetTimeout(30 * time.Second).
			SetHeader("Accept", "application/json"),
	}
}

type insertTransaction struct {
	Date       string `json:"date"`
	Payee      string `json:"payee,omitempty"`
	CategoryID int64  `json:"category_id,omitempty"`
	Notes      string `json:"notes,omitempty"`
	AssetID    int64  `json:"asset_id,omitempty"`
	Status     string `json:"status,omitempty"`
	Amount     string `json:"amount"`
}

type updateTransaction struct {
	Payee      string `json:"payee,omitempty"`
	CategoryID int64  `json:"category_id,omitempty"`
	Notes      string `json:"notes,omitempty"`
	Status     string `json:"status,omitempty"`
}

type transactionObject struct {
	ID         int64  `json:"id"`
	Date       string `json:"date"`
	Payee      string `json:"payee"`
	CategoryID int64  `json:"category_id"`
	Notes      string `json:"notes"`
	AssetID    int64  `json:"asset_id"`
	Status     string `json:"status"`
	Amount     string `json:"amount"`
}

type insertResponse struct {
	IDs []int64 `json:"ids"`
}

type transactionsResponse struct {
	Transactions []transactionObject `json:"transactions"`
}

type categoriesResponse struct {
	Categories []struct {
		ID       int64  `json:"id"`
		Name     string `json:"name"`
		Archived bool   `json:"archived"`
	} `json:"categories"`
}

// CreateTransaction inserts one transaction and returns its id.
func (c *Client) CreateTransaction(ctx context.Context, fields service.TransactionFields) (string, error) {
	var out insertResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"transactions":        []insertTransaction{toInsert(fields)},
			"apply_rules":         true,
			"check_for_recurring": true,
			"debit_as_negative":   true,
		}).
		SetResult(&out).
		Post("/transactions")
	if err := c.check(resp, err); err != nil {
		return "", fmt.Errorf("create transaction: %w", err)
	}
	if len(out.IDs) == 0 {
		return "", fmt.Errorf("%w: insert returned no ids", common.ErrBackendRejected)
	}
	return strconv.FormatInt(out.IDs[0], 10), nil
}

// UpdateTransaction applies the non-zero fields to an existing transaction.
func (c *Client) UpdateTransaction(ctx context.Context, id string, fields service.TransactionFields) (*service.TransactionRecord, error) {
	update := updateTransaction{
		Notes:      fields.Memo,
		CategoryID: parseID(fields.CategoryID),
	}
	// PayeeID carries the payee name; Lunch Money has no payee ids.
	if fields.PayeeID != "" {
		update.Payee = fields.PayeeID
	} else if fields.PayeeName != "" {
		update.Payee = fields.PayeeName
	}
	if fields.Cleared {
		update.Status = "cleared"
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"transaction":       update,
			"debit_as_negative": true,
		}).
		Put(fmt.Sprintf("/transactions/%s", id))
	if err := c.check(resp, err); err != nil {
		return nil, fmt.Errorf("update transaction %s: %w", id, err)
	}
	return c.GetTransaction(ctx, id)
}

// GetTransaction fetches one transaction by id.
func (c *Client) GetTransaction(ctx context.Context, id string) (*service.TransactionRecord, error) {
	var out transactionObject
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get(fmt.Sprintf("/transactions/%s", id))
	if err := c.check(resp, err); err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return toRecord(out), nil
}

// ListCategories returns all non-archived categories.
func (c *Client) ListCategories(ctx context.Context) ([]model.Category, error) {
	var out categoriesResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/categories")
	if err := c.check(resp, err); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	var categories []model.Category
	for _, cat := range out.Categories {
		if cat.Archived {
			continue
		}
		categories = append(categories, model.Category{
			ID:   strconv.FormatInt(cat.ID, 10),
			Name: cat.Name,
		})
	}
	return categories, nil
}

// ListPayees derives the known payee set from recent transactions, since the
// API exposes no payee listing.
func (c *Client) ListPayees(ctx context.Context) ([]model.Payee, error) {
	var out transactionsResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("limit", strconv.Itoa(payeeScanLimit)).
		SetResult(&out).
		Get("/transactions")
	if err := c.check(resp, err); err != nil {
		return nil, fmt.Errorf("list payees: %w", err)
	}

	seen := make(map[string]struct{})
	var payees []model.Payee
	for _, txn := range out.Transactions {
		if txn.Payee == "" {
			continue
		}
		if _, ok := seen[txn.Payee]; ok {
			continue
		}
		seen[txn.Payee] = struct{}{}
		payees = append(payees, model.Payee{Name: txn.Payee})
	}
	return payees, nil
}

// TransferPayeeID returns the transfer payee sentinel; it is account
// independent for this backend.
func (c *Client) TransferPayeeID(_ context.Context, _ string) (string, error) {
	return TransferPayee, nil
}

func (c *Client) check(resp *resty.Response, err error) error {
	if err != nil {
		return &common.RetryableError{Err: err, Retryable: true}
	}
	switch {
	case resp.IsSuccess():
		return nil
	case resp.StatusCode() == http.StatusTooManyRequests:
		return common.ErrRateLimit
	case resp.StatusCode() >= http.StatusInternalServerError:
		return &common.RetryableError{
			Err:       fmt.Errorf("%w: status %d", common.ErrBackendRejected, resp.StatusCode()),
			Retryable: true,
		}
	default:
		return fmt.Errorf("%w: status %d: %s", common.ErrBackendRejected, resp.StatusCode(), resp.String())
	}
}

func toInsert(fields service.TransactionFields) insertTransaction {
	insert := insertTransaction{
		Date:       fields.Date.Format(dateLayout),
		Payee:      fields.PayeeName,
		CategoryID: parseID(fields.CategoryID),
		Notes:      fields.Memo,
		AssetID:    parseID(fields.AccountID),
		Amount:     fields.Amount.Decimal(fractionDigits).String(),
	}
	if fields.Cleared {
		insert.Status = "cleared"
	}
	return insert
}

func toRecord(txn transactionObject) *service.TransactionRecord {
	date, _ := time.Parse(dateLayout, txn.Date)
	amount := model.Amount(0)
	if dec, err := decimal.NewFromString(txn.Amount); err == nil {
		amount = model.Amount(dec.Shift(fractionDigits).IntPart())
	}
	return &service.TransactionRecord{
		ID:         strconv.FormatInt(txn.ID, 10),
		Date:       date,
		AccountID:  strconv.FormatInt(txn.AssetID, 10),
		PayeeName:  txn.Payee,
		CategoryID: strconv.FormatInt(txn.CategoryID, 10),
		Memo:       txn.Notes,
		Amount:     amount,
		Cleared:    txn.Status == "cleared",
	}
}

func parseID(id string) int64 {
	if id == "" {
		return 0
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
