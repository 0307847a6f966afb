// Package ynab implements the budgeting-backend client for YNAB.
package ynab

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/tverdokhlib/bankbridge/internal/common"
	"github.com/tverdokhlib/bankbridge/internal/model"
	"github.com/tverdokhlib/bankbridge/internal/service"
)

const defaultBaseURL = "https://api.ynab.com/v1"

const dateLayout = "2006-01-02"

// Client talks to the YNAB REST API for one budget.
type Client struct {
	http     *resty.Client
	budgetID string
}

// NewClient creates a client authenticated with the given personal access
// token. baseURL overrides the production API endpoint when non-empty.
func NewClient(token, budgetID, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		budgetID: budgetID,
		http: resty.New().
			SetBaseURL(baseURL).
			SetAuthToken(token).
			SetTimeout(30 * time.Second).
			SetHeader("Accept", "application/json"),
	}
}

type saveTransaction struct {
	AccountID  string `json:"account_id,omitempty"`
	Date       string `json:"date,omitempty"`
	PayeeID    string `json:"payee_id,omitempty"`
	PayeeName  string `json:"payee_name,omitempty"`
	CategoryID string `json:"category_id,omitempty"`
	Memo       string `json:"memo,omitempty"`
	Cleared    string `json:"cleared,omitempty"`
	Amount     int64  `json:"amount,omitempty"`
}

type transactionDetail struct {
	ID         string `json:"id"`
	Date       string `json:"date"`
	AccountID  string `json:"account_id"`
	PayeeID    string `json:"payee_id"`
	PayeeName  string `json:"payee_name"`
	CategoryID string `json:"category_id"`
	Memo       string `json:"memo"`
	Cleared    string `json:"cleared"`
	Amount     int64  `json:"amount"`
}

type transactionResponse struct {
	Data struct {
		Transaction transactionDetail `json:"transaction"`
	} `json:"data"`
}

type categoriesResponse struct {
	Data struct {
		CategoryGroups []struct {
			Categories []struct {
				ID     string `json:"id"`
				Name   string `json:"name"`
				Hidden bool   `json:"hidden"`
			} `json:"categories"`
		} `json:"category_groups"`
	} `json:"data"`
}

type payeesResponse struct {
	Data struct {
		Payees []struct {
			ID      string `json:"id"`
			Name    string `json:"name"`
			Deleted bool   `json:"deleted"`
		} `json:"payees"`
	} `json:"data"`
}

type accountResponse struct {
	Data struct {
		Account struct {
			ID              string `json:"id"`
			TransferPayeeID string `json:"transfer_payee_id"`
		} `json:"account"`
	} `json:"data"`
}

// CreateTransaction creates one transaction and returns its id.
func (c *Client) CreateTransaction(ctx context.Context, fields service.TransactionFields) (string, error) {
	var out transactionResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"transaction": toSave(fields)}).
		SetResult(&out).
		Post(fmt.Sprintf("/budgets/%s/transactions", c.budgetID))
	if err := c.check(resp, err); err != nil {
		return "", fmt.Errorf("create transaction: %w", err)
	}
	return out.Data.Transaction.ID, nil
}

// UpdateTransaction applies the non-zero fields to an existing transaction.
func (c *Client) UpdateTransaction(ctx context.Context, id string, fields service.TransactionFields) (*service.TransactionRecord, error) {
	var out transactionResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"transaction": toSave(fields)}).
		SetResult(&out).
		Put(fmt.Sprintf("/budgets/%s/transactions/%s", c.budgetID, id))
	if err := c.check(resp, err); err != nil {
		return nil, fmt.Errorf("update transaction %s: %w", id, err)
	}
	return toRecord(out.Data.Transaction), nil
}

// GetTransaction fetches one transaction by id.
func (c *Client) GetTransaction(ctx context.Context, id string) (*service.TransactionRecord, error) {
	var out transactionResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get(fmt.Sprintf("/budgets/%s/transactions/%s", c.budgetID, id))
	if err := c.check(resp, err); err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return toRecord(out.Data.Transaction), nil
}

// ListCategories returns all visible categories across category groups.
func (c *Client) ListCategories(ctx context.Context) ([]model.Category, error) {
	var out categoriesResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get(fmt.Sprintf("/budgets/%s/categories", c.budgetID))
	if err := c.check(resp, err); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	var categories []model.Category
	for _, group := range out.Data.CategoryGroups {
		for _, cat := range group.Categories {
			if cat.Hidden {
				continue
			}
			categories = append(categories, model.Category{ID: cat.ID, Name: cat.Name})
		}
	}
	return categories, nil
}

// ListPayees returns all non-deleted payees.
func (c *Client) ListPayees(ctx context.Context) ([]model.Payee, error) {
	var out payeesResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get(fmt.Sprintf("/budgets/%s/payees", c.budgetID))
	if err := c.check(resp, err); err != nil {
		return nil, fmt.Errorf("list payees: %w", err)
	}

	var payees []model.Payee
	for _, p := range out.Data.Payees {
		if p.Deleted {
			continue
		}
		payees = append(payees, model.Payee{ID: p.ID, Name: p.Name})
	}
	return payees, nil
}

// TransferPayeeID resolves the account's transfer payee sentinel.
func (c *Client) TransferPayeeID(ctx context.Context, budgetAccountID string) (string, error) {
	var out accountResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get(fmt.Sprintf("/budgets/%s/accounts/%s", c.budgetID, budgetAccountID))
	if err := c.check(resp, err); err != nil {
		return "", fmt.Errorf("get account %s: %w", budgetAccountID, err)
	}
	return out.Data.Account.TransferPayeeID, nil
}

// check folds transport errors and non-2xx statuses into the application
// error taxonomy. Rate limits and server errors are retryable, other
// rejections are not.
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

func toSave(fields service.TransactionFields) saveTransaction {
	save := saveTransaction{
		AccountID:  fields.AccountID,
		PayeeID:    fields.PayeeID,
		PayeeName:  fields.PayeeName,
		CategoryID: fields.CategoryID,
		Memo:       fields.Memo,
		Amount:     fields.Amount.Milliunits(),
	}
	if !fields.Date.IsZero() {
		save.Date = fields.Date.Format(dateLayout)
	}
	if fields.Cleared {
		save.Cleared = "cleared"
	}
	return save
}

func toRecord(detail transactionDetail) *service.TransactionRecord {
	date, _ := time.Parse(dateLayout, detail.Date)
	return &service.TransactionRecord{
		ID:         detail.ID,
		Date:       date,
		AccountID:  detail.AccountID,
		PayeeID:    detail.PayeeID,
		PayeeName:  detail.PayeeName,
		CategoryID: detail.CategoryID,
		Memo:       detail.Memo,
		Amount:     model.Amount(detail.Amount / 10),
		Cleared:    detail.Cleared == "cleared",
	}
}
