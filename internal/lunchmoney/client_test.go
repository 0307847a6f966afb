package lunchmoney

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tverdokhlib/bankbridge/internal/model"
	"github.com/tverdokhlib/bankbridge/internal/service"
)

func TestClient_CreateTransaction(t *testing.T) {
	var gotBody map[string]json.RawMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/transactions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ids":[771]}`))
	}))
	defer server.Close()

	c := NewClient("secret", server.URL)
	id, err := c.CreateTransaction(context.Background(), service.TransactionFields{
		Date:      time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		AccountID: "19",
		PayeeName: "Rozetka",
		Memo:      "ROZETKA KYIV",
		Amount:    model.Amount(-12550),
	})
	require.NoError(t, err)
	assert.Equal(t, "771", id)

	var txns []insertTransaction
	require.NoError(t, json.Unmarshal(gotBody["transactions"], &txns))
	require.Len(t, txns, 1)
	assert.Equal(t, "2024-03-01", txns[0].Date)
	assert.Equal(t, "-125.5", txns[0].Amount, "minor units become a decimal major-unit amount")
	assert.Equal(t, int64(19), txns[0].AssetID)
}

func TestClient_UpdateTransactionRelabelsPayee(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodPut:
			require.Equal(t, "/transactions/771", r.URL.Path)
			var body map[string]json.RawMessage
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			var update updateTransaction
			require.NoError(t, json.Unmarshal(body["transaction"], &update))
			assert.Equal(t, TransferPayee, update.Payee)
			_, _ = w.Write([]byte(`{"updated":true}`))
		case http.MethodGet:
			_, _ = w.Write([]byte(`{"id":771,"date":"2024-03-01","payee":"Transfer","amount":"-125.50","status":"cleared"}`))
		}
	}))
	defer server.Close()

	c := NewClient("secret", server.URL)
	record, err := c.UpdateTransaction(context.Background(), "771", service.TransactionFields{
		PayeeID: TransferPayee,
		Cleared: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "771", record.ID)
	assert.True(t, record.Cleared)
	assert.Equal(t, model.Amount(-12550), record.Amount)
}

func TestClient_ListCategoriesSkipsArchived(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"categories":[
			{"id":1,"name":"Groceries"},
			{"id":2,"name":"Old","archived":true}
		]}`))
	}))
	defer server.Close()

	c := NewClient("secret", server.URL)
	categories, err := c.ListCategories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.Category{{ID: "1", Name: "Groceries"}}, categories)
}

func TestClient_ListPayeesDeduplicates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transactions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"transactions":[
			{"id":1,"payee":"Rozetka"},
			{"id":2,"payee":"Silpo"},
			{"id":3,"payee":"Rozetka"},
			{"id":4,"payee":""}
		]}`))
	}))
	defer server.Close()

	c := NewClient("secret", server.URL)
	payees, err := c.ListPayees(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.Payee{{Name: "Rozetka"}, {Name: "Silpo"}}, payees)
}
