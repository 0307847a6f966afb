package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tverdokhlib/bankbridge/internal/common"
	"github.com/tverdokhlib/bankbridge/internal/mcc"
)

const validYAML = `
backend:
  kind: ynab
  token: ynab-token
  budget_id: budget-1
telegram:
  token: bot-token
accounts:
  - bank_account_id: bank-black
    budget_account_id: budget-black
    chat_id: 42
    alias: black
overrides:
  mcc:
    4121: Taxi
  mcc_group:
    grocery: Groceries
tuning:
  transfer_ttl: 90s
`

func loadYAML(t *testing.T, yaml string) (*Settings, error) {
	t.Helper()
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(yaml)))
	return Load(v)
}

func TestLoad_ValidSettings(t *testing.T) {
	s, err := loadYAML(t, validYAML)
	require.NoError(t, err)

	assert.Equal(t, BackendYNAB, s.Backend.Kind)
	assert.Equal(t, "budget-1", s.Backend.BudgetID)
	assert.Equal(t, 90*time.Second, s.Tuning.TransferTTL)

	// Defaults fill the unspecified tunables.
	assert.Equal(t, ":8080", s.Listen.Address)
	assert.Equal(t, "/webhook", s.Listen.Path)
	assert.Equal(t, 4*time.Minute, s.Tuning.DedupTTL)
	assert.InDelta(t, 0.9, s.Tuning.PayeeThreshold, 1e-9)
}

func TestLoad_AccountsByBankID(t *testing.T) {
	s, err := loadYAML(t, validYAML)
	require.NoError(t, err)

	mappings := s.AccountsByBankID()
	require.Contains(t, mappings, "bank-black")
	assert.Equal(t, "budget-black", mappings["bank-black"].BudgetAccountID)
	assert.Equal(t, int64(42), mappings["bank-black"].ChatID)
}

func TestLoad_CategoryOverrides(t *testing.T) {
	s, err := loadYAML(t, validYAML)
	require.NoError(t, err)

	overrides := s.CategoryOverrides()
	assert.Equal(t, "Taxi", overrides.ByCode[4121])
	assert.Equal(t, "Groceries", overrides.ByGroup[mcc.GroupGrocery])
}

func TestLoad_RejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr error
	}{
		{
			name: "missing accounts",
			yaml: `
backend: {kind: ynab, token: t, budget_id: b}
telegram: {token: t}
`,
			wantErr: common.ErrMissingConfig,
		},
		{
			name: "unknown backend kind",
			yaml: `
backend: {kind: quickbooks, token: t}
telegram: {token: t}
accounts: [{bank_account_id: a, budget_account_id: b, chat_id: 1}]
`,
			wantErr: common.ErrInvalidConfig,
		},
		{
			name: "ynab requires budget id",
			yaml: `
backend: {kind: ynab, token: t}
telegram: {token: t}
accounts: [{bank_account_id: a, budget_account_id: b, chat_id: 1}]
`,
			wantErr: common.ErrMissingConfig,
		},
		{
			name: "missing telegram token",
			yaml: `
backend: {kind: lunchmoney, token: t}
accounts: [{bank_account_id: a, budget_account_id: b, chat_id: 1}]
`,
			wantErr: common.ErrMissingConfig,
		},
		{
			name: "payee threshold out of range",
			yaml: `
backend: {kind: lunchmoney, token: t}
telegram: {token: t}
accounts: [{bank_account_id: a, budget_account_id: b, chat_id: 1}]
tuning: {payee_threshold: 1.5}
`,
			wantErr: common.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadYAML(t, tt.yaml)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoad_LunchmoneyNeedsNoBudgetID(t *testing.T) {
	yaml := `
backend: {kind: lunchmoney, token: t}
telegram: {token: t}
accounts: [{bank_account_id: a, budget_account_id: b, chat_id: 1}]
`
	s, err := loadYAML(t, yaml)
	require.NoError(t, err)
	assert.Equal(t, BackendLunchmoney, s.Backend.Kind)
}
