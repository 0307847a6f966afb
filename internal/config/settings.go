// Package config loads and validates application settings.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/tverdokhlib/bankbridge/internal/category"
	"github.com/tverdokhlib/bankbridge/internal/common"
	"github.com/tverdokhlib/bankbridge/internal/mcc"
	"github.com/tverdokhlib/bankbridge/internal/model"
)

// Backend kinds.
const (
	BackendYNAB       = "ynab"
	BackendLunchmoney = "lunchmoney"
)

// Settings is the full application configuration, read-only after load.
type Settings struct {
	Overrides OverrideSettings `mapstructure:"overrides"`
	Backend   BackendSettings  `mapstructure:"backend"`
	Telegram  TelegramSettings `mapstructure:"telegram"`
	Listen    ListenSettings   `mapstructure:"listen"`
	Journal   JournalSettings  `mapstructure:"journal"`
	Accounts  []AccountEntry   `mapstructure:"accounts" validate:"min=1,dive"`
	Tuning    TuningSettings   `mapstructure:"tuning"`
}

// ListenSettings configures the webhook HTTP listener.
type ListenSettings struct {
	Address string `mapstructure:"address" validate:"required"`
	Path    string `mapstructure:"path" validate:"required"`
}

// BackendSettings selects and authenticates the budgeting backend.
type BackendSettings struct {
	Kind     string `mapstructure:"kind" validate:"oneof=ynab lunchmoney"`
	Token    string `mapstructure:"token" validate:"required"`
	BudgetID string `mapstructure:"budget_id" validate:"required_if=Kind ynab"`
	BaseURL  string `mapstructure:"base_url"`
}

// TelegramSettings configures the messaging bot.
type TelegramSettings struct {
	Token string `mapstructure:"token" validate:"required"`
}

// AccountEntry associates one bank account with its budget account and
// notification chat.
type AccountEntry struct {
	BankAccountID   string `mapstructure:"bank_account_id" validate:"required"`
	BudgetAccountID string `mapstructure:"budget_account_id" validate:"required"`
	Alias           string `mapstructure:"alias"`
	ChatID          int64  `mapstructure:"chat_id" validate:"required"`
}

// OverrideSettings maps merchant-category codes and groups to backend
// category names.
type OverrideSettings struct {
	MCC      map[int]string    `mapstructure:"mcc"`
	MCCGroup map[string]string `mapstructure:"mcc_group"`
}

// TuningSettings are the core's tunables.
type TuningSettings struct {
	DedupTTL        time.Duration `mapstructure:"dedup_ttl" validate:"gt=0"`
	TransferTTL     time.Duration `mapstructure:"transfer_ttl" validate:"gt=0"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval" validate:"gt=0"`
	PayeeThreshold  float64       `mapstructure:"payee_threshold" validate:"gt=0,lt=1"`
}

// JournalSettings configures the reconciliation journal database.
type JournalSettings struct {
	Path string `mapstructure:"path" validate:"required"`
}

// Load reads settings from the given viper instance and validates them.
// A value that is absent yields ErrMissingConfig; a value that is present but
// out of range yields ErrInvalidConfig.
func Load(v *viper.Viper) (*Settings, error) {
	setDefaults(v)

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("%w: failed to parse settings: %v", common.ErrInvalidConfig, err)
	}

	if err := validator.New().Struct(&s); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				if strings.HasPrefix(fe.Tag(), "required") || fe.Tag() == "min" {
					return nil, fmt.Errorf("%w: %s", common.ErrMissingConfig, fe.Namespace())
				}
			}
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidConfig, err)
	}
	return &s, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen.address", ":8080")
	v.SetDefault("listen.path", "/webhook")
	v.SetDefault("backend.kind", BackendYNAB)
	v.SetDefault("tuning.dedup_ttl", 4*time.Minute)
	v.SetDefault("tuning.transfer_ttl", time.Minute)
	v.SetDefault("tuning.refresh_interval", time.Hour)
	v.SetDefault("tuning.payee_threshold", 0.9)
	v.SetDefault("journal.path", "bankbridge.db")
}

// AccountsByBankID builds the bank-account lookup used by the reconciler.
func (s *Settings) AccountsByBankID() map[string]model.AccountMapping {
	mappings := make(map[string]model.AccountMapping, len(s.Accounts))
	for _, a := range s.Accounts {
		mappings[a.BankAccountID] = model.AccountMapping{
			BankAccountID:   a.BankAccountID,
			BudgetAccountID: a.BudgetAccountID,
			ChatID:          a.ChatID,
			Alias:           a.Alias,
		}
	}
	return mappings
}

// CategoryOverrides converts override settings into the suggestion engine's
// typed form.
func (s *Settings) CategoryOverrides() category.Overrides {
	byGroup := make(map[mcc.Group]string, len(s.Overrides.MCCGroup))
	for group, name := range s.Overrides.MCCGroup {
		byGroup[mcc.Group(group)] = name
	}
	return category.Overrides{
		ByCode:  s.Overrides.MCC,
		ByGroup: byGroup,
	}
}
