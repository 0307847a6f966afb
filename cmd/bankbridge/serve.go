package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tverdokhlib/bankbridge/internal/category"
	"github.com/tverdokhlib/bankbridge/internal/common"
	"github.com/tverdokhlib/bankbridge/internal/config"
	"github.com/tverdokhlib/bankbridge/internal/dedup"
	"github.com/tverdokhlib/bankbridge/internal/fetcher"
	"github.com/tverdokhlib/bankbridge/internal/lunchmoney"
	"github.com/tverdokhlib/bankbridge/internal/payee"
	"github.com/tverdokhlib/bankbridge/internal/reconcile"
	"github.com/tverdokhlib/bankbridge/internal/service"
	"github.com/tverdokhlib/bankbridge/internal/storage"
	"github.com/tverdokhlib/bankbridge/internal/telegram"
	"github.com/tverdokhlib/bankbridge/internal/transfer"
	"github.com/tverdokhlib/bankbridge/internal/webhook"
	"github.com/tverdokhlib/bankbridge/internal/ynab"
)

const shutdownTimeout = 30 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook listener and reconciliation pipeline",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	settings, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	journal, err := storage.NewSQLiteJournal(settings.Journal.Path)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer func() { _ = journal.Close() }()

	if err := journal.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate journal: %w", err)
	}

	budget, err := newBudgetClient(settings)
	if err != nil {
		return err
	}

	categories, err := fetcher.New("categories", settings.Tuning.RefreshInterval, budget.ListCategories)
	if err != nil {
		return fmt.Errorf("failed to start category fetcher: %w", err)
	}
	defer categories.Close()

	payees, err := fetcher.New("payees", settings.Tuning.RefreshInterval, budget.ListPayees)
	if err != nil {
		return fmt.Errorf("failed to start payee fetcher: %w", err)
	}
	defer payees.Close()

	accounts := settings.AccountsByBankID()

	reconciler := reconcile.NewReconciler(
		budget,
		category.NewEngine(settings.CategoryOverrides(), categories),
		payees,
		payee.NewSuggester(settings.Tuning.PayeeThreshold),
		accounts,
		common.RetryOptions{},
	)

	filter := dedup.NewFilter(settings.Tuning.DedupTTL)
	defer filter.Close()

	correlator := transfer.NewCorrelator(settings.Tuning.TransferTTL)
	defer correlator.Close()

	bot := telegram.NewClient(settings.Telegram.Token, "")
	sender := telegram.NewSender(bot, accounts)

	processor := webhook.NewProcessor(filter, correlator, reconciler, journal, sender, accounts, 0)
	server := webhook.NewServer(settings.Listen.Address, settings.Listen.Path, processor)

	callbacks := telegram.NewCallbackHandler(bot, budget)
	go callbacks.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	common.LogInfo("bankbridge serving", common.Fields{
		"backend":  settings.Backend.Kind,
		"accounts": len(settings.Accounts),
	})

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down listener: %w", err)
	}
	return nil
}

func newBudgetClient(settings *config.Settings) (service.BudgetClient, error) {
	switch settings.Backend.Kind {
	case config.BackendYNAB:
		return ynab.NewClient(settings.Backend.Token, settings.Backend.BudgetID, settings.Backend.BaseURL), nil
	case config.BackendLunchmoney:
		return lunchmoney.NewClient(settings.Backend.Token, settings.Backend.BaseURL), nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", common.ErrInvalidConfig, settings.Backend.Kind)
	}
}
