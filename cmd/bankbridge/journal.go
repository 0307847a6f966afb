package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tverdokhlib/bankbridge/internal/config"
	"github.com/tverdokhlib/bankbridge/internal/storage"
)

func journalCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show recently reconciled transactions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}

			journal, err := storage.NewSQLiteJournal(settings.Journal.Path)
			if err != nil {
				return fmt.Errorf("failed to open journal: %w", err)
			}
			defer func() { _ = journal.Close() }()

			if err := journal.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("failed to migrate journal: %w", err)
			}

			entries, err := journal.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PROCESSED\tACCOUNT\tAMOUNT\tKIND\tTRANSACTION\tMEMO")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					e.ProcessedAt.Local().Format("2006-01-02 15:04"),
					e.BankAccountID,
					e.Amount.Format(2),
					e.Classification,
					e.TransactionID,
					e.Memo)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum entries to show")
	return cmd
}
