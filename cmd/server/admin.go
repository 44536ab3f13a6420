package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/warp/site-payroll/rules"
	"github.com/warp/site-payroll/workforce"
)

// =============================================================================
// SEED
// =============================================================================

func seedCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert the trade category table, skipping codes that exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, v)
			if err != nil {
				return err
			}
			defer a.Close()

			if reset, _ := cmd.Flags().GetBool("reset"); reset {
				if err := a.store.Reset(cmd.Context()); err != nil {
					return err
				}
				log.Printf("Database %s reset", a.cfg.Database.Path)
			}

			created, err := rules.EnsureDefaults(cmd.Context(), a.handler.Registry, a.handler.TradeDefaults)
			if err != nil {
				return err
			}
			if len(created) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Trade categories already present")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created trade categories: %v\n", created)
			return nil
		},
	}
	cmd.Flags().Bool("reset", false, "Delete all data before seeding")
	return cmd
}

// =============================================================================
// PAYROLL
// =============================================================================

func recalculateCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recalculate",
		Short: "Recalculate payroll for every active employee in a month",
		Long: `Recalculate payroll for every active employee in a month.

Locked months are recalculated too; the lock only blocks attendance edits
and plain calculation. Employees that fail (no trade category, no daily
rate) are listed and the command exits non-zero.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := periodFlags(cmd)
			if err != nil {
				return err
			}
			a, err := openApp(cmd, v)
			if err != nil {
				return err
			}
			defer a.Close()

			by, _ := cmd.Flags().GetString("by")
			res, err := a.handler.Payroll.RecalculateForMonth(cmd.Context(), p, by)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Payroll %s: %d calculated, %d failed\n", p, res.SuccessCount, len(res.Errors))
			for _, e := range res.Errors {
				fmt.Fprintf(out, "  %s\n", e)
			}
			if len(res.Errors) > 0 {
				return fmt.Errorf("%d employees failed", len(res.Errors))
			}
			return nil
		},
	}
	addPeriodFlags(cmd)
	cmd.Flags().String("by", "", "Recorded as calculated_by (default payroll.calculated_by)")
	return cmd
}

// =============================================================================
// MONTH LOCKS
// =============================================================================

func lockCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Lock a month against attendance edits and payroll changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := periodFlags(cmd)
			if err != nil {
				return err
			}
			a, err := openApp(cmd, v)
			if err != nil {
				return err
			}
			defer a.Close()

			by, _ := cmd.Flags().GetString("by")
			lock, err := a.handler.Locks.Lock(cmd.Context(), p, by)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Month %s locked by %s\n", lock.Period, lock.LockedBy)
			return nil
		},
	}
	addPeriodFlags(cmd)
	cmd.Flags().String("by", "cli", "Who is locking the month")
	return cmd
}

func unlockCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unlock",
		Short: "Unlock a month; a reason is required",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := periodFlags(cmd)
			if err != nil {
				return err
			}
			a, err := openApp(cmd, v)
			if err != nil {
				return err
			}
			defer a.Close()

			by, _ := cmd.Flags().GetString("by")
			reason, _ := cmd.Flags().GetString("reason")
			lock, err := a.handler.Locks.Unlock(cmd.Context(), p, by, reason)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Month %s unlocked by %s: %s\n", lock.Period, lock.UnlockedBy, lock.UnlockReason)
			return nil
		},
	}
	addPeriodFlags(cmd)
	cmd.Flags().String("by", "cli", "Who is unlocking the month")
	cmd.Flags().String("reason", "", "Why the month is reopened (required)")
	return cmd
}

// =============================================================================
// TRADE TABLE
// =============================================================================

func tradesCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "trades",
		Short: "Print the stored trade category table as YAML",
		Long: `Print the stored trade category table as YAML.

The output can be edited and passed back as seed.trade_table.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, v)
			if err != nil {
				return err
			}
			defer a.Close()

			cats, err := a.handler.Registry.ListTradeCategories(cmd.Context())
			if err != nil {
				return err
			}
			data, err := rules.MarshalYAML(cats)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func addPeriodFlags(cmd *cobra.Command) {
	cmd.Flags().Int("year", 0, "Year, e.g. 2024")
	cmd.Flags().Int("month", 0, "Month 1-12")
	cmd.MarkFlagRequired("year")
	cmd.MarkFlagRequired("month")
}

func periodFlags(cmd *cobra.Command) (workforce.Period, error) {
	year, _ := cmd.Flags().GetInt("year")
	month, _ := cmd.Flags().GetInt("month")
	return workforce.NewPeriod(year, month)
}
