package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const systemActor = "system"

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(false)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.migrate(); err != nil {
				return err
			}
			a.logger.Info("schema migrated")
			return nil
		},
	}
}

func recomputeCmd() *cobra.Command {
	var (
		tenants []string
		year    int
		month   int
	)

	cmd := &cobra.Command{
		Use:   "recompute",
		Short: "Recalculate monthly performance for every active vendor",
		Long:  "Recalculate monthly performance for every active vendor. Defaults to the previous calendar month and every tenant.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if year == 0 || month == 0 {
				year, month = previousMonth(time.Now().UTC())
			}
			return runPerTenant(cmd, tenants, "recompute", func(ctx context.Context, a *app, tenant string) (interface{}, error) {
				return a.services.Performance.CalculateAllVendorsPerformance(ctx, tenant, year, month)
			})
		},
	}

	cmd.Flags().StringSliceVarP(&tenants, "tenant", "t", nil, "Tenant IDs (default: all)")
	cmd.Flags().IntVar(&year, "year", 0, "Period year")
	cmd.Flags().IntVar(&month, "month", 0, "Period month (1-12)")
	return cmd
}

func reclassifyCmd() *cobra.Command {
	var tenants []string

	cmd := &cobra.Command{
		Use:   "reclassify",
		Short: "Re-tier every active vendor by trailing spend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPerTenant(cmd, tenants, "reclassify", func(ctx context.Context, a *app, tenant string) (interface{}, error) {
				return a.services.Tier.ReclassifyAll(ctx, tenant, systemActor)
			})
		},
	}

	cmd.Flags().StringSliceVarP(&tenants, "tenant", "t", nil, "Tenant IDs (default: all)")
	return cmd
}

func auditSweepCmd() *cobra.Command {
	var tenants []string

	cmd := &cobra.Command{
		Use:   "audit-sweep",
		Short: "Raise alerts for ESG audits that are due or overdue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPerTenant(cmd, tenants, "audit-sweep", func(ctx context.Context, a *app, tenant string) (interface{}, error) {
				evaluated, err := a.services.Alert.CheckESGAuditDueDates(ctx, tenant)
				return map[string]int{"vendors_evaluated": evaluated}, err
			})
		},
	}

	cmd.Flags().StringSliceVarP(&tenants, "tenant", "t", nil, "Tenant IDs (default: all)")
	return cmd
}

type tenantJob func(ctx context.Context, a *app, tenant string) (interface{}, error)

// runPerTenant runs job once per tenant. A failing tenant does not stop the
// others; the command fails if any tenant failed.
func runPerTenant(cmd *cobra.Command, explicit []string, name string, job tenantJob) error {
	a, err := bootstrap(false)
	if err != nil {
		return err
	}
	defer a.close()
	return a.runJob(cmd.Context(), cmd.OutOrStdout(), explicit, name, job)
}

func (a *app) runJob(ctx context.Context, out io.Writer, explicit []string, name string, job tenantJob) error {
	if ctx == nil {
		ctx = context.Background()
	}
	tenants, err := a.tenants(ctx, explicit)
	if err != nil {
		return fmt.Errorf("list tenants: %w", err)
	}

	enc := json.NewEncoder(out)
	var errs []error
	for _, tenant := range tenants {
		result, err := job(ctx, a, tenant)
		if err != nil {
			a.logger.Error("job failed",
				zap.String("job", name),
				zap.String("tenant_id", tenant),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", tenant, err))
			continue
		}
		if err := enc.Encode(map[string]interface{}{"tenant_id": tenant, "job": name, "result": result}); err != nil {
			return err
		}
	}
	return errors.Join(errs...)
}

func previousMonth(now time.Time) (int, int) {
	prev := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	return prev.Year(), int(prev.Month())
}
