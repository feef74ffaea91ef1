package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tradelift/tradelift-sdk/pkg/configuration"
)

func newRepairCmd() *cobra.Command {
	var tenant string

	cmd := &cobra.Command{
		Use:   "repair --tenant <uuid>",
		Short: "Rewrite mismatched paths and levels and recompute hasChildren flags",
		Long: `Repair converges: running it on an already-consistent tree changes
nothing. Orphaned nodes are reported but never modified; deciding whether
to delete or reparent them is left to an operator.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenantID, err := parseTenant(tenant)
			if err != nil {
				return err
			}

			svc, closeFn, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			report, err := svc.RepairHierarchy(cmd.Context(), tenantID)
			if err != nil {
				return err
			}

			log := configuration.Use().Logger()
			for _, repair := range report.Repairs {
				log.WithFields(logrus.Fields{
					"tenant_id": tenantID,
					"node_id":   repair.NodeID,
					"field":     repair.Field,
					"old":       repair.Old,
					"new":       repair.New,
				}).Info("repaired")
			}
			for _, orphan := range report.Orphans {
				log.WithFields(logrus.Fields{
					"tenant_id": tenantID,
					"node_id":   orphan.NodeID,
				}).Warn(orphan.Detail)
			}
			log.WithFields(logrus.Fields{
				"tenant_id": tenantID,
				"repairs":   len(report.Repairs),
				"orphans":   len(report.Orphans),
			}).Info("repair finished")
			return nil
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant id to repair (required)")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}
