package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tradelift/tradelift-sdk/pkg/configuration"
)

func newValidateCmd() *cobra.Command {
	var tenant string

	cmd := &cobra.Command{
		Use:   "validate --tenant <uuid>",
		Short: "Report orphaned nodes and path/level mismatches without touching data",
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

			issues, err := svc.ValidateHierarchy(cmd.Context(), tenantID)
			if err != nil {
				return err
			}

			log := configuration.Use().Logger()
			if len(issues) == 0 {
				log.WithField("tenant_id", tenantID).Info("hierarchy is consistent")
				return nil
			}
			for _, issue := range issues {
				log.WithFields(logrus.Fields{
					"tenant_id": tenantID,
					"kind":      issue.Kind,
					"node_id":   issue.NodeID,
				}).Warn(issue.Detail)
			}
			return fmt.Errorf("%d integrity issue(s) found", len(issues))
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant id to validate (required)")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}
