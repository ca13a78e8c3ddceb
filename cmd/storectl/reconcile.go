package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"

	"grene-storefront/internal/config"
	"grene-storefront/internal/modal"
	"grene-storefront/internal/workflows"
)

func reconcileCmd(load func() (config.Config, error)) *cobra.Command {
	var (
		order   string
		token   string
		wait    bool
		exclusive bool
	)
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Start payment reconciliation for an order",
		Long: `Starts the ReconcilePayment workflow for a commerce order. Useful when a
gateway confirmation was lost or the API ran without Temporal at checkout.
With --wait the command blocks until the workflow settles or gives up.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if order == "" || token == "" {
				return errors.New("--order and --token are required")
			}
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			c, err := client.Dial(client.Options{
				HostPort:  cfg.Temporal.HostPort,
				Namespace: cfg.Temporal.Namespace,
				Logger:    tlog.NewStructuredLogger(slog.Default()),
			})
			if err != nil {
				return fmt.Errorf("unable to create Temporal client: %w", err)
			}
			defer c.Close()

			opts := reconcileOptions(order, exclusive)
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			we, err := c.ExecuteWorkflow(ctx, opts, workflows.ReconcilePayment, modal.PaymentRef{CommerceOrder: order, Token: token})
			if err != nil {
				return fmt.Errorf("unable to execute workflow: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "workflow %s run %s\n", we.GetID(), we.GetRunID())

			if !wait {
				return nil
			}
			var result string
			if err := we.Get(cmd.Context(), &result); err != nil {
				return fmt.Errorf("unable to get workflow result: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "result %s\n", result)
			return nil
		},
	}
	cmd.Flags().StringVar(&order, "order", "", "commerce order id")
	cmd.Flags().StringVar(&token, "token", "", "gateway payment token")
	cmd.Flags().BoolVar(&wait, "wait", false, "block until the workflow completes")
	cmd.Flags().BoolVar(&exclusive, "exclusive", false, "fail if the order was ever reconciled before")
	return cmd
}

// reconcileOptions targets the same workflow id as the API so a running
// reconciliation is joined rather than duplicated.
func reconcileOptions(order string, exclusive bool) client.StartWorkflowOptions {
	opts := workflows.ReconcileOptions(order)
	if exclusive {
		opts.WorkflowExecutionErrorWhenAlreadyStarted = true
		opts.WorkflowIDReusePolicy = enums.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE
	}
	return opts
}
