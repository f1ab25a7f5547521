package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"storefront/internal/commons"
	"storefront/internal/dto"
	"storefront/internal/infrastructure/logger"
	"storefront/internal/infrastructure/mysql"
	"storefront/internal/order"
)

// runtime owns everything a command opens.
type runtime struct {
	module *order.Module
	logger *zap.Logger
	close  func()
}

func open(configPath string) (*runtime, error) {
	cfg, err := commons.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	zapLogger, err := logger.New(cfg.Log.Level, "storefront-reconcile")
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	db, err := mysql.NewConnection(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	module, err := order.NewModule(db, cfg, zapLogger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &runtime{
		module: module,
		logger: zapLogger,
		close: func() {
			if err := module.Close(); err != nil {
				zapLogger.Error("closing order module", zap.Error(err))
			}
			_ = db.Close()
			_ = zapLogger.Sync()
		},
	}, nil
}

func sweepCmd(configPath *string) *cobra.Command {
	var statuses []string
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Re-verify held and stale pending orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := open(*configPath)
			if err != nil {
				return err
			}
			defer rt.close()

			result, err := rt.module.Sweeper.Sweep(cmd.Context(), dto.SweepRequest{
				Statuses: statuses,
				Limit:    limit,
			}, uuid.New().String())
			if err != nil {
				return fmt.Errorf("sweep: %w", err)
			}

			return printSweep(cmd.OutOrStdout(), result, asJSON)
		},
	}

	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Payment statuses to re-verify (held, pending)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum orders to examine")
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "Output as JSON")

	return cmd
}

func orderCmd(configPath *string) *cobra.Command {
	var intent string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "order [orderId]",
		Short: "Verify one order's payment and apply the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch dto.Intent(intent) {
			case dto.IntentRetry, dto.IntentAbandon:
			default:
				return fmt.Errorf("invalid intent %q: must be retry or abandon", intent)
			}

			rt, err := open(*configPath)
			if err != nil {
				return err
			}
			defer rt.close()

			result, err := rt.module.Reconciler.Reconcile(cmd.Context(), dto.Notification{
				OrderID: args[0],
				Source:  dto.SourceSweep,
				Intent:  dto.Intent(intent),
				TraceID: uuid.New().String(),
			})
			if err != nil {
				return fmt.Errorf("reconcile %s: %w", args[0], err)
			}

			return printResult(cmd.OutOrStdout(), result, asJSON)
		},
	}

	cmd.Flags().StringVarP(&intent, "intent", "i", string(dto.IntentRetry), "What to do with the order if payment failed (retry, abandon)")
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "Output as JSON")

	return cmd
}

func printSweep(w io.Writer, r *dto.SweepResult, asJSON bool) error {
	if asJSON {
		return json.NewEncoder(w).Encode(dto.SweepResponse{
			Examined:  r.Examined,
			Confirmed: r.Confirmed,
			Failed:    r.Failed,
			Pending:   r.Pending,
			Errors:    r.Errors,
		})
	}
	_, err := fmt.Fprintf(w, "examined=%d confirmed=%d failed=%d pending=%d errors=%d\n",
		r.Examined, r.Confirmed, r.Failed, r.Pending, r.Errors)
	return err
}

func printResult(w io.Writer, r *dto.ReconcileResult, asJSON bool) error {
	if asJSON {
		return json.NewEncoder(w).Encode(dto.PaymentResultResponse{
			OrderID:       r.OrderID,
			Outcome:       string(r.Outcome),
			OrderStatus:   string(r.OrderStatus),
			PaymentStatus: string(r.PaymentStatus),
			TransactionID: r.TransactionID,
			Replayed:      r.Replayed,
		})
	}
	_, err := fmt.Fprintf(w, "%s outcome=%s order=%s payment=%s replayed=%t\n",
		r.OrderID, r.Outcome, r.OrderStatus, r.PaymentStatus, r.Replayed)
	return err
}
