package cmd

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hkanersen/autopub-cli/api/schemas"
	"github.com/hkanersen/autopub-cli/internal/config"
	"github.com/hkanersen/autopub-cli/internal/observability"
	"github.com/hkanersen/autopub-cli/internal/store"
)

// statusView summarizes a trace's audit history. Job state is process-local
// to the scheduler that ran it, so the durable surface for later inspection
// is the audit trail.
type statusView struct {
	TraceID  string                `json:"trace_id"`
	State    schemas.JobState      `json:"state"`
	Attempts int                   `json:"attempts"`
	Records  []schemas.AuditRecord `json:"records"`
}

// newStatusCmd creates the `status` command: audit-trail lookup by trace id.
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [trace-id]",
		Short: "Shows the audit history and derived state for a trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}
			if cfg.Store.Backend != config.StorePostgres {
				return fmt.Errorf("status requires the postgres store backend (configured: %s)", cfg.Store.Backend)
			}

			pool, err := pgxpool.New(ctx, cfg.Store.PostgresURL)
			if err != nil {
				return fmt.Errorf("failed to create database pool: %w", err)
			}
			defer pool.Close()

			pgStore, err := store.New(ctx, pool, observability.GetLogger())
			if err != nil {
				return err
			}

			traceID := args[0]
			records, err := pgStore.FindAuditRecordsByTraceID(ctx, traceID)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				return fmt.Errorf("no audit records for trace %s", traceID)
			}

			view := statusView{
				TraceID:  traceID,
				State:    deriveState(records),
				Attempts: len(records),
				Records:  records,
			}
			out, err := jsoniter.MarshalIndent(view, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to render status: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

// deriveState maps the latest audit record onto the job state machine.
func deriveState(records []schemas.AuditRecord) schemas.JobState {
	last := records[len(records)-1]
	switch last.Status {
	case schemas.AuditSuccess:
		return schemas.JobSuccess
	case schemas.AuditFailed:
		return schemas.JobFailure
	default:
		return schemas.JobRunning
	}
}
