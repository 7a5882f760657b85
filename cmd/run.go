package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/hkanersen/autopub-cli/api/schemas"
	"github.com/hkanersen/autopub-cli/internal/config"
	"github.com/hkanersen/autopub-cli/internal/observability"
)

// runEnvelope is what `run` prints: the plan plus, when executed, one
// execution entry per planned task.
type runEnvelope struct {
	Goal      string             `json:"goal"`
	Summary   string             `json:"summary"`
	Source    schemas.PlanSource `json:"source"`
	Tasks     []schemas.Task     `json:"tasks"`
	TraceID   string             `json:"trace_id,omitempty"`
	Execution []taskExecution    `json:"execution,omitempty"`
}

// taskExecution records how one planned task fared. Tasks flagged for human
// approval are never submitted; they carry a skip marker instead of a job.
type taskExecution struct {
	TaskID    int                `json:"task_id"`
	TaskTitle string             `json:"task_title"`
	Status    string             `json:"status"`
	JobID     string             `json:"job_id,omitempty"`
	Error     string             `json:"error,omitempty"`
	Job       *schemas.JobStatus `json:"job,omitempty"`
}

const (
	taskSkippedRequiresApproval = "skipped_requires_approval"
	taskFailedToEnqueue         = "failed_to_enqueue"
)

// jobScheduler is the slice of the scheduler the run command drives.
type jobScheduler interface {
	Submit(ctx context.Context, req schemas.JobRequest) (string, error)
	Status(jobID string) (*schemas.JobStatus, error)
}

// newRunCmd creates the `run` command: plan a goal and optionally drive each
// executable task through the execution pipeline.
func newRunCmd() *cobra.Command {
	var (
		contextPairs map[string]string
		execute      bool
		postID       int64
		platform     string
		traceID      string
	)

	runCmd := &cobra.Command{
		Use:   "run [goal]",
		Short: "Plans a goal and, with --execute, runs it in the browser",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return viper.BindPFlag("planner.max_steps", cmd.Flags().Lookup("max-steps"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			goal := args[0]
			goalCtx := toGoalContext(contextPairs)
			if platform != "" {
				if goalCtx == nil {
					goalCtx = map[string]any{}
				}
				goalCtx["platform"] = platform
			}

			envelope := &runEnvelope{Goal: goal}

			if !execute {
				plan := newPlanner(cfg, logger).GeneratePlan(ctx, goal, goalCtx, cfg.Planner.MaxSteps)
				envelope.Summary = plan.Summary
				envelope.Source = plan.Source
				envelope.Tasks = plan.Tasks
				return printEnvelope(cmd, envelope)
			}

			components, err := initializeComponents(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer components.Shutdown(ctx)

			plan := components.Planner.GeneratePlan(ctx, goal, goalCtx, cfg.Planner.MaxSteps)
			envelope.Summary = plan.Summary
			envelope.Source = plan.Source
			envelope.Tasks = plan.Tasks

			// Every task job of this run shares one trace, so the audit trail
			// for the whole plan is retrievable by a single id.
			if traceID == "" {
				traceID = uuid.New().String()
			}
			envelope.TraceID = traceID

			// Mirror lifecycle events to the console while jobs run.
			eventsCh, unsubscribe := components.Bus.Subscribe()
			defer unsubscribe()
			go func() {
				for event := range eventsCh {
					fmt.Fprintf(cmd.ErrOrStderr(), "[%s] %s\n", event.Level, event.Message)
				}
			}()

			execution, err := executeTasks(ctx, components.Scheduler, plan.Tasks, schemas.JobRequest{
				Goal:     goal,
				Context:  goalCtx,
				TraceID:  traceID,
				PostID:   postID,
				Platform: platform,
			})
			envelope.Execution = execution
			if err != nil {
				return err
			}

			logger.Info("Run finished",
				zap.String("trace_id", traceID),
				zap.Int("tasks", len(plan.Tasks)),
				zap.Int("executed", len(execution)))

			if err := printEnvelope(cmd, envelope); err != nil {
				return err
			}
			if failed := failedTasks(execution); len(failed) > 0 {
				return fmt.Errorf("task execution failed: %s", strings.Join(failed, ", "))
			}
			return nil
		},
	}

	runCmd.Flags().StringToStringVar(&contextPairs, "context", nil, "goal context as key=value pairs")
	runCmd.Flags().BoolVar(&execute, "execute", false, "execute the planned tasks instead of only planning them")
	runCmd.Flags().Int64Var(&postID, "post-id", 0, "post to mark published/failed as jobs resolve")
	runCmd.Flags().StringVar(&platform, "platform", "", "target platform, e.g. linkedin")
	runCmd.Flags().StringVar(&traceID, "trace-id", "", "trace id for the audit trail (generated when empty)")
	runCmd.Flags().Int("max-steps", 5, "maximum number of plan steps (1-10)")
	return runCmd
}

// executeTasks submits one job per executable task and waits for each to
// reach a terminal state. Tasks that require human approval are skipped.
// Each task runs with its own goal and context, falling back to the
// request-level ones when the planner left them empty.
func executeTasks(ctx context.Context, sched jobScheduler, tasks []schemas.Task, base schemas.JobRequest) ([]taskExecution, error) {
	execution := make([]taskExecution, 0, len(tasks))
	for _, task := range tasks {
		entry := taskExecution{TaskID: task.ID, TaskTitle: task.Title}

		if task.RequiresHumanApproval {
			entry.Status = taskSkippedRequiresApproval
			execution = append(execution, entry)
			continue
		}

		req := base
		if task.Goal != "" {
			req.Goal = task.Goal
		}
		if task.Context != nil {
			req.Context = task.Context
		}

		jobID, err := sched.Submit(ctx, req)
		if err != nil {
			entry.Status = taskFailedToEnqueue
			entry.Error = err.Error()
			execution = append(execution, entry)
			continue
		}
		entry.JobID = jobID

		status, err := awaitJob(ctx, sched, jobID)
		if err != nil {
			execution = append(execution, entry)
			return execution, err
		}
		entry.Status = string(status.State)
		entry.Error = status.Error
		entry.Job = status
		execution = append(execution, entry)
	}
	return execution, nil
}

// failedTasks lists the titles of entries that did not end successfully.
// Skipped tasks are not failures.
func failedTasks(execution []taskExecution) []string {
	var failed []string
	for _, entry := range execution {
		if entry.Status == taskFailedToEnqueue || (entry.Job != nil && !entry.Job.Successful) {
			failed = append(failed, entry.TaskTitle)
		}
	}
	return failed
}

// awaitJob polls until the job reaches a terminal state. The poll interval
// is coarse; jobs backing off between retries can hold this for minutes.
func awaitJob(ctx context.Context, sched jobScheduler, jobID string) (*schemas.JobStatus, error) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		status, err := sched.Status(jobID)
		if err != nil {
			return nil, err
		}
		if status.Ready {
			return status, nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, fmt.Errorf("aborted while waiting for job %s: %w", jobID, ctx.Err())
		}
	}
}

func printEnvelope(cmd *cobra.Command, envelope *runEnvelope) error {
	out, err := jsoniter.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to render result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
