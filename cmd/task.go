package cmd

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"bedrockcron/internal/engine"
	"bedrockcron/internal/executor"
	"bedrockcron/internal/models"
)

// The task command group is the trusted administrative surface over the
// store: callers are assumed to be already authenticated by whatever wraps
// this binary.
var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage scheduled tasks",
}

var (
	taskName     string
	taskCommand  string
	taskSchedule string
	taskDisabled bool
)

var taskAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a scheduled task",
	Example: `  bedrockcron task add --name "world save" --command save-all --schedule "@every 5m"
  bedrockcron task add --name "night skip" --command "time set day" --schedule "0 6 * * *"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := newAppDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		if err := executor.ValidateCommand(taskCommand); err != nil {
			return err
		}

		task := models.Task{
			Name:     taskName,
			Command:  taskCommand,
			Schedule: taskSchedule,
			Enabled:  !taskDisabled,
		}
		if err := deps.store.CreateTask(&task); err != nil {
			return err
		}

		fmt.Println(task.ID)
		return nil
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks with their last result",
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := newAppDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		tasks, err := deps.store.GetTasks()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSCHEDULE\tENABLED\tLAST RUN\tLAST RESULT\tCOMMAND")
		for _, t := range tasks {
			lastRun := "never"
			if t.LastRunAt != nil {
				lastRun = t.LastRunAt.Local().Format(time.RFC3339)
			}
			lastResult := "-"
			if t.LastResult != nil {
				if t.LastResult.OK {
					lastResult = "ok"
				} else {
					lastResult = "failed: " + t.LastResult.Error
				}
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\t%s\t%s\n",
				t.ID, t.Name, t.Schedule, t.Enabled, lastRun, lastResult, t.Command)
		}
		return w.Flush()
	},
}

var taskRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := newAppDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		return deps.store.DeleteTask(args[0])
	},
}

var taskEnableCmd = &cobra.Command{
	Use:   "enable <id>",
	Short: "Enable a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setEnabled(args[0], true)
	},
}

var taskDisableCmd = &cobra.Command{
	Use:   "disable <id>",
	Short: "Disable a task without deleting it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setEnabled(args[0], false)
	},
}

var taskRunCmd = &cobra.Command{
	Use:   "run <id>",
	Short: "Execute a task immediately",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := newAppDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		e := engine.New(deps.store, engine.Options{
			ExecTimeout: deps.cfg.Scheduler.ExecTimeout,
			Log:         deps.log,
		})
		if err := e.RunNow(cmd.Context(), args[0]); err != nil {
			return err
		}

		t, err := deps.store.GetTaskByID(args[0])
		if err != nil {
			return err
		}
		if t.LastResult != nil && !t.LastResult.OK {
			return errors.New(t.LastResult.Error)
		}
		if t.LastResult != nil && t.LastResult.Output != "" {
			fmt.Println(t.LastResult.Output)
		}
		return nil
	},
}

func setEnabled(id string, enabled bool) error {
	deps, err := newAppDeps()
	if err != nil {
		return err
	}
	defer deps.Close()

	return deps.store.SetEnabled(id, enabled)
}

func init() {
	taskAddCmd.Flags().StringVar(&taskName, "name", "", "human-readable task name")
	taskAddCmd.Flags().StringVar(&taskCommand, "command", "", "console command to send (e.g. save-all)")
	taskAddCmd.Flags().StringVar(&taskSchedule, "schedule", "", `"@every <duration>" or a five-field cron expression`)
	taskAddCmd.Flags().BoolVar(&taskDisabled, "disabled", false, "create the task disabled")
	_ = taskAddCmd.MarkFlagRequired("name")
	_ = taskAddCmd.MarkFlagRequired("command")
	_ = taskAddCmd.MarkFlagRequired("schedule")

	taskCmd.AddCommand(taskAddCmd, taskListCmd, taskRmCmd, taskEnableCmd, taskDisableCmd, taskRunCmd)
	rootCmd.AddCommand(taskCmd)
}
