package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"shiftscheduler/internal/action"
	"shiftscheduler/internal/model"
)

func newUndoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Undo the most recent reversible edit",
		Args:  cobra.NoArgs,
		RunE: runWithApp(func(ctx context.Context, app *App, args []string) error {
			app.Store.Dispatch(action.Undo{})
			if err := app.Drain(ctx); err != nil {
				return err
			}
			st := app.Store.State()
			if err := failure(st.ChangeLog.LastError); err != nil {
				return err
			}
			printNotice(st.ChangeLog.Notice)
			return nil
		}),
	}
}

func newRedoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "redo",
		Short: "Redo the most recently undone edit",
		Args:  cobra.NoArgs,
		RunE: runWithApp(func(ctx context.Context, app *App, args []string) error {
			app.Store.Dispatch(action.Redo{})
			if err := app.Drain(ctx); err != nil {
				return err
			}
			st := app.Store.State()
			if err := failure(st.ChangeLog.LastError); err != nil {
				return err
			}
			printNotice(st.ChangeLog.Notice)
			return nil
		}),
	}
}

func newLogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "log",
		Short: "Show the change log, newest first",
		Args:  cobra.NoArgs,
		RunE: runWithApp(func(ctx context.Context, app *App, args []string) error {
			st := app.Store.State()
			if err := failure(st.ChangeLog.LastError); err != nil {
				return err
			}

			table := uitable.New()
			table.MaxColWidth = 40
			table.AddRow("WHEN", "KIND", "DATE", "FROM", "TO", "REASON")
			for _, e := range st.ChangeLog.Entries {
				table.AddRow(
					e.Timestamp.Local().Format("2006-01-02 15:04"),
					string(e.Kind),
					e.Date.Format("2006-01-02"),
					snapshotLabel(e.Old),
					snapshotLabel(e.New),
					e.Reason,
				)
			}
			fmt.Println(table)

			meta := st.ChangeLog.Meta
			if meta.Count > int64(len(st.ChangeLog.Entries)) {
				fmt.Printf("%d of %d entries shown\n", len(st.ChangeLog.Entries), meta.Count)
			}
			fmt.Printf("undo: %d, redo: %d\n", len(st.ChangeLog.UndoStack), len(st.ChangeLog.RedoStack))
			return nil
		}),
	}
}

func newPurgeCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Remove change-log entries older than the retention horizon",
		Args:  cobra.NoArgs,
		RunE: runWithApp(func(ctx context.Context, app *App, args []string) error {
			horizon := days
			if horizon == 0 {
				horizon = app.Store.State().Settings.Settings.RetentionDays
			}
			if horizon <= 0 {
				return fmt.Errorf("no retention horizon: pass --days or set profile.retention_days")
			}

			cutoff := time.Now().UTC().AddDate(0, 0, -horizon)
			app.Store.Dispatch(action.PurgeChangeLog{Cutoff: cutoff})
			if err := app.Drain(ctx); err != nil {
				return err
			}
			st := app.Store.State()
			if err := failure(st.ChangeLog.LastError); err != nil {
				return err
			}
			printNotice(st.ChangeLog.Notice)
			return nil
		}),
	}
	cmd.Flags().IntVar(&days, "days", 0, "purge entries older than this many days (default: configured retention)")
	return cmd
}

func snapshotLabel(s *model.ShiftSnapshot) string {
	if s == nil {
		return "-"
	}
	return s.Title
}
