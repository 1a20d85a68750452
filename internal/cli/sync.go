package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"shiftscheduler/internal/action"
	"shiftscheduler/internal/model"
	"shiftscheduler/internal/state"
)

func newSyncCmd() *cobra.Command {
	var uploadOnly bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync locations and shift types with the configured server",
		Args:  cobra.NoArgs,
		RunE: runWithApp(func(ctx context.Context, app *App, args []string) error {
			app.Store.Dispatch(action.StartSync{UploadOnly: uploadOnly})
			if err := app.Drain(ctx); err != nil {
				return err
			}
			st := app.Store.State()
			return reportSync(&st.Sync)
		}),
	}
	cmd.Flags().BoolVar(&uploadOnly, "upload-only", false, "push dirty records without downloading")
	cmd.AddCommand(newSyncResolveCmd(), newSyncResetCmd(), newSyncStatusCmd())
	return cmd
}

func reportSync(st *state.SyncState) error {
	switch st.Status {
	case state.SyncStatusNotConfigured:
		return fmt.Errorf("no sync server configured (set sync.url) or server unreachable")
	case state.SyncStatusFailed:
		return failure(st.LastError)
	case state.SyncStatusConflicts:
		fmt.Println(color.YellowString("sync finished with %d conflict(s):", len(st.Conflicts)))
		printConflicts(st.Conflicts)
		fmt.Println("resolve with `shiftscheduler sync resolve <conflict-id> --keep local|remote`")
		return nil
	default:
		fmt.Println(color.GreenString("sync completed: %d uploaded, %d downloaded", st.Uploaded, st.Downloaded))
		return nil
	}
}

func printConflicts(conflicts []model.Conflict) {
	table := uitable.New()
	table.MaxColWidth = 48
	table.AddRow("CONFLICT ID", "KIND", "RECORD", "LOCAL REV", "REMOTE REV")
	for _, c := range conflicts {
		table.AddRow(c.ConflictID, string(c.Kind), c.RecordID, c.Local.Rev, c.Remote.Rev)
	}
	fmt.Println(table)
}

func newSyncResolveCmd() *cobra.Command {
	var keep, payloadFile string
	cmd := &cobra.Command{
		Use:   "resolve <conflict-id>",
		Short: "Resolve one sync conflict",
		Args:  cobra.ExactArgs(1),
		RunE: runWithApp(func(ctx context.Context, app *App, args []string) error {
			var (
				res    model.Resolution
				merged []byte
			)
			switch keep {
			case "local":
				res = model.KeepLocal
			case "remote":
				res = model.KeepRemote
			case "merged":
				res = model.Merged
				if payloadFile == "" {
					return fmt.Errorf("--keep merged needs --payload <file>")
				}
				data, err := os.ReadFile(payloadFile)
				if err != nil {
					return fmt.Errorf("read merged payload: %w", err)
				}
				merged = data
			default:
				return fmt.Errorf("--keep must be local, remote or merged")
			}

			// a fresh process has no conflicts in state yet; run a pass first
			app.Store.Dispatch(action.StartSync{})
			if err := app.Drain(ctx); err != nil {
				return err
			}

			app.Store.Dispatch(action.ResolveConflict{ConflictID: args[0], Resolution: res, Merged: merged})
			if err := app.Drain(ctx); err != nil {
				return err
			}
			st := app.Store.State()
			if err := failure(st.Sync.LastError); err != nil {
				return err
			}
			fmt.Println(color.GreenString("conflict resolved"))
			return nil
		}),
	}
	cmd.Flags().StringVar(&keep, "keep", "", "which side wins: local, remote or merged")
	cmd.Flags().StringVar(&payloadFile, "payload", "", "hand-merged JSON payload (with --keep merged)")
	_ = cmd.MarkFlagRequired("keep")
	return cmd
}

func newSyncResetCmd() *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear local sync bookkeeping so the next pass starts from scratch",
		Args:  cobra.NoArgs,
		RunE: runWithApp(func(ctx context.Context, app *App, args []string) error {
			app.Store.Dispatch(action.ResetSync{Remote: remote})
			if err := app.Drain(ctx); err != nil {
				return err
			}
			st := app.Store.State()
			if err := failure(st.Sync.LastError); err != nil {
				return err
			}
			fmt.Println("sync state reset")
			return nil
		}),
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "also ask the server to drop its pending conflicts")
	return cmd
}

func newSyncStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the sync checkpoint and pending conflicts",
		Args:  cobra.NoArgs,
		RunE: runWithApp(func(ctx context.Context, app *App, args []string) error {
			cp, err := app.Repo.SyncState.Load()
			if err != nil {
				return err
			}
			fmt.Printf("server:  %s\n", orNone(app.Cfg.Sync.URL))
			fmt.Printf("cursor:  %d\n", cp.Cursor)
			if cp.LastSyncedAt != nil {
				fmt.Printf("last:    %s\n", cp.LastSyncedAt.Local().Format("2006-01-02 15:04:05"))
			} else {
				fmt.Printf("last:    never\n")
			}

			st := app.Store.State()
			if len(st.Sync.Conflicts) > 0 {
				printConflicts(st.Sync.Conflicts)
			}
			return nil
		}),
	}
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func newResyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resync",
		Short: "Rewrite every calendar event from its shift type definition",
		Args:  cobra.NoArgs,
		RunE: runWithApp(func(ctx context.Context, app *App, args []string) error {
			st := app.Store.State()
			rewritten, err := app.Calendar.ResyncAll(ctx, st.ShiftTypes.Items)
			if err != nil {
				return fmt.Errorf("resync calendar: %w", err)
			}

			// pick up the rewritten events
			pivot := st.Schedule.DisplayedMonth
			if pivot.IsZero() {
				pivot = time.Now()
			}
			app.Store.Dispatch(action.LoadWindow{Pivot: pivot})
			if err := app.Drain(ctx); err != nil {
				return err
			}
			fmt.Println(color.GreenString("resynced %d calendar event(s)", rewritten))
			return nil
		}),
	}
}
