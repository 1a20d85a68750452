package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"shiftscheduler/config"
	"shiftscheduler/internal/model"
	"shiftscheduler/internal/state"
	"shiftscheduler/pkg/apperr"
)

var cfgFile string

// Execute runs the root command.
func Execute() error {
	root := newRootCmd()
	return root.Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "shiftscheduler",
		Short:         "Personal shift scheduling with undo, overlap guard and sync",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.shiftscheduler/config.yaml)")

	root.AddCommand(
		newAddCmd(),
		newSwitchCmd(),
		newRmCmd(),
		newBulkAddCmd(),
		newBulkRmCmd(),
		newListCmd(),
		newResolveCmd(),
		newUndoCmd(),
		newRedoCmd(),
		newLogCmd(),
		newPurgeCmd(),
		newResyncCmd(),
		newTypesCmd(),
		newLocationsCmd(),
		newSyncCmd(),
		newExportCmd(),
		newServeCmd(),
	)
	return root
}

// runWithApp loads config, wires the engine, boots it, runs fn, and tears
// everything down. Commands that do not need the engine (serve) skip this.
func runWithApp(fn func(ctx context.Context, app *App, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		app, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := cmd.Context()
		if err := app.Boot(ctx); err != nil {
			return fmt.Errorf("startup did not settle: %w", err)
		}
		return fn(ctx, app, args)
	}
}

// ── shared parsing/printing helpers ──

func parseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad date %q, want YYYY-MM-DD", s)
	}
	return t, nil
}

func parseMonth(s string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad month %q, want YYYY-MM", s)
	}
	return t, nil
}

// resolveShiftType matches a command-line reference against the loaded
// catalog: exact id first, then symbol, then case-insensitive title.
func resolveShiftType(st *state.ShiftTypesState, ref string) (*model.ShiftType, error) {
	if t := st.ByID(ref); t != nil {
		return t, nil
	}
	for i := range st.Items {
		if st.Items[i].Symbol == ref {
			return &st.Items[i], nil
		}
	}
	for i := range st.Items {
		if strings.EqualFold(st.Items[i].Title, ref) {
			return &st.Items[i], nil
		}
	}
	return nil, fmt.Errorf("no shift type matches %q (try `shiftscheduler types list`)", ref)
}

func failure(err *apperr.Error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s", color.RedString(err.Error()))
}

func printNotice(notice string) {
	if notice != "" {
		fmt.Println(color.GreenString(notice))
	}
}

// printOverlap surfaces the advisory overlap alert after window loads.
func printOverlap(alert *state.OverlapAlert) {
	if alert == nil {
		return
	}
	fmt.Println(color.YellowString("overlap on %s: %q (%s) and %q (%s) — keep one with `resolve <entry-id>`",
		alert.Date.Format("2006-01-02"),
		alert.First.Title, alert.First.ID,
		alert.Second.Title, alert.Second.ID))
}
