package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"shiftscheduler/internal/action"
	"shiftscheduler/internal/model"
	"shiftscheduler/internal/state"
)

func newAddCmd() *cobra.Command {
	var notes string
	cmd := &cobra.Command{
		Use:   "add <date> <shift-type>",
		Short: "Schedule a shift type on a date",
		Args:  cobra.ExactArgs(2),
		RunE: runWithApp(func(ctx context.Context, app *App, args []string) error {
			date, err := parseDate(args[0])
			if err != nil {
				return err
			}
			st := app.Store.State()
			t, err := resolveShiftType(&st.ShiftTypes, args[1])
			if err != nil {
				return err
			}

			app.Store.Dispatch(action.CreateShift{Date: date, ShiftTypeID: t.ShiftTypeID, Notes: notes})
			if err := app.Drain(ctx); err != nil {
				return err
			}

			st = app.Store.State()
			if err := failure(st.Schedule.LastError); err != nil {
				return err
			}
			printNotice(st.Schedule.Notice)
			return nil
		}),
	}
	cmd.Flags().StringVar(&notes, "notes", "", "free-form note on the entry")
	return cmd
}

func newSwitchCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "switch <date> <shift-type>",
		Short: "Replace the shift on an occupied date",
		Args:  cobra.ExactArgs(2),
		RunE: runWithApp(func(ctx context.Context, app *App, args []string) error {
			date, err := parseDate(args[0])
			if err != nil {
				return err
			}
			st := app.Store.State()
			t, err := resolveShiftType(&st.ShiftTypes, args[1])
			if err != nil {
				return err
			}

			app.Store.Dispatch(action.SwitchShift{Date: date, ShiftTypeID: t.ShiftTypeID, Reason: reason})
			if err := app.Drain(ctx); err != nil {
				return err
			}

			st = app.Store.State()
			if err := failure(st.Schedule.LastError); err != nil {
				return err
			}
			printNotice(st.Schedule.Notice)
			return nil
		}),
	}
	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded in the change log")
	return cmd
}

func newRmCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "rm <date>",
		Short: "Delete the shift on a date",
		Args:  cobra.ExactArgs(1),
		RunE: runWithApp(func(ctx context.Context, app *App, args []string) error {
			date, err := parseDate(args[0])
			if err != nil {
				return err
			}

			app.Store.Dispatch(action.DeleteShift{Date: date, Reason: reason})
			if err := app.Drain(ctx); err != nil {
				return err
			}

			st := app.Store.State()
			if err := failure(st.Schedule.LastError); err != nil {
				return err
			}
			printNotice(st.Schedule.Notice)
			return nil
		}),
	}
	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded in the change log")
	return cmd
}

func newBulkAddCmd() *cobra.Command {
	var notes string
	cmd := &cobra.Command{
		Use:   "bulk-add <shift-type> <date>... | <date>=<shift-type>...",
		Short: "Schedule many dates in one all-or-nothing batch",
		Long: `Two forms:
  bulk-add Day 2025-06-02 2025-06-03        one shift type across many dates
  bulk-add 2025-06-02=Day 2025-06-03=Night  a distinct shift type per date`,
		Args: cobra.MinimumNArgs(1),
		RunE: runWithApp(func(ctx context.Context, app *App, args []string) error {
			st := app.Store.State()

			if strings.Contains(args[0], "=") {
				assignments, err := parseAssignments(args, &st.ShiftTypes)
				if err != nil {
					return err
				}
				app.Store.Dispatch(action.BulkAddDistinct{Assignments: assignments})
			} else {
				if len(args) < 2 {
					return fmt.Errorf("bulk-add needs a shift type and at least one date")
				}
				t, err := resolveShiftType(&st.ShiftTypes, args[0])
				if err != nil {
					return err
				}
				dates := make([]time.Time, 0, len(args)-1)
				for _, arg := range args[1:] {
					d, err := parseDate(arg)
					if err != nil {
						return err
					}
					dates = append(dates, d)
				}
				app.Store.Dispatch(action.BulkAdd{Dates: dates, ShiftTypeID: t.ShiftTypeID, Notes: notes})
			}

			if err := app.Drain(ctx); err != nil {
				return err
			}
			st = app.Store.State()
			if err := failure(st.Schedule.LastError); err != nil {
				return err
			}
			printNotice(st.Schedule.Notice)
			return nil
		}),
	}
	cmd.Flags().StringVar(&notes, "notes", "", "free-form note on every entry")
	return cmd
}

// parseAssignments turns date=type pairs into distinct-type assignments.
func parseAssignments(args []string, types *state.ShiftTypesState) ([]action.DateAssignment, error) {
	assignments := make([]action.DateAssignment, 0, len(args))
	for _, arg := range args {
		pair := strings.SplitN(arg, "=", 2)
		if len(pair) != 2 {
			return nil, fmt.Errorf("bad assignment %q, want date=shift-type", arg)
		}
		date, err := parseDate(pair[0])
		if err != nil {
			return nil, err
		}
		t, err := resolveShiftType(types, pair[1])
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, action.DateAssignment{Date: date, ShiftTypeID: t.ShiftTypeID})
	}
	return assignments, nil
}

func newBulkRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bulk-rm <entry-id>...",
		Short: "Delete many entries by id (unknown ids are ignored)",
		Args:  cobra.MinimumNArgs(1),
		RunE: runWithApp(func(ctx context.Context, app *App, args []string) error {
			app.Store.Dispatch(action.BulkDelete{EntryIDs: args})
			if err := app.Drain(ctx); err != nil {
				return err
			}
			st := app.Store.State()
			if err := failure(st.Schedule.LastError); err != nil {
				return err
			}
			printNotice(st.Schedule.Notice)
			return nil
		}),
	}
}

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <entry-id>",
		Short: "Resolve a detected overlap by keeping one entry",
		Args:  cobra.ExactArgs(1),
		RunE: runWithApp(func(ctx context.Context, app *App, args []string) error {
			app.Store.Dispatch(action.ResolveOverlap{KeepEntryID: args[0]})
			if err := app.Drain(ctx); err != nil {
				return err
			}
			st := app.Store.State()
			if err := failure(st.Schedule.LastError); err != nil {
				return err
			}
			printNotice(st.Schedule.Notice)
			return nil
		}),
	}
}

func newListCmd() *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the scheduled shifts of a month",
		Args:  cobra.NoArgs,
		RunE: runWithApp(func(ctx context.Context, app *App, args []string) error {
			pivot := time.Now()
			if month != "" {
				m, err := parseMonth(month)
				if err != nil {
					return err
				}
				pivot = m
			}

			// navigation may push the displayed month onto the window edge
			// and trigger a re-centered reload
			app.Store.Dispatch(action.DisplayedMonthChanged{Month: pivot})
			if err := app.Drain(ctx); err != nil {
				return err
			}

			st := app.Store.State()
			if err := failure(st.Schedule.LastError); err != nil {
				return err
			}

			table := uitable.New()
			table.AddRow("DATE", "SHIFT", "TIME", "ENTRY ID", "NOTES")
			monthStart := model.MonthStart(pivot)
			monthEnd := monthStart.AddDate(0, 1, 0)
			for _, e := range st.Schedule.Entries {
				if e.Date.Before(monthStart) || !e.Date.Before(monthEnd) {
					continue
				}
				table.AddRow(
					e.Date.Format("2006-01-02"),
					e.Title,
					timeText(&e),
					e.ID,
					e.Notes,
				)
			}
			fmt.Println(table)
			printOverlap(st.Schedule.Overlap)
			return nil
		}),
	}
	cmd.Flags().StringVar(&month, "month", "", "month to list (YYYY-MM, default current)")
	return cmd
}

func timeText(e *model.ScheduledEntry) string {
	if e.AllDay {
		return "all day"
	}
	return e.StartsAt.Format("15:04") + "-" + e.EndsAt.Format("15:04")
}
