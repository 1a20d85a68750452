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

func newTypesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "types",
		Short: "Manage shift types",
	}
	cmd.AddCommand(newTypesListCmd(), newTypesSaveCmd(), newTypesRmCmd())
	return cmd
}

func newTypesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List shift types",
		Args:  cobra.NoArgs,
		RunE: runWithApp(func(ctx context.Context, app *App, args []string) error {
			st := app.Store.State()
			table := uitable.New()
			table.AddRow("ID", "SYMBOL", "TITLE", "TIME", "LOCATION")
			for _, t := range st.ShiftTypes.Items {
				locName := ""
				if t.LocationID != nil {
					if loc := st.Locations.ByID(*t.LocationID); loc != nil {
						locName = loc.Name
					}
				}
				table.AddRow(t.ShiftTypeID, t.Symbol, t.Title, shiftTimeText(&t), locName)
			}
			fmt.Println(table)
			return nil
		}),
	}
}

func newTypesSaveCmd() *cobra.Command {
	var (
		id, symbol, title, desc, locationID string
		start, end                          string
		allDay                              bool
	)
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Create or update a shift type (updates cascade into scheduled events)",
		Args:  cobra.NoArgs,
		RunE: runWithApp(func(ctx context.Context, app *App, args []string) error {
			st := app.Store.State()

			var t model.ShiftType
			if id != "" {
				existing := st.ShiftTypes.ByID(id)
				if existing == nil {
					return fmt.Errorf("no shift type with id %q", id)
				}
				t = *existing
				t.Location = nil
			}

			if symbol != "" {
				t.Symbol = symbol
			}
			if title != "" {
				t.Title = title
			}
			if desc != "" {
				t.Description = desc
			}
			if locationID != "" {
				t.LocationID = &locationID
			}
			if allDay {
				t.AllDay = true
			}
			if start != "" {
				m, err := parseMinute(start)
				if err != nil {
					return err
				}
				t.StartMinute = m
				t.AllDay = false
			}
			if end != "" {
				m, err := parseMinute(end)
				if err != nil {
					return err
				}
				t.EndMinute = m
				t.AllDay = false
			}

			app.Store.Dispatch(action.SaveShiftType{ShiftType: t})
			if err := app.Drain(ctx); err != nil {
				return err
			}
			st = app.Store.State()
			if err := failure(st.ShiftTypes.LastError); err != nil {
				return err
			}
			fmt.Println("saved")
			return nil
		}),
	}
	cmd.Flags().StringVar(&id, "id", "", "shift type to update (omit to create)")
	cmd.Flags().StringVar(&symbol, "symbol", "", "short symbol, e.g. D or N")
	cmd.Flags().StringVar(&title, "title", "", "display title")
	cmd.Flags().StringVar(&desc, "desc", "", "description")
	cmd.Flags().StringVar(&locationID, "location", "", "location id")
	cmd.Flags().StringVar(&start, "start", "", "start time of day, HH:MM")
	cmd.Flags().StringVar(&end, "end", "", "end time of day, HH:MM (at or before start means overnight)")
	cmd.Flags().BoolVar(&allDay, "all-day", false, "all-day shift")
	return cmd
}

func newTypesRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <shift-type-id>",
		Short: "Delete a shift type (already scheduled entries stay)",
		Args:  cobra.ExactArgs(1),
		RunE: runWithApp(func(ctx context.Context, app *App, args []string) error {
			app.Store.Dispatch(action.DeleteShiftType{ShiftTypeID: args[0]})
			if err := app.Drain(ctx); err != nil {
				return err
			}
			st := app.Store.State()
			if err := failure(st.ShiftTypes.LastError); err != nil {
				return err
			}
			fmt.Println("deleted")
			return nil
		}),
	}
}

func newLocationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "locations",
		Short: "Manage locations",
	}
	cmd.AddCommand(newLocationsListCmd(), newLocationsSaveCmd(), newLocationsRmCmd())
	return cmd
}

func newLocationsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List locations",
		Args:  cobra.NoArgs,
		RunE: runWithApp(func(ctx context.Context, app *App, args []string) error {
			st := app.Store.State()
			table := uitable.New()
			table.AddRow("ID", "NAME", "ADDRESS")
			for _, l := range st.Locations.Items {
				table.AddRow(l.LocationID, l.Name, l.Address)
			}
			fmt.Println(table)
			return nil
		}),
	}
}

func newLocationsSaveCmd() *cobra.Command {
	var id, name, address string
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Create or update a location (updates cascade into its shift types)",
		Args:  cobra.NoArgs,
		RunE: runWithApp(func(ctx context.Context, app *App, args []string) error {
			st := app.Store.State()

			var l model.Location
			if id != "" {
				existing := st.Locations.ByID(id)
				if existing == nil {
					return fmt.Errorf("no location with id %q", id)
				}
				l = *existing
			}
			if name != "" {
				l.Name = name
			}
			if address != "" {
				l.Address = address
			}

			app.Store.Dispatch(action.SaveLocation{Location: l})
			if err := app.Drain(ctx); err != nil {
				return err
			}
			st = app.Store.State()
			if err := failure(st.Locations.LastError); err != nil {
				return err
			}
			fmt.Println("saved")
			return nil
		}),
	}
	cmd.Flags().StringVar(&id, "id", "", "location to update (omit to create)")
	cmd.Flags().StringVar(&name, "name", "", "location name")
	cmd.Flags().StringVar(&address, "address", "", "street address")
	return cmd
}

func newLocationsRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <location-id>",
		Short: "Delete a location",
		Args:  cobra.ExactArgs(1),
		RunE: runWithApp(func(ctx context.Context, app *App, args []string) error {
			app.Store.Dispatch(action.DeleteLocation{LocationID: args[0]})
			if err := app.Drain(ctx); err != nil {
				return err
			}
			st := app.Store.State()
			if err := failure(st.Locations.LastError); err != nil {
				return err
			}
			fmt.Println("deleted")
			return nil
		}),
	}
}

// parseMinute converts HH:MM to minutes since midnight.
func parseMinute(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("bad time %q, want HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func shiftTimeText(t *model.ShiftType) string {
	if t.AllDay {
		return "all day"
	}
	return fmt.Sprintf("%02d:%02d-%02d:%02d",
		t.StartMinute/60, t.StartMinute%60,
		t.EndMinute/60, t.EndMinute%60)
}
