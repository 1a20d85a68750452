package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"shiftscheduler/internal/export"
)

func newExportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the loaded window as an Excel workbook",
		Args:  cobra.NoArgs,
		RunE: runWithApp(func(ctx context.Context, app *App, args []string) error {
			buf, filename, err := export.Workbook(app.Store.State())
			if err != nil {
				return err
			}

			target := out
			if target == "" {
				target = filename
			}
			if dir := filepath.Dir(target); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("create export directory: %w", err)
				}
			}
			if err := os.WriteFile(target, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write workbook: %w", err)
			}
			fmt.Println(color.GreenString("exported %s", target))
			return nil
		}),
	}
	cmd.Flags().StringVar(&out, "out", "", "output path (default: derived from the loaded range)")
	return cmd
}
