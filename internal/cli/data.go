package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// NewImportItemsCommand creates the import-items command.
func NewImportItemsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import-items <file.xlsx>",
		Short: "Import items from a spreadsheet",
		Long: `Import items from an .xlsx workbook with an "Items" sheet.

Rows replace stored items with the same ID. Legacy status spellings are
normalized and rows that break the reservation rules are repaired.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := importItemsFile(cmd.Context(), a, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d items from %s\n", n, args[0])
			return nil
		},
	}
}

// NewExportItemsCommand creates the export-items command.
func NewExportItemsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "export-items <file.xlsx>",
		Short:         "Export all items to a spreadsheet",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := exportItemsFile(cmd.Context(), a, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported items to %s\n", args[0])
			return nil
		},
	}
}

// NewImportUsersCommand creates the import-users command.
func NewImportUsersCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import-users <users.json>",
		Short: "Import users from a JSON file",
		Long: `Import users from a JSON array of {email, name, password, role, notifications}.

Existing users with the same email are updated. Plaintext passwords are hashed.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := importUsersFile(cmd.Context(), a, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d users from %s\n", n, args[0])
			return nil
		},
	}
}

func importItemsFile(ctx context.Context, a *app, path string) (int, error) {
	f, err := openFile(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return a.exchange.ImportSheet(ctxOrBackground(ctx), f)
}

func importUsersFile(ctx context.Context, a *app, path string) (int, error) {
	f, err := openFile(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return a.directory.ImportFile(ctxOrBackground(ctx), f)
}

// exportItemsFile writes the workbook to a temporary file next to path and
// renames it into place.
func exportItemsFile(ctx context.Context, a *app, path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*.xlsx")
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := a.exchange.ExportSheet(ctxOrBackground(ctx), tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing export file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("writing export file: %w", err)
	}
	return nil
}

func ctxOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
