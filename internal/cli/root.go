package cli

import (
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands. Empty values fall back to
// the configuration loaded from .env and the environment.
type RootOptions struct {
	DBPath    string
	Addr      string
	UploadDir string
	LogFile   string
}

// NewRootCommand creates the swapshop command. Without a subcommand it runs
// the server.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "swapshop",
		Short: "Swap Shop - campus donation exchange",
		Long: `Swap Shop lets students give away items they no longer need and reserve
items donated by others. Donations are moderated by administrators.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.DBPath, "db", "d", "", "SQLite database path (default from DB_PATH)")
	cmd.PersistentFlags().StringVarP(&opts.Addr, "addr", "a", "", "listen address (default from ADDR)")
	cmd.PersistentFlags().StringVar(&opts.UploadDir, "uploads", "", "photo directory (default from UPLOAD_DIR)")
	cmd.PersistentFlags().StringVarP(&opts.LogFile, "log", "l", "", "log file path (default from LOG_FILE)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewImportItemsCommand(opts))
	cmd.AddCommand(NewExportItemsCommand(opts))
	cmd.AddCommand(NewImportUsersCommand(opts))

	return cmd
}
