package command

// root.go defines the root command and the flags shared by every subcommand.

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"paintboard/internal/config"
)

var (
	cfg       *config.Config
	serverURL string
	roomID    int
	timeout   time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "paintboard",
	Short: "paintboard - shared drawing board client",
	Long: `paintboard talks to a paint board server over a websocket. It can:
- send strokes to a room and list the strokes already drawn
- clear a room
- upload a background picture
- listen for strokes, clears and background changes pushed by the server

Settings are read from the environment (and a .env file); flags override them.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cmd.Context())
		if err != nil {
			return err
		}
		cfg = loaded

		if !cmd.Flags().Changed("server") {
			serverURL = cfg.ServerURL
		}
		if !cmd.Flags().Changed("timeout") {
			timeout = cfg.RequestTimeout
		}
		return nil
	},
}

// Execute runs the root command and exits non-zero on error
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "ws://localhost:8080", "server URL (PAINTBOARD_SERVER_URL)")
	rootCmd.PersistentFlags().IntVarP(&roomID, "room", "r", 1, "room ID")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "how long to wait for a reply (PAINTBOARD_REQUEST_TIMEOUT)")
}
