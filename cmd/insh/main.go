package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/inshproject/insh/internal/api"
	"github.com/inshproject/insh/internal/client"
	"github.com/inshproject/insh/internal/ctl"
)

var rootCmd = &cobra.Command{
	Use:   "insh",
	Short: "Browse and search files through the insh daemon",
	Long: `insh talks to the inshd daemon over its unix socket. Start the
daemon with 'inshd start' before using insh.`,
	SilenceUsage: true,
}

var findCmd = &cobra.Command{
	Use:   "find PATTERN [DIR]",
	Short: "Find files whose names match a regular expression",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		pattern := args[0]
		dir := "."
		if len(args) == 2 {
			dir = args[1]
		}

		c, err := client.Dial()
		if err != nil {
			return fmt.Errorf("is the daemon running? %w", err)
		}
		defer c.Close()

		return c.FindFiles(dir, pattern, func(e api.Entry) {
			fmt.Println(e.Path)
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether the daemon is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := ctl.Current()
		if err != nil {
			return err
		}
		if st.Running && st.SocketReachable {
			fmt.Printf("daemon running with pid %d\n", st.Pid)
			return nil
		}
		fmt.Println("daemon not running")
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(findCmd, statusCmd)
}
