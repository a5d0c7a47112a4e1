package cmd

import (
	"github.com/ecowatch/ecowatch/internal/output"

	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget stored credentials",
	Long:  `Remove the stored access token, refresh token, and session cookies.`,
	Run:   runLogout,
	Args:  cobra.NoArgs,
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}

func runLogout(cmd *cobra.Command, _ []string) {
	cfg, err := getConfigFromContext(cmd)
	if err != nil {
		output.Errorf("failed to load configuration: %v", err)
		return
	}

	client, _, err := newTransport(cfg)
	if err != nil {
		output.Errorf(err.Error())
		return
	}

	if err = client.Logout(); err != nil {
		output.Errorf("failed to sign out: %v", err)
		return
	}
	output.Successf("Signed out")
}
