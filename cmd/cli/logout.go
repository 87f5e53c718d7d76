package cli

import (
	"context"
	"fmt"

	"github.com/lumen-io/client/internal/common"
	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and remove the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cleanup := common.WithInterrupt(context.Background())
		defer cleanup()

		// Local credentials are removed even when the backend is unreachable
		if err := lumen.Accounts.Logout(ctx); err != nil {
			return fmt.Errorf("failed to clear session: %w", err)
		}

		fmt.Println(successStyle.Render("Signed out."))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}
