package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/lumen-io/client/internal/account"
	"github.com/lumen-io/client/internal/common"
	"github.com/lumen-io/client/internal/credentials"
	"github.com/lumen-io/client/internal/models"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the session status",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cleanup := common.WithInterrupt(context.Background())
	defer cleanup()

	state := lumen.Bootstrapper.Bootstrap(ctx)

	fmt.Println(titleStyle.Render("Lumen Session"))
	fmt.Println(labelStyle.Render("Backend") + cfg.GetAuthURL())
	if cfg.GetAPIURL() != cfg.GetAuthURL() {
		fmt.Println(labelStyle.Render("API") + cfg.GetAPIURL())
	}
	fmt.Println(labelStyle.Render("Mode") + lumen.Mode.String())
	fmt.Println(labelStyle.Render("Status") + renderState(state))

	if state.User != nil {
		fmt.Println(labelStyle.Render("User") + state.User.GetIdentity())
	} else if last, ok := account.MirroredUser(lumen.Store); ok {
		fmt.Println(labelStyle.Render("Last user") + infoStyle.Render(last.GetIdentity()))
	}

	if lumen.Mode.IsBearer() {
		access, _ := lumen.Store.Get(models.AccessTokenName)
		if expiry, ok := credentials.AccessExpiry(access); ok {
			fmt.Println(labelStyle.Render("Access token") + renderExpiry(expiry))
		}
		if _, ok := lumen.Store.Get(models.RefreshTokenName); ok {
			fmt.Println(labelStyle.Render("Refresh token") + activeStyle.Render("stored"))
		}
	}

	if showEvents, _ := cmd.Flags().GetBool("events"); showEvents {
		fmt.Println()
		fmt.Println(headerStyle.Render("Session events"))
		for _, entry := range cfg.GetRecentEvents(20) {
			fmt.Printf("  %s %-7s %s\n", entry.Time.Format("15:04:05"), entry.Level, entry.Message)
		}
	}

	warnings := cfg.GetWarnings(5)
	if len(warnings) > 0 {
		fmt.Println()
		fmt.Println(headerStyle.Render("Recent warnings"))
		for _, entry := range warnings {
			fmt.Printf("  %s %s\n", entry.Time.Format("15:04:05"), warningStyle.Render(entry.Message))
		}
	}

	return nil
}

func renderState(state models.SessionState) string {
	switch {
	case state.IsAuthenticated:
		return statusBadgeStyle.Background(activeStyle.GetForeground()).Render("SIGNED IN")
	case state.RequiresSecondFactor:
		return statusBadgeStyle.Background(warningStyle.GetForeground()).Render("SECOND FACTOR REQUIRED")
	default:
		return statusBadgeStyle.Background(errorStyle.GetForeground()).Render("SIGNED OUT")
	}
}

func renderExpiry(expiry time.Time) string {
	remaining := time.Until(expiry)
	if remaining <= 0 {
		return expiredStyle.Render(fmt.Sprintf("expired %s", expiry.Local().Format(time.RFC822)))
	}
	return activeStyle.Render(fmt.Sprintf("valid for %s", common.FormatDurationRemaining(remaining)))
}

func init() {
	statusCmd.Flags().Bool("events", false, "Show the events logged by this run")
	rootCmd.AddCommand(statusCmd)
}
