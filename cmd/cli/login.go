package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/lumen-io/client/internal/account"
	"github.com/lumen-io/client/internal/common"
	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the Lumen backend",
	Long:  "Prompts for your email and password and establishes a session",
	RunE:  runLogin,
}

func runLogin(cmd *cobra.Command, args []string) error {

	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")

	if len(email) == 0 || len(password) == 0 {
		if err := credentialsForm(&email, &password).Run(); err != nil {
			return fmt.Errorf("login cancelled: %w", err)
		}
	}

	ctx, cleanup := common.WithInterrupt(context.Background())
	defer cleanup()

	user, err := lumen.Accounts.Login(ctx, strings.TrimSpace(email), password)
	if err != nil {
		if errors.Is(err, account.ErrSecondFactorRequired) {
			fmt.Println(warningStyle.Render(account.UserMessage(err)))
			return nil
		}
		if ctx.Err() != nil {
			return errors.New("login cancelled")
		}
		return errors.New(account.UserMessage(err))
	}

	fmt.Println()
	fmt.Println(successStyle.Render("Login successful!"))
	fmt.Printf("Signed in as: %s\n", user.GetName())
	fmt.Printf("Session mode: %s\n", lumen.Mode)
	fmt.Println()

	return nil
}

func credentialsForm(email *string, password *string) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Value(email).
				Validate(func(s string) error {
					if !common.IsValidEmail(s) {
						return errors.New("enter a valid email address")
					}
					return nil
				}),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(password).
				Validate(func(s string) error {
					if len(s) == 0 {
						return errors.New("password is required")
					}
					return nil
				}),
		),
	)
}

func init() {
	loginCmd.Flags().String("email", "", "Account email")
	loginCmd.Flags().String("password", "", "Account password (prompted when omitted)")

	// Add the command to the root
	rootCmd.AddCommand(loginCmd)
}
