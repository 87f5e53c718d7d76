package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/lumen-io/client/internal/common"
	"github.com/lumen-io/client/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Global configuration instance
var cfg *config.Config
var lumen *config.Session

// loadConfig loads the configuration based on the --config flag or default locations
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, err := cmd.Flags().GetString("config")

	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}

	return config.Load(configFile)
}

func preRunConfigE(cmd *cobra.Command, _ []string) error {
	// Load configuration before any command runs
	var err error
	cfg, err = loadConfig(cmd)

	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// check if verbose flag is set
	verbose, err := cmd.Flags().GetBool("verbose")
	if err == nil && verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	environment, err := cmd.Flags().GetString("environment")
	if err == nil && len(environment) > 0 {
		cfg.Environment = environment
	}

	lumen, err = cfg.NewSession(redirectToLogin)
	if err != nil {
		return fmt.Errorf("failed to configure session: %w", err)
	}

	if cfg.Metrics.Enabled {
		if err := startMetricsServer(cfg, lumen.Metrics); err != nil {
			logrus.WithError(err).Warnln("Failed to start metrics endpoint")
		}
	}

	return nil
}

func postRunE(_ *cobra.Command, _ []string) error {
	stopMetricsServer()
	if lumen != nil {
		return lumen.Close()
	}
	return nil
}

// redirectToLogin is called once when the session cannot be recovered
func redirectToLogin(reason error) {
	logrus.WithError(reason).Debugln("Session lost")

	fmt.Println()
	fmt.Println(warningStyle.Render("Your session has expired."))
	fmt.Println("Run `lumen login` to sign in again.")
	fmt.Println()
}

// preAuthenticateE restores the stored session and prompts for a login
// when there is none
func preAuthenticateE(cmd *cobra.Command, _ []string) error {
	ctx, cleanup := common.WithInterrupt(context.Background())
	defer cleanup()

	state := lumen.Bootstrapper.Bootstrap(ctx)
	if state.IsAuthenticated {
		return nil
	}

	return promptAndLogin(cmd)
}

// promptAndLogin prompts the user if they want to login and handles the login process
func promptAndLogin(cmd *cobra.Command) error {
	fmt.Println()
	fmt.Println(titleStyle.Render("Authentication Required"))
	fmt.Println("No active login session found.")
	fmt.Println()

	var shouldLogin bool

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Would you like to login now?").
				Description(fmt.Sprintf("Sign in to %s", cfg.GetAuthURL())).
				Value(&shouldLogin),
		),
	)

	err := form.Run()
	if err != nil {
		return fmt.Errorf("login prompt cancelled: %w", err)
	}

	if !shouldLogin {
		return errors.New("authentication required but login was declined")
	}

	fmt.Println()
	return runLogin(cmd, []string{})
}

var rootCmd = &cobra.Command{
	Use:   "lumen",
	Short: "Lumen - authenticated access to the Lumen API",
	Long: `Lumen signs you in to the Lumen backend and keeps the session alive.

Expired access tokens are refreshed transparently. When the session cannot
be recovered you are asked to sign in again.

If no config file is specified, lumen will look for config files in the following locations:
  - ./config.yaml
  - ./config/config.yaml
  - /etc/lumen/config.yaml
  - ~/.config/lumen/config.yaml`,
	PersistentPreRunE:  preRunConfigE,
	PersistentPostRunE: postRunE,
	RunE:               runStatus,
	SilenceUsage:       true,
	SilenceErrors:      true,
}

func init() {

	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().String("config", "", "Config file (default is $HOME/.config/lumen/config.yaml)")
	rootCmd.PersistentFlags().String("environment", "", "Override the environment (production uses cookies, development uses bearer tokens)")

}

func GetCommandOptions() *cobra.Command {
	return rootCmd
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}
}
