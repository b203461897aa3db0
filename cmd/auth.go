package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vinothpandian/inkdash/internal/auth"
)

var (
	statusOnly  bool
	refreshOnly bool
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authenticate with Google Calendar",
	Long: `Authenticate with the Google Calendar API using the OAuth 2.0
authorization code flow.

A browser window opens with the Google consent screen; after you approve,
the authorization redirect lands on a short-lived local listener and the
tokens are saved to the config file. Set google_calendar.client_id and
google_calendar.client_secret in the config file first.

Examples:
  inkdash auth            # Run the authorization flow
  inkdash auth --status   # Check authentication status
  inkdash auth --refresh  # Force an access token refresh`,
	RunE: runAuth,
}

func init() {
	authCmd.Flags().BoolVar(&statusOnly, "status", false, "check authentication status only")
	authCmd.Flags().BoolVar(&refreshOnly, "refresh", false, "refresh the access token and exit")
	rootCmd.AddCommand(authCmd)
}

func runAuth(cmd *cobra.Command, args []string) error {
	coordinator := auth.NewCoordinator(store)

	if statusOnly {
		return printAuthStatus()
	}

	if refreshOnly {
		if _, err := coordinator.Refresh(cmd.Context()); err != nil {
			return fmt.Errorf("token refresh failed: %w", err)
		}
		fmt.Println("Access token refreshed.")
		return nil
	}

	authorizeURL, err := coordinator.StartFlow()
	if err != nil {
		return err
	}

	fmt.Println("Opening the Google consent screen in your browser...")
	fmt.Println("If the browser did not open, visit this URL manually:")
	fmt.Println()
	fmt.Println("  " + authorizeURL)
	fmt.Println()
	fmt.Println("Waiting for authorization (5 minute timeout)...")

	code, err := coordinator.AwaitCallback(cmd.Context())
	if err != nil {
		return err
	}

	if err := coordinator.ExchangeCode(cmd.Context(), code); err != nil {
		return err
	}

	fmt.Println("Authentication successful!")
	fmt.Println("You can now use 'inkdash calendar events' to fetch your calendar events.")
	return nil
}

func printAuthStatus() error {
	cfg, err := store.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	gc := cfg.GoogleCalendar
	switch {
	case gc.ClientID == "" || gc.ClientSecret == "":
		fmt.Println("Authentication: Not configured (set client_id and client_secret)")
	case gc.AccessToken == "":
		fmt.Println("Authentication: Required (run 'inkdash auth')")
	default:
		fmt.Println("Authentication: Token present")
		if gc.TokenExpiry != "" {
			if expiry, parseErr := time.Parse(time.RFC3339, gc.TokenExpiry); parseErr == nil {
				if expiry.After(time.Now()) {
					fmt.Printf("Access token expires: %s (in %s)\n",
						expiry.Format("2006-01-02 15:04:05"),
						time.Until(expiry).Truncate(time.Second))
				} else {
					fmt.Printf("Access token expired: %s ago\n", time.Since(expiry).Truncate(time.Second))
				}
			}
		}
		if gc.RefreshToken != "" {
			fmt.Println("Refresh token: Present")
		} else {
			fmt.Println("Refresh token: Missing (re-run 'inkdash auth')")
		}
	}

	fmt.Printf("Config file: %s\n", store.Path())
	return nil
}
