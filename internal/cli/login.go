package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"mailferry/internal/remote"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authorize mailferry against the mail server",
	Long: `Login prints an authorization URL; open it in a browser, approve the
request and paste the resulting code back here. The obtained token is
saved and refreshed automatically on later runs.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig(cmd)
		if cfg.ClientID == "" || cfg.TokenURL == "" || cfg.AuthURL == "" {
			return fmt.Errorf("MAILFERRY_CLIENT_ID, MAILFERRY_AUTH_URL and MAILFERRY_TOKEN_URL must be set")
		}

		ocfg := oauthConfig(cfg)
		url := ocfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
		fmt.Println("Open this URL in your browser and authorize mailferry:")
		fmt.Println()
		fmt.Println("  " + url)
		fmt.Println()
		fmt.Print("Paste the authorization code: ")

		reader := bufio.NewReader(os.Stdin)
		code, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read code: %w", err)
		}
		code = strings.TrimSpace(code)
		if code == "" {
			return fmt.Errorf("no code entered")
		}

		tok, err := ocfg.Exchange(context.Background(), code)
		if err != nil {
			return fmt.Errorf("exchange code: %w", err)
		}
		if err := remote.SaveToken(cfg.TokenPath, tok); err != nil {
			return fmt.Errorf("save token: %w", err)
		}
		fmt.Println("Logged in. Token saved to " + cfg.TokenPath)
		return nil
	},
}
