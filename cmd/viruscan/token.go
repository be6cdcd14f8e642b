package viruscan

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lefred/mysql-component-viruscan/internal/access"
)

var (
	flagTokenUser  string
	flagTokenHost  string
	flagTokenPrivs []string
	flagTokenTTL   time.Duration
)

func init() {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a caller token for servers using the jwt auth provider",
		Args:  cobra.NoArgs,
		RunE:  runToken,
	}
	rootCmd.AddCommand(cmd)

	cmd.Flags().StringVar(&flagTokenUser, "for", "", "user name carried by the token")
	cmd.Flags().StringVar(&flagTokenHost, "host", "", "host carried by the token (default: the connecting host)")
	cmd.Flags().StringSliceVar(&flagTokenPrivs, "privilege", []string{access.PrivilegeVirusScan}, "global privileges granted by the token")
	cmd.Flags().DurationVar(&flagTokenTTL, "ttl", 24*time.Hour, "token lifetime (0 = no expiry)")
	_ = cmd.MarkFlagRequired("for")
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if flagTokenTTL < 0 {
		return fmt.Errorf("--ttl must not be negative, got %s", flagTokenTTL)
	}
	a := cfg.GetAuth()
	if a.GetJWTSecret() == "" {
		return errors.New("no token secret configured (set auth.jwt_secret or VIRUSCAN_JWT_SECRET)")
	}
	p, err := access.NewTokenProvider(a.GetJWTSecret(), a.GetIssuer())
	if err != nil {
		return err
	}
	tok, err := p.Issue(flagTokenUser, flagTokenHost, flagTokenPrivs, flagTokenTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}
