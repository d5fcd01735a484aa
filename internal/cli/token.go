package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/akinrinmade/jara-daily/internal/identity"
)

// TokenView is the output of the token command.
type TokenView struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
}

func (v TokenView) Text() string {
	return v.Token + "\n"
}

// NewTokenCommand creates the token command.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		username string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Mint a bearer token for a reader",
		Long: `Mint an HS256 bearer token signed with jwt_secret.

Example:
  JARA_JWT_SECRET=s3cret jara token u1 --username ada --ttl 1h`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			tokens, err := identity.NewManager(cfg.JWTSecret, identity.WithTTL(ttl))
			if err != nil {
				return WrapExitError(ExitCommandError, "jwt_secret is required to mint tokens", err)
			}
			if username == "" {
				username = args[0]
			}
			tok, err := tokens.Mint(args[0], username)
			if err != nil {
				return WrapExitError(ExitCommandError, fmt.Sprintf("failed to mint token for %q", args[0]), err)
			}
			return rootOpts.formatter(cmd).Success(TokenView{UserID: args[0], Token: tok})
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "display name (defaults to the user id)")
	cmd.Flags().DurationVar(&ttl, "ttl", identity.DefaultTTL, "token lifetime")
	return cmd
}
