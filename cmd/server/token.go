package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tyrowin/ichat/internal/auth"
)

var (
	tokenUser string
	tokenRole string
	tokenTTL  time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print a signed access token for a user",
	Long: `Print an HS256 access token signed with the configured JWT secret.
Pass it to the WebSocket endpoint as ?token=... or to the REST API as a
Bearer token.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		ttl := cfg.Auth.TokenTTL
		if cmd.Flags().Changed("ttl") {
			ttl = tokenTTL
		}
		manager := auth.NewJWTManager(auth.JWTConfig{
			Secret: cfg.Auth.JWTSecret,
			Issuer: cfg.Auth.Issuer,
			TTL:    ttl,
		})
		token, err := manager.Issue(auth.Identity{Username: tokenUser, Role: auth.ParseRole(tokenRole)})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVarP(&tokenUser, "user", "u", "", "Username to embed in the token")
	tokenCmd.Flags().StringVar(&tokenRole, "role", string(auth.RoleUser), "Role to embed in the token (User or Admin)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
	_ = tokenCmd.MarkFlagRequired("user")
}
