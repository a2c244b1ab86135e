package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/boardkeeper/internal/common"
	"github.com/dmitrijs2005/boardkeeper/internal/server"
	"github.com/dmitrijs2005/boardkeeper/internal/server/auth"
	"github.com/dmitrijs2005/boardkeeper/internal/server/config"
	"github.com/spf13/cobra"
)

func newRootCommand(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "cloudd",
		Short:         "Cloud container for boardkeeper sync",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	config.RegisterFlags(root.PersistentFlags())
	root.AddCommand(serveCommand(), tokenCommand())
	return root
}

func load(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	return config.LoadConfig(path, cmd.Flags())
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run migrations and serve the gRPC endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			app, err := server.NewApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.Close()
			return app.Run(cmd.Context())
		},
	}
}

// tokenCommand mints an access token; account management lives outside the
// container.
func tokenCommand() *cobra.Command {
	var (
		user     string
		validity time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if user == "" {
				return common.Wrapf(common.ErrDataValidation, "--user is required")
			}
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			if validity == 0 {
				validity = cfg.AccessTokenValidityDuration
			}
			tok, err := auth.GenerateToken(user, []byte(cfg.SecretKey), validity)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id the token names")
	cmd.Flags().DurationVar(&validity, "validity", 0, "token lifetime (default from config)")
	return cmd
}
