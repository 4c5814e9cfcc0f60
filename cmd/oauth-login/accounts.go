package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/go-training/oauth-loopback/pkg/core"
	"github.com/go-training/oauth-loopback/pkg/store"
)

func newAccountsCmd(environ map[string]string, f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List stored accounts with tokens masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, environ, *f)
			if err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return fmt.Errorf("open credential store: %w", err)
			}
			defer store.Close(st)

			records, err := st.List(cmd.Context())
			if err != nil {
				core.LoggerFromCtx(cmd.Context()).Warn("Credential store unreadable", "error", err)
			}

			w := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(w, "No accounts stored")
				return nil
			}
			for i, r := range records {
				refresh := "-"
				if r.RefreshToken != "" {
					refresh = maskToken(r.RefreshToken)
				}
				fmt.Fprintf(w, "%d\taccess=%s\trefresh=%s\texpires_in=%d\tcaptured=%s\n",
					i+1,
					maskToken(r.AccessToken),
					refresh,
					r.ExpiresIn,
					time.UnixMilli(r.CapturedAt).UTC().Format(time.RFC3339),
				)
			}
			return nil
		},
	}
}

func maskToken(token string) string {
	t := strings.TrimSpace(token)
	if len(t) <= 10 {
		return strings.Repeat("*", len(t))
	}
	return t[:6] + "..." + t[len(t)-4:]
}
