package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-training/oauth-loopback/pkg/browser"
	"github.com/go-training/oauth-loopback/pkg/callback"
	"github.com/go-training/oauth-loopback/pkg/config"
	"github.com/go-training/oauth-loopback/pkg/core"
	"github.com/go-training/oauth-loopback/pkg/exchange"
	"github.com/go-training/oauth-loopback/pkg/logger"
	"github.com/go-training/oauth-loopback/pkg/provider"
	"github.com/go-training/oauth-loopback/pkg/store"
	"github.com/go-training/oauth-loopback/pkg/transport"
)

// flags are the command-line overrides of the environment configuration.
type flags struct {
	store        string
	accountsFile string
	logLevel     string
	open         bool
}

// newRootCmd builds the command tree. A nil environ reads the process environment.
func newRootCmd(environ map[string]string) *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:           "oauth-login",
		Short:         "Authorize an account through a local OAuth callback",
		Long:          "oauth-login prints a provider authorization URL, receives the redirect on a loopback listener, exchanges the code for tokens and appends the account to the credential store.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, environ, f)
			if err != nil {
				return err
			}
			return runLogin(cmd, cfg, f.open)
		},
	}

	cmd.PersistentFlags().StringVar(&f.store, "store", "", "Credential store: file, memory, redis or keyring")
	cmd.PersistentFlags().StringVar(&f.accountsFile, "accounts-file", "", "Account file used by the file store")
	cmd.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	cmd.Flags().BoolVar(&f.open, "open", false, "Open the authorization URL in the default browser")

	cmd.AddCommand(newAccountsCmd(environ, &f))
	return cmd
}

// loadConfig reads the environment and applies flags that were set explicitly.
func loadConfig(cmd *cobra.Command, environ map[string]string, f flags) (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if environ == nil {
		cfg, err = config.Load()
	} else {
		cfg, err = config.LoadFrom(environ)
	}
	if err != nil {
		return config.Config{}, err
	}

	pf := cmd.Flags()
	if pf.Changed("store") {
		cfg.StoreType = f.store
	}
	if pf.Changed("accounts-file") {
		cfg.AccountsFile = f.accountsFile
	}
	if pf.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}

	logger.NewWithWriter(cmd.ErrOrStderr(), cfg.LogLevel)
	return cfg, nil
}

func openStore(cfg config.Config) (core.CredentialStore, error) {
	typ, err := store.ParseStoreType(cfg.StoreType)
	if err != nil {
		return nil, err
	}
	return store.NewStore(store.Config{
		Type: typ,
		Path: cfg.AccountsFile,
		Redis: store.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Key:      cfg.RedisKey,
		},
	})
}

func runLogin(cmd *cobra.Command, cfg config.Config, open bool) error {
	ctx := core.WithRequestID(cmd.Context())
	log := core.LoggerFromCtx(ctx)

	if err := cfg.Validate(); err != nil {
		return err
	}

	client, err := transport.NewHTTPClient(cfg.Proxy, cfg.ExchangeTimeout)
	if err != nil {
		log.Warn("Proxy not used, connecting directly", "error", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open credential store: %w", err)
	}
	defer store.Close(st)

	endpoint, err := cfg.Endpoint()
	if err != nil {
		return err
	}
	session := cfg.Session()
	srv := callback.New(session,
		exchange.New(endpoint, client, exchange.WithTimeout(cfg.ExchangeTimeout)),
		st,
		callback.WithShutdownDelay(cfg.ShutdownDelay),
	)
	if err := srv.Start(); err != nil {
		return err
	}

	authURL := provider.New(endpoint).Build(session, srv.Port())
	log.Info("Open the authorization URL in your browser", "redirect_uri", srv.RedirectURI())
	fmt.Fprintln(cmd.OutOrStdout(), authURL)

	if open {
		if err := browser.Open(ctx, authURL); err != nil {
			log.Warn("Failed to open browser", "error", err)
		}
	}

	out := srv.Wait()
	var writeErr *core.StoreWriteError
	switch {
	case out.State == callback.Succeeded:
		fmt.Fprintln(cmd.OutOrStdout(), "Authorization succeeded")
		return nil
	case errors.As(out.Err, &writeErr):
		return fmt.Errorf("token obtained but not saved: %w", writeErr)
	case core.IsTokenExchangeError(out.Err):
		return fmt.Errorf("token exchange failed: %w", out.Err)
	default:
		return fmt.Errorf("authorization failed: %s", out.Reason)
	}
}
