package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/indykite/indykite-sdk-web-sub001/pkg/authn"
	"github.com/indykite/indykite-sdk-web-sub001/pkg/msg"
	"github.com/indykite/indykite-sdk-web-sub001/pkg/session"
)

var (
	configPath  string
	sessionPath string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "indyauth.yaml", "configuration file")
	rootCmd.PersistentFlags().StringVar(&sessionPath, "session", ".indyauth.session.json", "session state file")
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(forgottenCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in",
	Run: func(cmd *cobra.Command, args []string) {
		runConversation(func(ctx context.Context, f *authn.Flow, dctx *authn.DispatchContext) error {
			return f.Login(ctx, dctx)
		})
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	Run: func(cmd *cobra.Command, args []string) {
		runConversation(func(ctx context.Context, f *authn.Flow, dctx *authn.DispatchContext) error {
			return f.Register(ctx, dctx)
		})
	},
}

var forgottenCmd = &cobra.Command{
	Use:   "forgotten",
	Short: "Recover a forgotten password",
	Run: func(cmd *cobra.Command, args []string) {
		runConversation(func(ctx context.Context, f *authn.Flow, dctx *authn.DispatchContext) error {
			return f.ForgottenPassword(ctx, dctx)
		})
	},
}

func runConversation(start func(context.Context, *authn.Flow, *authn.DispatchContext) error) {
	cfg, err := authn.LoadConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}
	store, err := session.NewFileStore(sessionPath)
	if err != nil {
		log.Fatal(err)
	}
	surface := newConsoleSurface(os.Stdin, os.Stdout)

	dctx := &authn.DispatchContext{
		OnSuccess: func(m *msg.Message) {
			surface.done = true
			claims, err := authn.TokenClaims(m)
			if err != nil {
				slog.Warn("token not inspectable", "error", err)
				slog.Info("signed in")
				return
			}
			slog.Info("signed in", "subject", claims.Subject(), "expiration", claims.Expiration())
		},
		OnFail: func(err error) {
			slog.Error("authentication failed", "error", err)
		},
	}

	flow, err := authn.New(*cfg, store, surface)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	if resumed, err := flow.ResumePending(ctx, dctx); err != nil {
		log.Fatal(err)
	} else if resumed {
		slog.Info("resumed a paused conversation")
	} else if err := start(ctx, flow, dctx); err != nil {
		log.Fatal(err)
	}

	if err := surface.interact(ctx); err != nil {
		log.Fatal(err)
	}
}
