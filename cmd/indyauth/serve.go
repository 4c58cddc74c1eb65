package main

import (
	"log"
	"strings"

	"github.com/spf13/cobra"

	"github.com/indykite/indykite-sdk-web-sub001/pkg/mockidp"
)

var (
	serveAddr      string
	serveIssuer    string
	serveUsers     []string
	serveProviders []string
	serveQrLogin   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the mock identity server",
	Run: func(cmd *cobra.Command, args []string) {
		users := make(map[string]string, len(serveUsers))
		for _, pair := range serveUsers {
			name, password, ok := strings.Cut(pair, ":")
			if !ok {
				log.Fatalf("invalid --user %q, want name:password", pair)
			}
			users[name] = password
		}

		server, err := mockidp.New(mockidp.Config{
			Issuer:    serveIssuer,
			Users:     users,
			Providers: serveProviders,
			QrLogin:   serveQrLogin,
		})
		if err != nil {
			log.Fatal(err)
		}
		log.Fatal(server.Start(serveAddr))
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8099", "listen address")
	serveCmd.Flags().StringVar(&serveIssuer, "issuer", "http://localhost:8099", "issuer base URL")
	serveCmd.Flags().StringArrayVar(&serveUsers, "user", []string{"ada@example.com:hunter2"}, "accepted name:password pairs")
	serveCmd.Flags().StringArrayVar(&serveProviders, "provider", []string{"google"}, "external providers to offer")
	serveCmd.Flags().BoolVar(&serveQrLogin, "qr", false, "offer the QR login option")
	rootCmd.AddCommand(serveCmd)
}
