package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/webmip/postbank/internal/proxy"
)

func init() {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the forwarding proxy",
		Long: `Run the forwarding proxy used by the proxy transport.

Requests to /proxy/<host>/<path> are forwarded to https://<host>/<path>, or
http:// when the X-Postbank-Scheme header says so. Point other postbank
instances at it with --transport proxy --proxy-url http://<listen>.`,
		Args: cobra.NoArgs,
		Run:  runServe,
	}
	serveCmd.Flags().String("listen", "", "Listen address (default from config, 127.0.0.1:8787)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		exitWithError(fmt.Sprintf("Invalid configuration: %v", err))
	}
	logger := newLogger(cfg)

	listen := cfg.Listen
	if v, _ := cmd.Flags().GetString("listen"); v != "" {
		listen = v
	}

	ctx, cancel := signalContext()
	defer cancel()

	ready := make(chan string, 1)
	go func() {
		if addr, ok := <-ready; ok {
			fmt.Printf("Proxy listening on http://%s (Ctrl+C to stop)\n", addr)
		}
	}()

	if err := proxy.Serve(ctx, listen, proxy.New(cfg.Timeout, logger), logger, ready); err != nil {
		exitWithError(fmt.Sprintf("Proxy failed: %v", err))
	}
}
