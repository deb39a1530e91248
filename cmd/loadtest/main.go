// Package main provides the load generator used to check how the gateway
// behaves when the backend rate limits it.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	opts := options{}

	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Send concurrent requests to a gateway route and summarise the results",
		Long: `Send N requests with C concurrent workers and report status counts,
latency percentiles, top error kinds and how many answers were the
gateway's empty fallback (X-Fetch-Fallback header).

Examples:
  loadtest --url http://localhost:8080/api/admin/dashboard -H 'Authorization: Bearer t'
  loadtest --url http://localhost:8080/api/appointments --method POST --payload-file booking.json
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := run(ctx, opts)
			if err != nil {
				return err
			}
			s.print(cmd.OutOrStdout())
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.url, "url", "http://localhost:8080/healthz", "Target URL")
	f.StringVar(&opts.method, "method", "GET", "HTTP method (GET|POST|...)")
	f.IntVar(&opts.requests, "requests", 1000, "Total number of requests to send")
	f.IntVar(&opts.concurrency, "concurrency", 100, "Number of concurrent workers")
	f.DurationVar(&opts.timeout, "timeout", 60*time.Second, "Per-request timeout")
	f.StringVar(&opts.payloadFile, "payload-file", "", "Payload file path (for POST/PATCH)")
	f.StringVar(&opts.payload, "payload", "", "Inline payload string (for POST/PATCH)")
	f.StringVar(&opts.contentType, "content-type", "application/json", "Content-Type header")
	f.StringArrayVarP(&opts.headers, "header", "H", nil, "Extra header (repeatable), e.g. -H 'Authorization: Bearer ...'")

	return cmd
}
