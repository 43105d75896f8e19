package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	dispatchservice "delivery-dispatch/cmd/dispatch_service"
	driveragent "delivery-dispatch/cmd/driver_agent"
	"delivery-dispatch/internal/cli"
)

var configPath string

func main() {
	// context cancelled on SIGINT/SIGTERM for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "delivery-dispatch",
		Short:         "Real-time delivery dispatch service and simulated driver devices",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "./config/config.yaml", "path to the YAML or JSON config file")

	root.AddCommand(dispatchCmd(), agentCmd(), tokenCmd())
	return root
}

func dispatchCmd() *cobra.Command {
	var maxConc int
	cmd := &cobra.Command{
		Use:     cli.ModeDispatch,
		Aliases: cli.Aliases[cli.ModeDispatch],
		Short:   "HTTP API, websocket gateway and event router",
		Example: "  delivery-dispatch dispatch-service -c config/config.yaml --max-concurrent=500",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if maxConc < 1 {
				return errors.New("--max-concurrent must be >= 1")
			}
			return dispatchservice.Run(cmd.Context(), dispatchservice.Options{
				ConfigPath:    configPath,
				MaxConcurrent: maxConc,
			})
		},
	}
	cmd.Flags().IntVar(&maxConc, "max-concurrent", 500, "maximum number of concurrent HTTP requests and websocket connections")
	return cmd
}

func agentCmd() *cobra.Command {
	var (
		opts     driveragent.Options
		from, to string
	)
	cmd := &cobra.Command{
		Use:     cli.ModeAgent,
		Aliases: cli.Aliases[cli.ModeAgent],
		Short:   "Simulated driver device streaming location and device status",
		Example: "  delivery-dispatch driver-agent --server=http://localhost:3000 --email=ada@example.com --password=secret123",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if opts.Start, err = cli.ParsePoint(from); err != nil {
				return err
			}
			if opts.Dest, err = cli.ParsePoint(to); err != nil {
				return err
			}
			opts.ConfigPath = configPath
			return driveragent.Run(cmd.Context(), opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.ServerURL, "server", "http://localhost:3000", "dispatch service base URL")
	f.StringVar(&opts.Token, "token", "", "driver session token; skips the login call")
	f.StringVar(&opts.Email, "email", "", "driver email used to log in")
	f.StringVar(&opts.Password, "password", "", "driver password used to log in")
	f.StringVar(&from, "from", "52.5200,13.4050", "starting position as lat,lng")
	f.StringVar(&to, "to", "52.5000,13.4500", "destination as lat,lng")
	f.Float64Var(&opts.SpeedKmh, "speed", 30, "simulated speed in km/h")
	f.DurationVar(&opts.FixEvery, "fix-every", 3*time.Second, "interval between location fixes")
	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		subject, role, name, secret string
		ttl                         time.Duration
	)
	cmd := &cobra.Command{
		Use:     cli.ModeToken,
		Aliases: cli.Aliases[cli.ModeToken],
		Short:   "Mint a session token for a driver, admin or customer",
		Example: "  delivery-dispatch token --subject=ord-1001 --role=customer --secret='<secret>'",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if subject == "" || secret == "" {
				return errors.New("--subject and --secret are required")
			}
			token, claims, err := cli.GenerateUserToken(secret, ttl, subject, role, name)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "TOKEN:")
			fmt.Fprintln(out, token)
			fmt.Fprintln(out, "\nCLAIMS:")
			fmt.Fprintf(out, "  sub:  %s\n", claims.Subject)
			fmt.Fprintf(out, "  role: %s\n", claims.Role)
			fmt.Fprintf(out, "  iat:  %s\n", claims.IssuedAt.Time.UTC().Format(time.RFC3339))
			fmt.Fprintf(out, "  exp:  %s\n", claims.ExpiresAt.Time.UTC().Format(time.RFC3339))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&subject, "subject", "", "driver id, admin id, or order id for customers")
	f.StringVar(&role, "role", "driver", "role: driver | admin | customer")
	f.StringVar(&name, "name", "", "display name")
	f.StringVar(&secret, "secret", "", "JWT HMAC secret (HS256)")
	f.DurationVar(&ttl, "ttl", 2*time.Hour, "token lifetime")
	return cmd
}
