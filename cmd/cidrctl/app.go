package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/veesix-networks/cidrd/internal/gateway"
	"github.com/veesix-networks/cidrd/pkg/version"
)

const defaultServer = "localhost:50051"

type app struct {
	server  string
	timeout time.Duration
	format  string

	out    io.Writer
	conn   *grpc.ClientConn
	client *gateway.Client
}

func (a *app) connect() error {
	if a.client != nil {
		return nil
	}
	conn, err := gateway.Dial(a.server)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", a.server, err)
	}
	a.conn = conn
	a.client = gateway.NewClient(conn)
	return nil
}

func (a *app) close() {
	if a.conn != nil {
		a.conn.Close()
	}
}

func (a *app) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), a.timeout)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "cidrctl",
		Short:         "Inspect and drive a cidrd route CIDR allocator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := parseFormat(a.format); err != nil {
				return err
			}
			if cmd.Annotations["offline"] == "true" {
				return nil
			}
			return a.connect()
		},
	}
	root.SetOut(a.out)

	flags := root.PersistentFlags()
	flags.StringVarP(&a.server, "server", "s", defaultServer, "cidrd gateway address")
	flags.DurationVar(&a.timeout, "timeout", 10*time.Second, "Per-request timeout")
	flags.StringVarP(&a.format, "output", "o", string(FormatCLI), "Output format: cli, json or yaml")

	root.AddCommand(
		newAllocateCmd(a),
		newReleaseCmd(a),
		newListCmd(a),
		newStatusCmd(a),
		newShellCmd(a),
		&cobra.Command{
			Use:         "version",
			Short:       "Print the cidrctl version",
			Args:        cobra.NoArgs,
			Annotations: map[string]string{"offline": "true"},
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), "cidrctl", version.Full())
			},
		},
	)
	return root
}
