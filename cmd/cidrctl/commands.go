package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veesix-networks/cidrd/internal/service"
	"github.com/veesix-networks/cidrd/pkg/nodeconfig"
)

func newAllocateCmd(a *app) *cobra.Command {
	var mode, pillar string

	cmd := &cobra.Command{
		Use:   "allocate [node-id]",
		Short: "Allocate the route CIDR for a node",
		Long: "Allocate the route CIDR for a node. A node that already holds a block gets it back.\n" +
			"With --pillar the node id and network mode are read from a node record file.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req service.AllocateRequest
			switch {
			case pillar != "" && len(args) > 0:
				return fmt.Errorf("give either a node id or --pillar, not both")
			case pillar != "":
				n, err := nodeconfig.Load(pillar)
				if err != nil {
					return err
				}
				req = n.AllocateRequest()
				if cmd.Flags().Changed("mode") {
					req.NetworkMode = mode
				}
			case len(args) == 1:
				req = service.AllocateRequest{NodeID: args[0], NetworkMode: mode}
			default:
				return fmt.Errorf("a node id or --pillar is required")
			}

			ctx, cancel := a.requestContext()
			defer cancel()

			resp, err := a.client.Allocate(ctx, req)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), a.format, resp, func(w *table) {
				if resp.RouteCIDR == "" {
					w.line("No route CIDR needed for %s", req.NodeID)
					return
				}
				w.row("NODE", "ROUTE CIDR")
				w.row(req.NodeID, resp.RouteCIDR)
			})
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", "", "Network mode of the node (overlay nodes get no block)")
	cmd.Flags().StringVar(&pillar, "pillar", "", "Read the node record from a YAML file")
	return cmd
}

func newReleaseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "release <node-id>",
		Short: "Release the block held by a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.requestContext()
			defer cancel()

			resp, err := a.client.Release(ctx, service.ReleaseRequest{NodeID: args[0]})
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), a.format, resp, func(w *table) {
				if resp.Released {
					w.line("Released block held by %s", args[0])
				} else {
					w.line("%s holds no block", args[0])
				}
			})
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List live assignments",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.requestContext()
			defer cancel()

			list, err := a.client.List(ctx)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), a.format, list, func(w *table) {
				w.row("INDEX", "NODE", "ROUTE CIDR", "ASSIGNED")
				for _, as := range list.Assignments {
					w.row(fmt.Sprint(as.Index), as.NodeID, as.RouteCIDR, as.AssignedAt.Format("2006-01-02 15:04:05"))
				}
			})
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show pool occupancy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.requestContext()
			defer cancel()

			st, err := a.client.Status(ctx)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), a.format, st, func(w *table) {
				w.row("Network:", st.Network)
				w.row("Block size:", fmt.Sprintf("/%d", st.BlockPrefixLength))
				w.row("Blocks:", fmt.Sprint(st.Total))
				w.row("Assigned:", fmt.Sprint(st.Assigned))
				w.row("Free:", fmt.Sprint(st.Free))
			})
		},
	}
}
