// Package main implements the operator CLI for the failover admin API.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/i-melnichenko/ha-failover/internal/failover"
	admingrpc "github.com/i-melnichenko/ha-failover/internal/transport/grpc/admin"
)

type rootOptions struct {
	addr    string
	timeout time.Duration
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "client",
		Short:         "Inspect and control controller failover",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.addr, "addr", "localhost:7070", "comma-separated admin gRPC addresses (first is used for commands)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 5*time.Second, "request timeout")

	root.AddCommand(
		queryCommand(opts, "status", "Show the failover status", func(ctx context.Context, c *admingrpc.Client) error {
			st, err := c.Status(ctx)
			if err != nil {
				return err
			}
			fmt.Println(st)
			return nil
		}),
		queryCommand(opts, "reasons", "List the reasons failover is unavailable", func(ctx context.Context, c *admingrpc.Client) error {
			reasons, err := c.DisabledReasons(ctx)
			if err != nil {
				return err
			}
			if len(reasons) == 0 {
				fmt.Println("(none)")
			}
			for _, r := range reasons {
				fmt.Println(r)
			}
			return nil
		}),
		queryCommand(opts, "in-progress", "Report whether a transition is running", func(ctx context.Context, c *admingrpc.Client) error {
			return printBool(c.InProgress(ctx))
		}),
		queryCommand(opts, "upgrade-pending", "Report whether the standby waits for an upgrade", func(ctx context.Context, c *admingrpc.Client) error {
			return printBool(c.UpgradePending(ctx))
		}),
		queryCommand(opts, "last-transition", "Show the last finished transition", func(ctx context.Context, c *admingrpc.Client) error {
			rec, ok, err := c.LastTransition(ctx)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("(none)")
				return nil
			}
			fmt.Printf("job %s: %s on %s -> %s at %s\n",
				rec.JobID, rec.Event.Kind, rec.Event.Interface, rec.Result, rec.Finished.Format(time.RFC3339))
			if rec.Error != "" {
				fmt.Printf("error: %s\n", rec.Error)
			}
			return nil
		}),
		queryCommand(opts, "mismatch-disks", "Compare disks seen by both controllers", func(ctx context.Context, c *admingrpc.Client) error {
			m, err := c.MismatchDisks(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("missing local:  %s\n", joinOrDash(m.MissingLocal))
			fmt.Printf("missing remote: %s\n", joinOrDash(m.MissingRemote))
			return nil
		}),
		queryCommand(opts, "jobs", "List failover jobs", func(ctx context.Context, c *admingrpc.Client) error {
			jobs, err := c.Jobs(ctx)
			if err != nil {
				return err
			}
			for _, j := range jobs {
				line := fmt.Sprintf("%s  %-24s %-8s %s", j.ID, j.Method, j.State, j.Progress)
				if j.Error != "" {
					line += "  error=" + j.Error
				}
				fmt.Println(strings.TrimRight(line, " "))
			}
			return nil
		}),
		eventCommand(opts),
		queryCommand(opts, "force-master", "Take over as MASTER regardless of VRRP", func(ctx context.Context, c *admingrpc.Client) error {
			return printBool(c.ForceMaster(ctx))
		}),
		queryCommand(opts, "become-passive", "Step down so the peer takes over", func(ctx context.Context, c *admingrpc.Client) error {
			return printOK(c.BecomePassive(ctx))
		}),
		queryCommand(opts, "setup", "Pair with a peer that still reports SINGLE", func(ctx context.Context, c *admingrpc.Client) error {
			return printBool(c.SetupHA(ctx))
		}),
		syncToPeerCommand(opts),
		queryCommand(opts, "sync-from-peer", "Ask the peer to push its configuration here", func(ctx context.Context, c *admingrpc.Client) error {
			return printOK(c.SyncFromPeer(ctx))
		}),
		configCommand(opts),
		controlCommand(opts, failover.ControlEnable),
		controlCommand(opts, failover.ControlDisable),
		watchCommand(opts),
	)
	return root
}

func (o *rootOptions) addrs() []string {
	parts := strings.Split(o.addr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// withClient dials the first address and runs fn under the request timeout.
func (o *rootOptions) withClient(fn func(ctx context.Context, c *admingrpc.Client) error) error {
	addrs := o.addrs()
	if len(addrs) == 0 {
		return fmt.Errorf("no addresses provided")
	}
	c, err := admingrpc.Dial(addrs[0], grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()
	return fn(ctx, c)
}

func queryCommand(opts *rootOptions, use, short string, fn func(ctx context.Context, c *admingrpc.Client) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return opts.withClient(fn)
		},
	}
}

func eventCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "event <interface> <MASTER|BACKUP|forcetakeover>",
		Short: "Inject a link-state event",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			kind, err := parseEventKind(args[1])
			if err != nil {
				return err
			}
			return opts.withClient(func(ctx context.Context, c *admingrpc.Client) error {
				id, err := c.Event(ctx, args[0], kind)
				if err != nil {
					return err
				}
				fmt.Printf("submitted job %s\n", id)
				return nil
			})
		},
	}
}

func syncToPeerCommand(opts *rootOptions) *cobra.Command {
	var reboot bool
	cmd := &cobra.Command{
		Use:   "sync-to-peer",
		Short: "Push configuration, keys and cache-file to the peer",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return opts.withClient(func(ctx context.Context, c *admingrpc.Client) error {
				return printOK(c.SyncToPeer(ctx, reboot))
			})
		},
	}
	cmd.Flags().BoolVar(&reboot, "reboot", false, "reboot the peer after the sync")
	return cmd
}

func configCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or update the failover configuration",
	}
	cmd.AddCommand(queryCommand(opts, "get", "Show the failover configuration", func(ctx context.Context, c *admingrpc.Client) error {
		cfg, err := c.Config(ctx)
		if err != nil {
			return err
		}
		printConfig(cfg)
		return nil
	}))

	var (
		disabled string
		master   string
		timeout  int
	)
	update := &cobra.Command{
		Use:   "update",
		Short: "Update the failover configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			patch, err := buildPatch(cmd, disabled, master, timeout)
			if err != nil {
				return err
			}
			return opts.withClient(func(ctx context.Context, c *admingrpc.Client) error {
				cfg, err := c.UpdateConfig(ctx, patch)
				if err != nil {
					return err
				}
				printConfig(cfg)
				return nil
			})
		},
	}
	update.Flags().StringVar(&disabled, "disabled", "", "disable failover (true|false)")
	update.Flags().StringVar(&master, "master", "", "make this controller the preferred MASTER (true|false)")
	update.Flags().IntVar(&timeout, "timeout-seconds", 0, "seconds to wait before failing over")
	cmd.AddCommand(update)
	return cmd
}

func buildPatch(cmd *cobra.Command, disabled, master string, timeout int) (failover.ConfigPatch, error) {
	var patch failover.ConfigPatch
	if cmd.Flags().Changed("disabled") {
		v, err := strconv.ParseBool(disabled)
		if err != nil {
			return patch, fmt.Errorf("invalid --disabled %q: %w", disabled, err)
		}
		patch.Disabled = &v
	}
	if cmd.Flags().Changed("master") {
		v, err := strconv.ParseBool(master)
		if err != nil {
			return patch, fmt.Errorf("invalid --master %q: %w", master, err)
		}
		patch.Master = &v
	}
	if cmd.Flags().Changed("timeout-seconds") {
		patch.Timeout = &timeout
	}
	if patch.Disabled == nil && patch.Master == nil && patch.Timeout == nil {
		return patch, fmt.Errorf("nothing to update: set --disabled, --master or --timeout-seconds")
	}
	return patch, nil
}

func controlCommand(opts *rootOptions, action failover.ControlAction) *cobra.Command {
	var active string
	cmd := &cobra.Command{
		Use:   strings.ToLower(string(action)),
		Short: fmt.Sprintf("%s failover", strings.ToLower(string(action))),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var activePtr *bool
			if cmd.Flags().Changed("active") {
				v, err := strconv.ParseBool(active)
				if err != nil {
					return fmt.Errorf("invalid --active %q: %w", active, err)
				}
				activePtr = &v
			}
			return opts.withClient(func(ctx context.Context, c *admingrpc.Client) error {
				changed, err := c.Control(ctx, action, activePtr)
				if err != nil {
					return err
				}
				if !changed {
					fmt.Println("unchanged")
					return nil
				}
				fmt.Println("ok")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&active, "active", "", "keep this controller active (true|false)")
	return cmd
}

func parseEventKind(s string) (failover.EventKind, error) {
	switch {
	case strings.EqualFold(s, string(failover.EventMaster)):
		return failover.EventMaster, nil
	case strings.EqualFold(s, string(failover.EventBackup)):
		return failover.EventBackup, nil
	case strings.EqualFold(s, string(failover.EventForceTakeover)):
		return failover.EventForceTakeover, nil
	default:
		return "", fmt.Errorf("unknown event %q: want MASTER, BACKUP or forcetakeover", s)
	}
}

func printConfig(cfg failover.Config) {
	fmt.Printf("disabled:    %t\n", cfg.Disabled)
	fmt.Printf("master_node: %s\n", cfg.MasterNode)
	fmt.Printf("timeout:     %d\n", cfg.Timeout)
}

func printBool(v bool, err error) error {
	if err != nil {
		return err
	}
	fmt.Println(v)
	return nil
}

func printOK(err error) error {
	if err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
