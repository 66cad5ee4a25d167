// hotoctl is a command-line probe for the real-time handover server. It
// connects as a given identity and drives the protocol from the terminal.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/hotowire-server/internal/client"
	"github.com/vovakirdan/hotowire-server/internal/core"
	"github.com/vovakirdan/hotowire-server/internal/log"
	"github.com/vovakirdan/hotowire-server/internal/proto"
)

var (
	flagURL      string
	flagUserID   string
	flagUserName string
	flagUserRole string
	flagLogLevel string
)

func main() {
	root := &cobra.Command{
		Use:           "hotoctl",
		Short:         "probe the real-time handover server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagURL, "url", "ws://localhost:8080/ws", "WebSocket endpoint")
	root.PersistentFlags().StringVar(&flagUserID, "user-id", "", "user id")
	root.PersistentFlags().StringVar(&flagUserName, "user-name", "", "user name")
	root.PersistentFlags().StringVar(&flagUserRole, "user-role", "MEMBER", "user role (ADMIN, MEMBER, RQ)")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "log level")

	root.AddCommand(watchCmd(), requestCmd(), respondCmd(), cancelCmd(), onlineCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "hotoctl:", err)
		os.Exit(1)
	}
}

func newClient() (*client.Client, error) {
	return client.New(client.Config{
		URL: flagURL,
		Identity: core.Identity{
			UserID:   flagUserID,
			UserName: flagUserName,
			UserRole: core.Role(flagUserRole),
		},
		Logger: log.New(flagLogLevel),
	})
}

// printAll registers a printing callback for every server frame type.
func printAll(c *client.Client) {
	for _, t := range []string{
		proto.TypeWelcome,
		proto.TypeUserStatus,
		proto.TypeOnlineUsers,
		proto.TypeHandoverInvitation,
		proto.TypeHandoverSent,
		proto.TypeHandoverError,
		proto.TypeHandoverAccepted,
		proto.TypeHandoverConfirmed,
		proto.TypeHandoverRejected,
		proto.TypeHandoverCancelled,
		proto.TypeHandoverCancelledAck,
		proto.TypeError,
	} {
		msgType := t
		c.On(msgType, func(data json.RawMessage) {
			fmt.Printf("<- %s %s\n", msgType, string(data))
		})
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "connect and print every pushed frame until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			c, err := newClient()
			if err != nil {
				return err
			}
			printAll(c)
			if err := c.Connect(ctx); err != nil {
				return err
			}
			defer c.Disconnect()

			<-ctx.Done()
			return nil
		},
	}
}

func requestCmd() *cobra.Command {
	var to, storeID, storeName, remarks string
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "request",
		Short: "send a handover invitation and wait for the outcome",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			c, err := newClient()
			if err != nil {
				return err
			}
			printAll(c)

			done := make(chan string, 1)
			for _, t := range []string{
				proto.TypeHandoverAccepted,
				proto.TypeHandoverRejected,
				proto.TypeHandoverError,
			} {
				outcome := t
				c.On(outcome, func(data json.RawMessage) {
					fmt.Printf("<- %s %s\n", outcome, string(data))
					select {
					case done <- outcome:
					default:
					}
				})
			}

			if err := c.Connect(ctx); err != nil {
				return err
			}
			defer c.Disconnect()

			if err := c.RequestHandover(ctx, to, storeID, storeName, remarks); err != nil {
				return err
			}

			select {
			case outcome := <-done:
				fmt.Println("outcome:", outcome)
			case <-time.After(wait):
				fmt.Println("no answer within", wait)
			case <-ctx.Done():
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "target user id")
	cmd.Flags().StringVar(&storeID, "store-id", "", "store id")
	cmd.Flags().StringVar(&storeName, "store-name", "", "store name")
	cmd.Flags().StringVar(&remarks, "remarks", "", "remarks")
	cmd.Flags().DurationVar(&wait, "wait", time.Minute, "how long to wait for an answer")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func respondCmd() *cobra.Command {
	var accept bool
	var reason string
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "respond",
		Short: "wait for an invitation and answer it",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			c, err := newClient()
			if err != nil {
				return err
			}
			printAll(c)

			invited := make(chan struct{}, 1)
			c.On(proto.TypeHandoverInvitation, func(data json.RawMessage) {
				fmt.Printf("<- %s %s\n", proto.TypeHandoverInvitation, string(data))
				select {
				case invited <- struct{}{}:
				default:
				}
			})

			if err := c.Connect(ctx); err != nil {
				return err
			}
			defer c.Disconnect()

			select {
			case <-invited:
			case <-time.After(wait):
				return fmt.Errorf("no invitation within %s", wait)
			case <-ctx.Done():
				return nil
			}

			if err := c.Respond(ctx, accept, reason); err != nil {
				return err
			}
			// Give the confirmation a moment to arrive.
			time.Sleep(time.Second)
			return nil
		},
	}
	cmd.Flags().BoolVar(&accept, "accept", false, "accept the invitation (rejects otherwise)")
	cmd.Flags().StringVar(&reason, "reason", "", "rejection reason")
	cmd.Flags().DurationVar(&wait, "wait", time.Minute, "how long to wait for an invitation")
	return cmd
}

func cancelCmd() *cobra.Command {
	var to, storeID, storeName, remarks string
	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "send an invitation, then immediately withdraw it",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			c, err := newClient()
			if err != nil {
				return err
			}
			printAll(c)

			if err := c.Connect(ctx); err != nil {
				return err
			}
			defer c.Disconnect()

			if err := c.RequestHandover(ctx, to, storeID, storeName, remarks); err != nil {
				return err
			}
			if err := c.CancelRequest(ctx); err != nil {
				return err
			}
			time.Sleep(time.Second)
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "target user id")
	cmd.Flags().StringVar(&storeID, "store-id", "", "store id")
	cmd.Flags().StringVar(&storeName, "store-name", "", "store name")
	cmd.Flags().StringVar(&remarks, "remarks", "", "remarks")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func onlineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "online",
		Short: "print the current online-users snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			c, err := newClient()
			if err != nil {
				return err
			}

			got := make(chan proto.OnlineUsers, 1)
			c.On(proto.TypeOnlineUsers, func(data json.RawMessage) {
				var list proto.OnlineUsers
				if err := json.Unmarshal(data, &list); err != nil {
					return
				}
				select {
				case got <- list:
				default:
				}
			})

			if err := c.Connect(ctx); err != nil {
				return err
			}
			defer c.Disconnect()

			if err := c.RequestOnlineUsers(ctx); err != nil {
				return err
			}

			select {
			case list := <-got:
				for _, u := range list.OnlineUsers {
					fmt.Printf("%s\t%s\t%s\t%s\n", u.UserID, u.UserName, u.UserRole, u.Status)
				}
			case <-time.After(10 * time.Second):
				return fmt.Errorf("no snapshot within 10s")
			case <-ctx.Done():
			}
			return nil
		},
	}
}
