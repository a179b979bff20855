package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/backkem/v2g/internal/config"
	"github.com/backkem/v2g/pkg/evcc"
	"github.com/backkem/v2g/pkg/session"
	"github.com/backkem/v2g/pkg/transport"
)

var (
	evStation string
	evStop    string
	evResume  string
	evTimeout time.Duration
)

// ev: run one session and report how it ended.
func evCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ev",
		Short: "Run one vehicle session against a station",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ev := appCfg.EV
			if cmd.Flags().Changed("station") {
				ev.StationAddr = evStation
			}
			if cmd.Flags().Changed("stop") {
				stop, err := config.ParseStop(evStop)
				if err != nil {
					return err
				}
				ev.Stop = stop
			}
			if cmd.Flags().Changed("resume") {
				id, err := config.ParseSessionID(evResume)
				if err != nil {
					return fmt.Errorf("resume: %w", err)
				}
				ev.ResumeID = id
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, evTimeout)
			defer cancel()
			return runEV(ctx, cmd, ev)
		},
	}
	cmd.Flags().StringVar(&evStation, "station", "", "station TCP address")
	cmd.Flags().StringVar(&evStop, "stop", "", "how to end the session (terminate or pause)")
	cmd.Flags().StringVar(&evResume, "resume", "", "hex identifier of a paused session to rejoin")
	cmd.Flags().DurationVar(&evTimeout, "timeout", 30*time.Second, "session deadline")
	return cmd
}

func runEV(ctx context.Context, cmd *cobra.Command, ev config.EV) error {
	lf := appCfg.LoggerFactory()
	resolver, err := appCfg.Resolver()
	if err != nil {
		return err
	}

	var paused *session.PauseEvent
	client, err := evcc.NewClient(evcc.Config{
		EVCCID:        ev.EVCCID,
		PaymentOption: ev.PaymentOption,
		Stop:          ev.Stop,
		ResumeID:      ev.ResumeID,
		Resolver:      resolver,
		Options:       appCfg.Options(),
		Observer: session.ListenerFuncs{Pause: func(e session.PauseEvent) error {
			paused = &e
			return nil
		}},
		LoggerFactory: lf,
	})
	if err != nil {
		return err
	}

	conn, err := transport.Dial(ctx, ev.StationAddr, transport.ConnConfig{LoggerFactory: lf})
	if err != nil {
		return fmt.Errorf("dial %s: %w", ev.StationAddr, err)
	}
	defer conn.Close()

	if err := client.Run(ctx, conn); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	id := client.Session().ID()
	switch {
	case paused != nil:
		fmt.Fprintf(out, "session %s paused (resume with --resume %s)\n", id, id)
	default:
		res, _ := client.Result()
		fmt.Fprintf(out, "session %s terminated: %s\n", id, res.Reason)
	}
	if client.Joined() {
		fmt.Fprintln(out, "rejoined a paused session")
	}
	return nil
}
