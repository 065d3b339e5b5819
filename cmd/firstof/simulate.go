package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aponysus/firstof/fetch"
	"github.com/aponysus/firstof/policy"
	"github.com/aponysus/firstof/source"
)

func newSimulateCmd(root *rootFlags) *cobra.Command {
	var (
		ticks      int
		interval   time.Duration
		disconnect float64
	)
	cmd := &cobra.Command{
		Use:   "simulate [NAME...]",
		Short: "Race simulated servers that may drop the connection",
		Long: `Each simulated server needs a number of ticks to finish a download and may
disconnect on any tick. Without names, three servers are raced.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := root.logger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			f, err := root.fetcher(logger)
			if err != nil {
				return err
			}

			names := args
			if len(names) == 0 {
				names = []string{"server-1", "server-2", "server-3"}
			}
			servers := make([]*source.Server, len(names))
			for i, name := range names {
				servers[i] = source.NewServer(name,
					source.WithTicks(ticks),
					source.WithTickInterval(interval),
					source.WithDisconnectRatio(disconnect),
					source.WithServerLogger(logger),
				)
			}

			start := time.Now()
			bin, tl, ok := fetch.FirstWithTimeline(cmd.Context(), f, policy.ParseKey(root.key), source.Of[source.Binary](servers...))

			w := cmd.OutOrStdout()
			if !ok {
				_, err = fmt.Fprintf(w, "no server finished after %d attempts (%s)\n", len(tl.Attempts), time.Since(start).Round(time.Millisecond))
				return err
			}
			_, err = fmt.Fprintf(w, "%s after %d attempts, winner #%d (%s)\n",
				bin, len(tl.Attempts), tl.Winner, time.Since(start).Round(time.Millisecond))
			return err
		},
	}
	cmd.Flags().IntVar(&ticks, "ticks", source.DefaultTicks, "Ticks per download")
	cmd.Flags().DurationVar(&interval, "interval", source.DefaultTickInterval, "Delay between ticks")
	cmd.Flags().Float64Var(&disconnect, "disconnect", source.DefaultDisconnectRatio, "Per-tick disconnect probability")
	return cmd
}
