package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/aponysus/firstof/fetch"
	"github.com/aponysus/firstof/policy"
	"github.com/aponysus/firstof/source"
)

var errNoMirror = errors.New("no mirror produced the artifact")

func newFetchCmd(root *rootFlags) *cobra.Command {
	var (
		out     string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "fetch URL [URL...]",
		Short: "Download from the first mirror that answers",
		Example: `  # Write whichever mirror responds first to stdout
  firstof fetch https://a.example/pkg.tgz https://b.example/pkg.tgz > pkg.tgz

  # Use retry settings from a policy file
  firstof fetch -p policies.yaml -k downloads.pkg -o pkg.tgz https://a.example/pkg.tgz`,
		Args: cobra.MinimumNArgs(1),
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

			client := &http.Client{Timeout: timeout}
			mirrors := make([]source.Source[[]byte], len(args))
			for i, u := range args {
				mirrors[i] = source.NewHTTP(u, source.WithClient(client))
			}

			body, ok := fetch.First(cmd.Context(), f, policy.ParseKey(root.key), mirrors)
			if !ok {
				return errNoMirror
			}

			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(body)
				return err
			}
			if err := os.WriteFile(out, body, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "Write the artifact to this file instead of stdout")
	cmd.Flags().DurationVar(&timeout, "request-timeout", 30*time.Second, "Timeout for a single HTTP attempt")
	return cmd
}
