package main

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aponysus/firstof/controlplane"
	"github.com/aponysus/firstof/fetch"
	"github.com/aponysus/firstof/observe/zapobserver"
)

type rootFlags struct {
	verbose    bool
	policyFile string
	policyURL  string
	policyTTL  time.Duration
	key        string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:          "firstof",
		Short:        "Race retry-wrapped sources and keep the first success",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Trace every attempt and settlement")
	cmd.PersistentFlags().StringVarP(&flags.policyFile, "policy", "p", "", "YAML policy file")
	cmd.PersistentFlags().StringVar(&flags.policyURL, "policy-url", "", "URL serving a YAML policy document")
	cmd.PersistentFlags().DurationVar(&flags.policyTTL, "policy-ttl", controlplane.DefaultCacheTTL, "How long a loaded policy is reused before it is read again")
	cmd.MarkFlagsMutuallyExclusive("policy", "policy-url")
	cmd.PersistentFlags().StringVarP(&flags.key, "key", "k", "firstof.cli", "Policy key (namespace.name)")

	cmd.AddCommand(
		newFetchCmd(flags),
		newSimulateCmd(flags),
	)
	return cmd
}

func (f *rootFlags) logger() (*zap.Logger, error) {
	if !f.verbose {
		return zap.NewNop(), nil
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	return cfg.Build()
}

// fetcher builds the Fetcher shared by all subcommands.
func (f *rootFlags) fetcher(logger *zap.Logger) (*fetch.Fetcher, error) {
	opts := []fetch.Option{fetch.WithLogger(logger)}
	if f.verbose {
		opts = append(opts, fetch.WithObserver(zapobserver.New(logger)))
	}
	src, err := f.policySource()
	if err != nil {
		return nil, err
	}
	if src != nil {
		provider := controlplane.NewRemoteProvider(src, controlplane.WithCacheTTL(f.policyTTL))
		opts = append(opts, fetch.WithProvider(provider))
	}
	return fetch.New(opts...), nil
}

func (f *rootFlags) policySource() (controlplane.Source, error) {
	switch {
	case f.policyFile != "":
		provider, err := controlplane.NewFileProvider(f.policyFile)
		if err != nil {
			return nil, fmt.Errorf("load policy: %w", err)
		}
		return provider, nil
	case f.policyURL != "":
		u, err := url.Parse(f.policyURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return nil, fmt.Errorf("load policy: invalid url %q", f.policyURL)
		}
		return &controlplane.HTTPSource{URL: f.policyURL}, nil
	}
	return nil, nil
}
