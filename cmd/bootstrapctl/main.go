// Command bootstrapctl resolves RDAP queries against the IANA bootstrap
// registries and manages the registry cache shared with rdap-bootstrap.
//
//	bootstrapctl resolve domain example.com
//	bootstrapctl resolve ip 192.0.2.0/24 --scheme http --match-protocol
//	bootstrapctl fetch asn ipv4
//	bootstrapctl registries --cache sqlite --db ./registries.db
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/endharassment/rdap-bootstrap/internal/bootstrap"
	"github.com/endharassment/rdap-bootstrap/internal/registry"
)

type globalFlags struct {
	cache   string
	db      string
	redis   string
	baseURL string
	timeout time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "bootstrapctl",
		Short:         "RDAP bootstrap registry CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&g.cache, "cache", envOr("RDAP_CACHE", registry.BackendMemory), "registry cache backend: memory, sqlite or redis")
	root.PersistentFlags().StringVar(&g.db, "db", envOr("RDAP_SQLITE_PATH", "./registries.db"), "SQLite database path")
	root.PersistentFlags().StringVar(&g.redis, "redis", os.Getenv("RDAP_REDIS_URL"), "Redis URL")
	root.PersistentFlags().StringVar(&g.baseURL, "base-url", envOr("RDAP_BASE_URL", bootstrap.DefaultBaseURL), "where registry files are downloaded from")
	root.PersistentFlags().DurationVar(&g.timeout, "timeout", registry.DefaultFetchTimeout, "timeout for the whole command")

	root.AddCommand(cmdResolve(g), cmdFetch(g), cmdRegistries(g))
	return root
}

// openStore builds a registry store from the global flags. Logs go to
// stderr so that command output stays parseable.
func (g *globalFlags) openStore(ctx context.Context) (*registry.Store, error) {
	kv, err := registry.OpenKV(ctx, registry.KVConfig{
		Backend:    g.cache,
		SQLitePath: g.db,
		RedisURL:   g.redis,
	})
	if err != nil {
		return nil, err
	}
	overrides, err := registry.ParseURLOverrides(os.Getenv("RDAP_BOOTSTRAP_URLS"))
	if err != nil {
		kv.Close()
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	return registry.NewStore(kv, registry.NewHTTPSource(nil, g.baseURL, overrides),
		registry.WithLogger(logger),
		registry.WithFetchTimeout(g.timeout),
	), nil
}

func (g *globalFlags) run(cmd *cobra.Command, fn func(ctx context.Context, s *registry.Store) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), g.timeout)
	defer cancel()
	s, err := g.openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}

func cmdResolve(g *globalFlags) *cobra.Command {
	var (
		scheme        string
		matchProtocol bool
	)
	cmd := &cobra.Command{
		Use:   "resolve <ip|autnum|domain|nameserver|entity> <query>",
		Short: "Print the redirect target for a query",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := bootstrap.ParseKind(args[0])
			if err != nil {
				return err
			}
			return g.run(cmd, func(ctx context.Context, s *registry.Store) error {
				target, err := bootstrap.NewResolver(s).Redirect(ctx, kind, args[1], scheme, matchProtocol)
				if err != nil {
					return describe(err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), target)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&scheme, "scheme", "https", "scheme the query is assumed to arrive over")
	cmd.Flags().BoolVar(&matchProtocol, "match-protocol", false, "prefer base URLs using --scheme")
	return cmd
}

// describe turns resolver errors into the text a client of the HTTP service
// would see.
func describe(err error) error {
	var (
		ve *bootstrap.ValidationError
		nm *bootstrap.NoMatchError
	)
	switch {
	case errors.As(err, &ve):
		return errors.New(ve.Message)
	case errors.As(err, &nm):
		return errors.New(nm.Description())
	default:
		return err
	}
}

func cmdFetch(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch [registry...]",
		Short: "Download registries into the cache",
		Long:  "Download the named registries (asn, ipv4, ipv6, dns, object-tags), or all of them, and store them in the configured cache.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseRegistryIDs(args)
			if err != nil {
				return err
			}
			return g.run(cmd, func(ctx context.Context, s *registry.Store) error {
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "REGISTRY\tBYTES\tMODIFIED\tEXPIRES")
				for _, id := range ids {
					doc, err := s.Refresh(ctx, id)
					if err != nil {
						return err
					}
					fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", id, len(doc.Body),
						doc.Modified.UTC().Format(time.RFC3339),
						doc.Expires.UTC().Format(time.RFC3339))
				}
				return tw.Flush()
			})
		},
	}
}

func cmdRegistries(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "registries",
		Short: "Summarize every registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.run(cmd, func(ctx context.Context, s *registry.Store) error {
				return printRegistries(ctx, cmd.OutOrStdout(), s)
			})
		},
	}
}

func printRegistries(ctx context.Context, w io.Writer, s *registry.Store) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "REGISTRY\tVERSION\tPUBLICATION\tMODIFIED\tSERVICES")
	for _, id := range bootstrap.Registries {
		doc, err := s.Load(ctx, id)
		if err != nil {
			return err
		}
		header, err := bootstrap.DecodeHeader(doc.Body)
		if err != nil {
			return fmt.Errorf("decode %s: %w", id, err)
		}

		var services int
		if id == bootstrap.RegistryObjectTags {
			reg, err := s.ObjectTags(ctx)
			if err != nil {
				return err
			}
			services = len(reg.Services)
		} else {
			reg, err := s.Registry(ctx, id)
			if err != nil {
				return err
			}
			services = len(reg.Services)
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", id, header.Version, header.Publication,
			doc.Modified.UTC().Format(time.RFC3339), services)
	}
	return tw.Flush()
}

func parseRegistryIDs(args []string) ([]bootstrap.RegistryID, error) {
	if len(args) == 0 {
		return bootstrap.Registries, nil
	}
	ids := make([]bootstrap.RegistryID, 0, len(args))
	for _, a := range args {
		id, err := bootstrap.ParseRegistryID(a)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
