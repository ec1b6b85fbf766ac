package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/coveguard/cove-go-sdk/internal/config"
	"github.com/coveguard/cove-go-sdk/internal/logging"
	"github.com/coveguard/cove-go-sdk/pkg/api"
	"github.com/coveguard/cove-go-sdk/pkg/clients"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Version information (set at build time with -ldflags)
var (
	Version   = "dev"
	GitCommit = "unknown"
)

var rootCmd = &cobra.Command{
	Use:          "covectl",
	Short:        "covectl - query entities on a backup-management server",
	Long:         `covectl mirrors the entities managed by a remote backup-management server and lets you list, filter and inspect them from the command line.`,
	Version:      Version,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("covectl %s (%s)\n", Version, GitCommit)
	},
}

var (
	flagHidden   bool
	flagCategory string

	flagFields      []string
	flagSort        string
	flagFilters     []string
	flagSearch      string
	flagStart       int
	flagLimit       int
	flagHardRefresh bool

	flagMongoDB bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List entities",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		registry, err := buildRegistry(ctx)
		if err != nil {
			return err
		}

		var partition clients.Partition
		switch {
		case flagCategory != "":
			partition, err = registry.Category(ctx, clients.Category(flagCategory))
			if err != nil {
				return err
			}
		case flagHidden:
			partition = registry.Hidden()
		default:
			partition = registry.Visible()
		}

		names := partition.Names()
		sort.Strings(names)
		for _, name := range names {
			rec := partition[name]
			fmt.Printf("%s\t%s\t%s\n", name, rec.ID, rec.Hostname)
		}
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <name|hostname|displayName|id>",
	Short: "Resolve one entity and print its specialized handle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		registry, err := buildRegistry(ctx)
		if err != nil {
			return err
		}

		entity, err := registry.Get(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("name: %s\nid: %s\nkind: %s\n", entity.Name(), entity.ID(), entity.Kind())
		keys := make([]string, 0)
		for key := range entity.Properties() {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		fmt.Printf("properties: %s\n", strings.Join(keys, ", "))
		return nil
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Query the server-side entity cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		registry, err := buildRegistry(ctx)
		if err != nil {
			return err
		}

		req, err := buildQueryRequest()
		if err != nil {
			return err
		}

		records, total, err := registry.CachedEntities(ctx, req)
		if err != nil {
			return err
		}

		names := make([]string, 0, len(records))
		for name := range records {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			rec := records[name]
			fmt.Printf("%s\t%s\t%s\t%s\n", name, rec.ID, rec.OSName, rec.Version)
		}
		fmt.Printf("total matches: %d\n", total)
		return nil
	},
}

var readinessCmd = &cobra.Command{
	Use:   "readiness <name|hostname|displayName|id>",
	Short: "Check whether the server can reach an entity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		registry, err := buildRegistry(ctx)
		if err != nil {
			return err
		}

		rec, err := registry.Resolve(args[0])
		if err != nil {
			return err
		}

		transport, err := buildTransport(ctx)
		if err != nil {
			return err
		}
		probe := clients.NewReadinessProbe(transport, rec.ID)

		if flagMongoDB {
			ready, err := probe.IsMongoDBReady(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("mongodb ready: %t\n", ready)
			return nil
		}

		ready, err := probe.IsReady(ctx, clients.DefaultReadinessOptions())
		if err != nil {
			return err
		}
		fmt.Printf("ready: %t\nstatus: %s\n", ready, probe.Status())
		if probe.Reason() != "" {
			fmt.Printf("reason: %s\n", probe.Reason())
		}
		if probe.Detail() != "" {
			fmt.Printf("detail: %s\n", probe.Detail())
		}
		return nil
	},
}

func init() {
	listCmd.Flags().BoolVar(&flagHidden, "hidden", false, "list hidden entities instead of visible ones")
	listCmd.Flags().StringVar(&flagCategory, "category", "", "list one categorized partition (office365, virtualMachines, ...)")

	cacheCmd.Flags().StringSliceVar(&flagFields, "fl", nil, "columns to return")
	cacheCmd.Flags().StringVar(&flagSort, "sort", "", "sort as column:direction (1 ascending, -1 descending)")
	cacheCmd.Flags().StringArrayVar(&flagFilters, "fq", nil, "filter as column:condition:value (repeatable)")
	cacheCmd.Flags().StringVar(&flagSearch, "search", "", "free-text search term")
	cacheCmd.Flags().IntVar(&flagStart, "start", 0, "pagination offset")
	cacheCmd.Flags().IntVar(&flagLimit, "limit", 0, "pagination page size (0 disables pagination)")
	cacheCmd.Flags().BoolVar(&flagHardRefresh, "hard-refresh", false, "force the server to rebuild its cache")

	readinessCmd.Flags().BoolVar(&flagMongoDB, "mongodb", false, "check MongoDB application readiness")

	rootCmd.AddCommand(versionCmd, listCmd, getCmd, cacheCmd, readinessCmd)
}

func buildTransport(ctx context.Context) (api.Transport, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logging.Init(logging.Config{
		Format:    cfg.LogFormat,
		Level:     cfg.LogLevel,
		Component: "covectl",
	})

	transport, err := api.NewHTTPClient(api.ClientConfig{
		Host:        cfg.Host,
		Username:    cfg.Username,
		Password:    cfg.Password,
		Token:       cfg.Token,
		VerifySSL:   cfg.VerifySSL,
		Fingerprint: cfg.Fingerprint,
		Timeout:     cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	if err := transport.Login(ctx); err != nil {
		return nil, err
	}
	return transport, nil
}

func buildRegistry(ctx context.Context) (*clients.Registry, error) {
	transport, err := buildTransport(ctx)
	if err != nil {
		return nil, err
	}
	return clients.NewRegistry(ctx, transport)
}

func buildQueryRequest() (clients.QueryRequest, error) {
	req := clients.QueryRequest{
		Fields:      flagFields,
		Search:      flagSearch,
		HardRefresh: flagHardRefresh,
	}

	if flagSort != "" {
		parts := strings.SplitN(flagSort, ":", 2)
		if len(parts) != 2 {
			return req, fmt.Errorf("sort must be column:direction, got %q", flagSort)
		}
		req.Sort = &clients.Sort{Column: parts[0], Direction: parts[1]}
	}

	for _, raw := range flagFilters {
		parts := strings.SplitN(raw, ":", 3)
		if len(parts) < 2 {
			return req, fmt.Errorf("filter must be column:condition[:value], got %q", raw)
		}
		filter := clients.Filter{Column: parts[0], Condition: clients.FilterCondition(parts[1])}
		if len(parts) == 3 {
			filter.Value = parts[2]
		}
		req.Filters = append(req.Filters, filter)
	}

	if flagLimit > 0 {
		req.Page = &clients.Page{Start: flagStart, Limit: flagLimit}
	}

	return req, nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}
