// goterm is the terminology server command line: serve the operations
// over a configured registry, inspect a SNOMED container, build the
// optional free-text search index, or run one-shot lookups.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wardle/go-terminology/internal/config"
	"github.com/wardle/go-terminology/internal/logging"
	"github.com/wardle/go-terminology/internal/opcontext"
	"github.com/wardle/go-terminology/internal/providers/cpt"
	"github.com/wardle/go-terminology/internal/providers/loinc"
	"github.com/wardle/go-terminology/internal/providers/ndc"
	"github.com/wardle/go-terminology/internal/providers/omop"
	"github.com/wardle/go-terminology/internal/providers/rxnorm"
	"github.com/wardle/go-terminology/internal/providers/sct"
	"github.com/wardle/go-terminology/internal/providers/small"
	"github.com/wardle/go-terminology/internal/registry"
	"github.com/wardle/go-terminology/internal/snomedstore"
	"github.com/wardle/go-terminology/server"
)

func main() {
	root := &cobra.Command{
		Use:   "goterm",
		Short: "A terminology server for SNOMED CT, LOINC, RxNorm and friends",
	}
	root.AddCommand(serveCommand(), infoCommand(), indexCommand(), lookupCommand())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// buildRegistry assembles the provider registry from a configuration
// descriptor: the SNOMED containers, the relational stores keyed by
// system URI, the small built-in systems and any external packages.
func buildRegistry(cfg *config.RegistryConfig) (*registry.Registry, error) {
	reg := registry.New()
	for _, path := range cfg.SnomedContainers {
		f, err := sct.OpenFactory(path)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(f); err != nil {
			return nil, err
		}
	}
	for system, dsn := range cfg.Databases {
		var f registry.Factory
		var err error
		switch system {
		case loinc.SystemURI:
			f, err = loinc.OpenFactory(dsn)
		case rxnorm.SystemURI:
			f, err = rxnorm.OpenFactory(dsn)
		case cpt.SystemURI:
			f, err = cpt.OpenFactory(dsn)
		case ndc.SystemURI:
			f, err = ndc.OpenFactory(dsn)
		case omop.SystemURI:
			f, err = omop.OpenFactory(dsn)
		default:
			return nil, fmt.Errorf("no provider implementation for system %s", system)
		}
		if err != nil {
			return nil, err
		}
		if err := reg.Register(f); err != nil {
			return nil, err
		}
	}
	builtins := []registry.Factory{
		small.URIFactory{}, small.MIMEFactory{}, small.LanguageFactory{}, small.USStatesFactory{},
	}
	if cfg.HGVSEndpoint != "" {
		builtins = append(builtins, small.HGVSFactory{Endpoint: cfg.HGVSEndpoint})
	}
	for _, f := range builtins {
		if err := reg.Register(f); err != nil {
			return nil, err
		}
	}
	if err := reg.LoadExternal(cfg.ExternalPackages, opcontext.NewTranslator(nil)); err != nil {
		return nil, err
	}
	return reg, nil
}

func serveCommand() *cobra.Command {
	var configPath string
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the terminology operations over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			reg, err := buildRegistry(cfg)
			if err != nil {
				return err
			}
			defer reg.Close()
			return server.RunServer(reg, port)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "registry.json", "registry configuration path")
	cmd.Flags().IntVar(&port, "port", 8080, "port to listen on")
	return cmd
}

func infoCommand() *cobra.Command {
	var containerPath string
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Print the version and counts of a SNOMED container",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(containerPath)
			if err != nil {
				return err
			}
			defer f.Close()
			store, err := snomedstore.Load(f)
			if err != nil {
				return err
			}
			fmt.Printf("version:       %s\n", store.VersionURI)
			fmt.Printf("edition:       %s\n", store.Edition)
			fmt.Printf("release:       %s\n", store.Version)
			fmt.Printf("concepts:      %d\n", store.Concepts.Count())
			fmt.Printf("descriptions:  %d\n", store.Descriptions.Count())
			fmt.Printf("relationships: %d\n", store.Relationships.Count())
			fmt.Printf("refsets:       %d\n", store.RefsetIndex.Count())
			return nil
		},
	}
	cmd.Flags().StringVar(&containerPath, "snomed", "", "SNOMED container path")
	cmd.MarkFlagRequired("snomed")
	return cmd
}

func indexCommand() *cobra.Command {
	var containerPath, indexPath string
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the free-text search index for a SNOMED container",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(containerPath)
			if err != nil {
				return err
			}
			defer f.Close()
			store, err := snomedstore.Load(f)
			if err != nil {
				return err
			}
			idx, err := snomedstore.OpenSearchIndex(indexPath, false)
			if err != nil {
				return err
			}
			defer idx.Close()
			logging.Printf("indexing %d concepts from %s", store.Concepts.Count(), store.VersionURI)
			return idx.Build(snomedstore.NewService(store))
		},
	}
	cmd.Flags().StringVar(&containerPath, "snomed", "", "SNOMED container path")
	cmd.Flags().StringVar(&indexPath, "out", "goterm.bleve", "index output path")
	cmd.MarkFlagRequired("snomed")
	return cmd
}

func lookupCommand() *cobra.Command {
	var containerPath string
	cmd := &cobra.Command{
		Use:   "lookup [code or expression]",
		Short: "Look up a code against a SNOMED container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := sct.OpenFactory(containerPath)
			if err != nil {
				return err
			}
			ctx := opcontext.Background()
			p, err := f.Build(ctx, nil)
			if err != nil {
				return err
			}
			h, msg := p.Locate(args[0])
			if h == nil {
				return fmt.Errorf("%s", msg)
			}
			fmt.Printf("%s: %s\n", p.Code(h), p.Display(h, ctx))
			return nil
		},
	}
	cmd.Flags().StringVar(&containerPath, "snomed", "", "SNOMED container path")
	cmd.MarkFlagRequired("snomed")
	return cmd
}
