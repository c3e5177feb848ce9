package main

import (
	goflag "flag"
	"fmt"
	"os"
	"strings"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aleksaelezovic/tetra/internal/rdfio"
	"github.com/aleksaelezovic/tetra/internal/store"
	"github.com/aleksaelezovic/tetra/pkg/rdf"
)

var cfgFile string

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		glog.Error(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tetra",
		Short: "Embedded RDF dataset store",
		Long:  "Tetra is an embedded, on-disk RDF dataset store with pattern retrieval,\ntransactional mutation and N-Quads bulk ingest/emit.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ./tetra.yaml)")
	pf.String("db", "", "database directory (empty for in-memory)")
	pf.AddGoFlagSet(goflag.CommandLine)
	if err := viper.BindPFlag("db.path", pf.Lookup("db")); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(
		newLoadCmd(),
		newDumpCmd(),
		newQueryCmd(),
		newGraphsCmd(),
		newStatsCmd(),
		newValidateCmd(),
	)
	return rootCmd
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("tetra")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}
	viper.SetDefault("db.path", "./tetra_data")
	viper.SetEnvPrefix("tetra")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	} else {
		glog.V(1).Infof("using config file %s", viper.ConfigFileUsed())
	}
	return nil
}

func openStore() (*store.QuadStore, error) {
	path := viper.GetString("db.path")
	glog.V(1).Infof("opening store at %q", path)
	return store.Open(path)
}

func newLoadCmd() *cobra.Command {
	var format, graph string
	cmd := &cobra.Command{
		Use:   "load [file]",
		Short: "Load an RDF document (stdin when no file is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := os.Stdin
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				input = f
			}

			parser, err := rdf.NewParser(format)
			if err != nil {
				return err
			}

			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			var n int
			if graph != "" {
				g, err := rdf.ParseTerm(graph)
				if err != nil {
					return fmt.Errorf("invalid --graph: %w", err)
				}
				n, err = rdfio.LoadGraph(s, parser, input, g)
				if err != nil {
					return err
				}
			} else {
				n, err = rdfio.LoadDataset(s, parser, input)
				if err != nil {
					return err
				}
			}
			fmt.Printf("loaded %d new quads\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "application/n-quads", "input content type")
	cmd.Flags().StringVar(&graph, "graph", "", "target graph (N-Quads term syntax); input graph names are discarded")
	return cmd
}

func newDumpCmd() *cobra.Command {
	var graph string
	var defaultGraph bool
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Write the store to stdout as N-Quads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			if defaultGraph {
				return rdfio.DumpGraph(s, os.Stdout, rdf.NewDefaultGraph())
			}
			if graph != "" {
				g, err := rdf.ParseTerm(graph)
				if err != nil {
					return fmt.Errorf("invalid --graph: %w", err)
				}
				return rdfio.DumpGraph(s, os.Stdout, g)
			}
			return rdfio.DumpDataset(s, os.Stdout)
		},
	}
	cmd.Flags().StringVar(&graph, "graph", "", "dump only this graph, as N-Triples")
	cmd.Flags().BoolVar(&defaultGraph, "default", false, "dump only the default graph, as N-Triples")
	return cmd
}

func newQueryCmd() *cobra.Command {
	var subject, predicate, object, graph string
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Match a quad pattern and print the results as N-Quads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			parse := func(flag, value string) (rdf.Term, error) {
				if value == "" {
					return nil, nil
				}
				if flag == "graph" && value == "default" {
					return rdf.NewDefaultGraph(), nil
				}
				term, err := rdf.ParseTerm(value)
				if err != nil {
					return nil, fmt.Errorf("invalid --%s: %w", flag, err)
				}
				return term, nil
			}

			s, err := parse("subject", subject)
			if err != nil {
				return err
			}
			p, err := parse("predicate", predicate)
			if err != nil {
				return err
			}
			o, err := parse("object", object)
			if err != nil {
				return err
			}
			g, err := parse("graph", graph)
			if err != nil {
				return err
			}

			qs, err := openStore()
			if err != nil {
				return err
			}
			defer qs.Close()

			it, err := qs.QuadsForPattern(s, p, o, g)
			if err != nil {
				return err
			}
			defer it.Close()

			count := 0
			for it.Next() {
				fmt.Println(rdf.SerializeQuad(it.Quad()))
				count++
			}
			if err := it.Err(); err != nil {
				return err
			}
			glog.V(1).Infof("%d matches", count)
			return nil
		},
	}
	cmd.Flags().StringVarP(&subject, "subject", "s", "", "subject term (empty for wildcard)")
	cmd.Flags().StringVarP(&predicate, "predicate", "p", "", "predicate term (empty for wildcard)")
	cmd.Flags().StringVarP(&object, "object", "o", "", "object term (empty for wildcard)")
	cmd.Flags().StringVarP(&graph, "graph", "g", "", "graph term, or \"default\" (empty for wildcard)")
	return cmd
}

func newGraphsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "graphs",
		Short: "List the registered named graphs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			graphs, err := s.NamedGraphs()
			if err != nil {
				return err
			}
			for _, g := range graphs {
				fmt.Println(rdf.SerializeTerm(g))
			}
			return nil
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print store statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := s.Len()
			if err != nil {
				return err
			}
			graphs, err := s.NamedGraphs()
			if err != nil {
				return err
			}
			fmt.Printf("quads: %d\nnamed graphs: %d\n", n, len(graphs))
			return nil
		},
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Run the storage integrity self-check",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Validate(); err != nil {
				return err
			}
			fmt.Println("ok")
			return nil
		},
	}
}
