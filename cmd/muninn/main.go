// Package main provides the Muninn CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/orneryd/muninn/pkg/accel"
	"github.com/orneryd/muninn/pkg/config"
	"github.com/orneryd/muninn/pkg/muninn"
)

var (
	version   = "0.1.0"
	commit    = "dev"
	buildTime = "unknown" // Set via ldflags: -X main.buildTime=$(date +%Y%m%d-%H%M%S)
)

func getEnvStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// openDB loads configuration (file, env, flags) and opens the database.
// CLI runs are one-shot processes, so the snapshot always needs building;
// preload is forced on unless the command only writes.
func openDB(cmd *cobra.Command, preload bool) (*muninn.DB, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return nil, err
	}
	if dataDir, _ := cmd.Flags().GetString("data-dir"); dataDir != "" {
		cfg.Storage.DataDir = dataDir
	}
	if keyProp, _ := cmd.Flags().GetString("key-property"); keyProp != "" {
		cfg.Accel.KeyProperty = keyProp
	}
	if labels, _ := cmd.Flags().GetString("node-labels"); labels != "" {
		cfg.Accel.NodeLabels = strings.Split(labels, ",")
	}
	if types, _ := cmd.Flags().GetString("edge-types"); types != "" {
		cfg.Accel.EdgeTypes = strings.Split(types, ",")
	}
	cfg.Accel.Preload = preload
	return muninn.Open(cfg)
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "muninn",
		Short: "Muninn - Graph Acceleration Engine for Knowledge Graphs",
		Long: `Muninn pairs a transactional graph store with an in-memory
acceleration index for multi-hop traversal queries.

Features:
  • Badger-backed persistent graph storage
  • Epoch-based staleness detection, atomic snapshot replacement
  • BFS neighborhoods, bidirectional shortest paths
  • Subgraph extraction and degree ranking
  • Configurable label/type filters and external-key property`,
	}

	rootCmd.PersistentFlags().String("config", getEnvStr("MUNINN_CONFIG", ""), "Path to muninn.yaml")
	rootCmd.PersistentFlags().String("data-dir", "", "Data directory (overrides config)")
	rootCmd.PersistentFlags().String("key-property", "", "External key property (overrides config)")
	rootCmd.PersistentFlags().String("node-labels", "", "Comma-separated node label filter")
	rootCmd.PersistentFlags().String("edge-types", "", "Comma-separated edge type filter")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Muninn v%s (%s) built %s\n", version, commit, buildTime)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show snapshot status against the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd, true)
			if err != nil {
				return err
			}
			defer db.Close()
			fmt.Println(db.Status())
			return nil
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "load",
		Short: "Build a fresh acceleration snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd, false)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.Refresh(context.Background()); err != nil {
				return err
			}
			fmt.Println(db.Status())
			return nil
		},
	})

	importCmd := &cobra.Command{
		Use:   "import <file.jsonl>",
		Short: "Bulk-load nodes and edges from a JSONL export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd, false)
			if err != nil {
				return err
			}
			defer db.Close()
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			stats, err := db.ImportJSONL(context.Background(), f)
			if err != nil {
				return err
			}
			fmt.Printf("Imported %d nodes, %d edges\n", stats.Nodes, stats.Edges)
			return nil
		},
	}
	rootCmd.AddCommand(importCmd)

	neighborsCmd := &cobra.Command{
		Use:   "neighbors <key>",
		Short: "List direct neighbors of a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd, true)
			if err != nil {
				return err
			}
			defer db.Close()
			neighbors, err := db.NeighborsOf(context.Background(), args[0])
			if err != nil {
				return err
			}
			for _, n := range neighbors {
				fmt.Printf("%s\t%s\t%s\n", n.Key, n.Label, n.Relation)
			}
			return nil
		},
	}
	rootCmd.AddCommand(neighborsCmd)

	hoodCmd := &cobra.Command{
		Use:   "neighborhood <key>",
		Short: "BFS expansion from a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			depth, _ := cmd.Flags().GetInt("depth")
			dirStr, _ := cmd.Flags().GetString("direction")
			direction, err := accel.ParseDirection(dirStr)
			if err != nil {
				return err
			}
			db, err := openDB(cmd, true)
			if err != nil {
				return err
			}
			defer db.Close()
			hood, err := db.Neighborhood(context.Background(), args[0], depth, direction)
			if err != nil {
				return err
			}
			for _, entry := range hood {
				fmt.Printf("%d\t%s\t%s\t%s\n", entry.Distance, entry.Key, entry.Label,
					strings.Join(entry.PathTypes, "->"))
			}
			return nil
		},
	}
	hoodCmd.Flags().Int("depth", 2, "Maximum BFS depth (-1 = unbounded)")
	hoodCmd.Flags().String("direction", "both", "Traversal direction: out, in, both")
	rootCmd.AddCommand(hoodCmd)

	pathCmd := &cobra.Command{
		Use:   "path <from> <to>",
		Short: "Shortest path between two nodes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			maxHops, _ := cmd.Flags().GetInt("max-hops")
			db, err := openDB(cmd, true)
			if err != nil {
				return err
			}
			defer db.Close()
			path, err := db.ShortestPath(context.Background(), args[0], args[1], maxHops)
			if err != nil {
				return err
			}
			if path == nil {
				fmt.Println("no path")
				return nil
			}
			for i, entry := range path {
				if i == 0 {
					fmt.Printf("%s", entry.Key)
				} else {
					fmt.Printf(" -[%s]-> %s", entry.Relation, entry.Key)
				}
			}
			fmt.Println()
			return nil
		},
	}
	pathCmd.Flags().Int("max-hops", 10, "Maximum path length in hops (-1 = unbounded)")
	rootCmd.AddCommand(pathCmd)

	subgraphCmd := &cobra.Command{
		Use:   "subgraph <key>",
		Short: "Extract the component around a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			depth, _ := cmd.Flags().GetInt("depth")
			db, err := openDB(cmd, true)
			if err != nil {
				return err
			}
			defer db.Close()
			nodes, err := db.Subgraph(context.Background(), args[0], depth)
			if err != nil {
				return err
			}
			for _, n := range nodes {
				fmt.Printf("%d\t%s\t%s\n", n.ComponentID, n.Key, n.Label)
			}
			return nil
		},
	}
	subgraphCmd.Flags().Int("depth", 10, "Maximum depth (-1 = unbounded)")
	rootCmd.AddCommand(subgraphCmd)

	degreeCmd := &cobra.Command{
		Use:   "degree",
		Short: "Rank nodes by total degree",
		RunE: func(cmd *cobra.Command, args []string) error {
			topN, _ := cmd.Flags().GetInt("top")
			db, err := openDB(cmd, true)
			if err != nil {
				return err
			}
			defer db.Close()
			entries, err := db.Degree(context.Background(), topN)
			if err != nil {
				return err
			}
			fmt.Printf("KEY\tLABEL\tIN\tOUT\tTOTAL\n")
			for _, e := range entries {
				fmt.Printf("%s\t%s\t%d\t%d\t%d\n", e.Key, e.Label, e.InDegree, e.OutDegree, e.TotalDegree)
			}
			return nil
		},
	}
	degreeCmd.Flags().Int("top", 20, "Number of rows to return (0 = all)")
	rootCmd.AddCommand(degreeCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
