package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Lumos-Labs-HQ/orgseed/internal/graph"
	"github.com/Lumos-Labs-HQ/orgseed/internal/logger"
	"github.com/Lumos-Labs-HQ/orgseed/internal/seeder"
	"github.com/Lumos-Labs-HQ/orgseed/internal/types"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var planJSON bool

var planCmd = &cobra.Command{
	Use:   "plan [entity...]",
	Short: "Show the dependency-ordered load sequence",
	Long: `
Describe the selected entity types and print the order they would be loaded
in. Without arguments the enabled entities of the config are used.

Examples:
  orgseed plan
  orgseed plan Opportunity Contact Account
  orgseed plan --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openRemote(cfg)
		if err != nil {
			return err
		}

		counts := make(map[string]int, len(args))
		for _, name := range args {
			counts[name] = 0
		}
		configs := cfg.GenerationConfigs(counts)

		var names []string
		for _, c := range configs {
			if c.Enabled {
				names = append(names, c.EntityType)
			}
		}
		if len(names) == 0 {
			return fmt.Errorf("no entity types selected")
		}

		log := logger.Logger(logger.Console{})
		if planJSON {
			log = logger.Discard{}
		}
		schemas, err := seeder.DescribeAll(cmd.Context(), store, names, log)
		if err != nil {
			return err
		}

		var described []string
		for _, name := range names {
			if _, ok := schemas[name]; ok {
				described = append(described, name)
			}
		}
		byName := make(map[string]types.GenerationConfig, len(configs))
		for _, c := range configs {
			byName[c.EntityType] = c
		}

		g := graph.Build(described, schemas)
		seq := graph.Sort(g, byName)

		if planJSON {
			data, err := json.MarshalIndent(seq, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}

		printPlan(g, seq, byName)
		return nil
	},
}

func printPlan(g *graph.DependencyGraph, seq graph.Sequence, configs map[string]types.GenerationConfig) {
	color.Cyan("📋 Load sequence (%d passes)", seq.Passes)
	fmt.Println()

	position := 1
	for i, batch := range seq.Batches {
		fmt.Printf("  Batch %d\n", i+1)
		for _, name := range batch {
			deps := g.DependsOn(name)
			line := fmt.Sprintf("    %2d. %-28s %6d records", position, name, configs[name].TargetRecordCount)
			if len(deps) > 0 {
				line += "  ← " + strings.Join(deps, ", ")
			}
			fmt.Println(line)
			position++
		}
	}

	if len(seq.Cyclic) > 0 {
		fmt.Println()
		color.Yellow("⚠️  Reference cycle between %s", strings.Join(seq.Cyclic, ", "))
	}
	if len(seq.Deferred) > 0 {
		fmt.Println()
		color.Yellow("⚠️  References left unset until their target has records:")
		for _, e := range seq.Deferred {
			fmt.Printf("    %s.%s → %s\n", e.From, e.Field, e.To)
		}
	}
}

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.Flags().BoolVar(&planJSON, "json", false, "Print the sequence as JSON")
}
