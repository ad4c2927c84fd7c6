package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Lumos-Labs-HQ/orgseed/internal/types"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var describeJSON bool

var describeCmd = &cobra.Command{
	Use:   "describe <entity>",
	Short: "Show the fields of an entity type",
	Long: `
Fetch the schema descriptor of one entity type from the configured remote and
print its fields with the attributes that drive value synthesis.

Examples:
  orgseed describe Account
  orgseed describe Contact --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openRemote(cfg)
		if err != nil {
			return err
		}

		schema, err := store.Describe(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to describe %s: %w", args[0], err)
		}

		if describeJSON {
			data, err := json.MarshalIndent(schema, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}

		printSchema(schema)
		return nil
	},
}

func printSchema(schema *types.SchemaDescriptor) {
	color.Cyan("📋 %s (%s), %d fields", schema.Name, schema.Label, len(schema.Fields))
	fmt.Println()
	fmt.Printf("  %-28s %-14s %-10s %s\n", "FIELD", "TYPE", "FLAGS", "DETAILS")

	for _, f := range schema.Fields {
		var flags []string
		if f.Required {
			flags = append(flags, "req")
		}
		if !f.Writable || f.Calculated || f.AutoNumber {
			flags = append(flags, "ro")
		}
		if f.Unique {
			flags = append(flags, "uniq")
		}

		var details []string
		if len(f.ReferenceTargets) > 0 {
			details = append(details, "→ "+strings.Join(f.ReferenceTargets, "|"))
		}
		if f.IsDependentPicklist {
			details = append(details, "controlled by "+f.ControllingFieldName)
		}
		if values := f.ActiveValues(); len(values) > 0 {
			details = append(details, fmt.Sprintf("%d values", len(values)))
		}
		if f.MaxLength > 0 {
			details = append(details, fmt.Sprintf("max %d", f.MaxLength))
		}

		fmt.Printf("  %-28s %-14s %-10s %s\n", f.Name, f.Type, strings.Join(flags, ","), strings.Join(details, "; "))
	}
}

func init() {
	rootCmd.AddCommand(describeCmd)
	describeCmd.Flags().BoolVar(&describeJSON, "json", false, "Print the descriptor as JSON")
}
