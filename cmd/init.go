package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/Lumos-Labs-HQ/orgseed/internal/config"
	"github.com/Lumos-Labs-HQ/orgseed/template"
	"github.com/spf13/cobra"
)

var (
	initState string
	initRest  bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new orgseed project",
	Long: `Create orgseed.config.json, a starter sandbox fixture and the directories
used for run logs and rule snapshots.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		remote := "sandbox"
		if initRest {
			remote = "rest"
		}
		return initializeProject(template.NewProjectTemplate(template.ValidateStateProvider(initState), remote))
	},
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringVar(&initState, "state", "file", "Rule snapshot store (file, sqlite, postgresql, mysql, redis, mongodb)")
	initCmd.Flags().BoolVar(&initRest, "rest", false, "Target a live org through the REST API instead of the sandbox")
}

func initializeProject(tmpl *template.ProjectTemplate) error {
	directories := tmpl.GetDirectoryStructure()
	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	configCreated := true
	if err := tmpl.GetConfig().Save(config.FileName); err != nil {
		if _, statErr := os.Stat(config.FileName); statErr != nil {
			return err
		}
		configCreated = false
	}

	fixturePath, fixture, err := tmpl.GetFixture()
	if err != nil {
		return err
	}
	fixtureCreated := false
	if fixturePath != "" {
		if _, err := os.Stat(fixturePath); os.IsNotExist(err) {
			if err := os.WriteFile(fixturePath, fixture, 0644); err != nil {
				return fmt.Errorf("failed to create file %s: %w", fixturePath, err)
			}
			fixtureCreated = true
		}
	}

	if env := tmpl.GetEnvTemplate(); env != "" {
		if err := handleEnvFile(env); err != nil {
			return fmt.Errorf("failed to handle .env file: %w", err)
		}
	}

	fmt.Printf("✅ Initialized orgseed project (%s remote, %s rule snapshots)\n", tmpl.Remote, tmpl.StateProvider)
	fmt.Println()
	fmt.Println("📁 Project structure created:")
	for _, dir := range directories {
		fmt.Printf("   %s/\n", dir)
	}
	fmt.Println()
	if configCreated {
		fmt.Println("📝 Configuration file created:")
		fmt.Printf("   %s\n", config.FileName)
	} else {
		fmt.Printf("ℹ️  Skipped %s (already exists)\n", config.FileName)
	}
	if fixtureCreated {
		fmt.Printf("📝 Sandbox fixture created: %s\n", fixturePath)
	}

	fmt.Println()
	fmt.Printf("🚀 Next steps:\n")
	fmt.Printf("   orgseed plan                   # Show the load order\n")
	fmt.Printf("   orgseed run                    # Generate and load records\n")
	fmt.Printf("   orgseed rules pending          # Check for rules left suspended\n")

	return nil
}

// handleEnvFile writes .env, or appends the variables an existing .env
// does not define yet.
func handleEnvFile(defaultEnvContent string) error {
	envPath := ".env"

	existingContent, err := os.ReadFile(envPath)
	if err != nil {
		if os.IsNotExist(err) {
			return os.WriteFile(envPath, []byte(defaultEnvContent), 0644)
		}
		return err
	}

	existingStr := string(existingContent)
	var missing []string
	for _, line := range strings.Split(strings.TrimSpace(defaultEnvContent), "\n") {
		key, _, _ := strings.Cut(line, "=")
		if !strings.Contains(existingStr, key+"=") {
			missing = append(missing, line)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	if len(existingStr) > 0 && !strings.HasSuffix(existingStr, "\n") {
		existingStr += "\n"
	}
	existingStr += "\n# Added by orgseed\n" + strings.Join(missing, "\n") + "\n"

	return os.WriteFile(envPath, []byte(existingStr), 0644)
}
