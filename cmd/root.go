package cmd

import (
	"fmt"
	"os"

	"github.com/Lumos-Labs-HQ/orgseed/internal/config"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	Version = "0.4.0"
)

func showBanner() {
	greenColor := color.New(color.FgGreen, color.Bold)

	banner := []string{
		"╔══════════════════════════════════════════════════════════════╗",
		"║                                                              ║",
		"║       ___  _ __ __ _ ___  ___  ___  __| |                    ║",
		"║      / _ \\| '__/ _` / __|/ _ \\/ _ \\/ _` |                    ║",
		"║     | (_) | | | (_| \\__ \\  __/  __/ (_| |                    ║",
		"║      \\___/|_|  \\__, |___/\\___|\\___|\\__,_|                    ║",
		"║                |___/                                         ║",
		"║                                                              ║",
		"║      🌱 Dependency-ordered test data for your org 🌱         ║",
		"║                                                              ║",
		"╚══════════════════════════════════════════════════════════════╝",
	}

	for _, line := range banner {
		greenColor.Println(line)
	}

	fmt.Print("                        ")
	color.New(color.FgCyan, color.Bold).Print("Version: ")
	color.New(color.FgYellow, color.Bold).Printf("%s\n", Version)
}

var rootCmd = &cobra.Command{
	Use:   "orgseed",
	Short: "Generate and load synthetic records in dependency order",
	Long: `
orgseed describes the entity types of a business-object platform, orders them
so referenced records exist before the records that point at them, fills every
writable field with plausible values and loads the result in batches.

Validation rules that would reject synthetic data can be switched off for the
duration of a run. They are always switched back on afterwards, and a run that
died half way can be repaired with 'orgseed rules restore'.

Remote stores:
- sandbox (in-process org backed by YAML fixtures)
- rest (REST data and tooling API)

Rule snapshot stores:
- file, memory, sqlite, postgresql, mysql, redis, mongodb`,

	Run: func(cmd *cobra.Command, args []string) {
		showVersion, _ := cmd.Flags().GetBool("version")
		if showVersion {
			fmt.Printf("orgseed version %s\n", Version)
			os.Exit(0)
		}

		if len(args) == 0 {
			showBanner()
			fmt.Println()
			cmd.Help()
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./"+config.FileName+")")
	rootCmd.Flags().BoolP("version", "v", false, "Show CLI version")
}

func initConfig() {
	if err := godotenv.Load(); err != nil {
		godotenv.Load(".env")
		godotenv.Load(".env.local")
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("json")
		viper.SetConfigName("orgseed.config")
	}

	viper.AutomaticEnv()

	// A missing config file falls back to defaults.
	_ = viper.ReadInConfig()
}
