package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/yordyi/claude-flow-sub006/internal/config"
	"github.com/yordyi/claude-flow-sub006/internal/hive"
)

var version = "0.1.0"

var logo = "\n" +
	"  _   _ _           __  __ _           _\n" +
	" | | | (_)_   _____|  \\/  (_)_ __   __| |\n" +
	" | |_| | \\ \\ / / _ \\ |\\/| | | '_ \\ / _` |\n" +
	" |  _  | |\\ V /  __/ |  | | | | | | (_| |\n" +
	" |_| |_|_| \\_/ \\___|_|  |_|_|_| |_|\\__,_|\n"

var rootCmd = &cobra.Command{
	Use:   "hivemind",
	Short: "HiveMind - multi-agent swarm coordination",
	Long:  color.CyanString(logo) + "\nAgent registry, messaging, shared memory, consensus, and persistent sessions.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(memoryCmd)
}

// openHive loads config and builds a hive, exiting on failure.
func openHive() *hive.Hive {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config warning: %v (using defaults)\n", err)
		cfg = config.DefaultConfig()
	}
	h, err := hive.Open(cfg)
	if err != nil {
		printError(fmt.Sprintf("open hive: %v", err))
		os.Exit(1)
	}
	return h
}

func printHeader(title string) {
	fmt.Println(color.CyanString(logo))
	if title != "" {
		fmt.Println(title)
		fmt.Println("─────────────────────")
	}
}

func printSuccess(msg string) {
	fmt.Println(color.GreenString("✓ ") + msg)
}

func printError(msg string) {
	fmt.Println(color.RedString("✗ ") + msg)
}
