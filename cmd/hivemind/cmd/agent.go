package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/yordyi/claude-flow-sub006/internal/agent"
)

var (
	agentName   string
	agentFilter string
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Manage swarm agents",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var agentSpawnCmd = &cobra.Command{
	Use:   "spawn <type>",
	Short: "Spawn an agent (" + strings.Join(typeNames(), "|") + ")",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		h := openHive()
		defer h.Close()

		a, err := h.Registry.Spawn(agent.Type(args[0]), agentName, nil)
		if err != nil {
			printError(fmt.Sprintf("spawn: %v", err))
			os.Exit(1)
		}
		printSuccess(fmt.Sprintf("Spawned %s %q (%s, %dMB / %.2f CPU)",
			a.Type, a.Name, color.YellowString(a.ID), a.Cost.MemoryMB, a.Cost.CPU))
	},
}

var agentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered agents",
	Run: func(cmd *cobra.Command, args []string) {
		h := openHive()
		defer h.Close()

		agents := h.Registry.List(agent.Filter{Type: agent.Type(agentFilter)})
		if len(agents) == 0 {
			fmt.Println("No agents registered.")
			return
		}
		for _, a := range agents {
			fmt.Printf("%s  %-12s  %-12s  tasks=%d  success=%.0f%%\n",
				color.YellowString(a.ID), a.Type, a.Status, a.TaskCount, a.SuccessRate*100)
		}
		u := h.Registry.Usage()
		fmt.Printf("\nPool: %dMB / %dMB memory, %.2f / %.2f CPU\n",
			u.MemoryUsedMB, u.MemoryTotalMB, u.CPUUsed, u.CPUTotal)
	},
}

func typeNames() []string {
	types := agent.ValidTypes()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return names
}

func init() {
	agentSpawnCmd.Flags().StringVarP(&agentName, "name", "n", "", "Agent name")
	agentListCmd.Flags().StringVar(&agentFilter, "type", "", "Filter by agent type")

	agentCmd.AddCommand(agentSpawnCmd)
	agentCmd.AddCommand(agentListCmd)
}
