package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yordyi/claude-flow-sub006/internal/config"
	"github.com/yordyi/claude-flow-sub006/internal/session"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("🏷️ HiveMind Version")
		fmt.Printf("Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show hive status",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("📊 HiveMind Status")
		fmt.Printf("Version: %s\n", version)

		path, err := config.ConfigPath()
		if err == nil {
			if _, statErr := os.Stat(path); statErr == nil {
				fmt.Println("Config:  ✓ Found (" + path + ")")
			} else {
				fmt.Println("Config:  ✗ Not found (using defaults)")
			}
		}

		h := openHive()
		defer h.Close()

		active, _ := h.Sessions.ListSessions(session.StatusActive)
		paused, _ := h.Sessions.ListSessions(session.StatusPaused)
		fmt.Printf("Sessions: %d active, %d paused\n", len(active), len(paused))

		u := h.Registry.Usage()
		fmt.Printf("Pool:     %dMB / %dMB memory, %.2f / %.2f CPU\n",
			u.MemoryUsedMB, u.MemoryTotalMB, u.CPUUsed, u.CPUTotal)

		st := h.Memory.Stats()
		fmt.Printf("Memory:   %d entries, %.1f%% hit rate\n", st.Size, st.HitRate*100)
	},
}
