package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/yordyi/claude-flow-sub006/internal/memory"
)

var (
	memType string
	memTTL  time.Duration
	memTags []string
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect and edit shared memory",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var memorySetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a value (JSON values are parsed, otherwise stored as string)",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		h := openHive()
		defer h.Close()

		var value any = args[1]
		var parsed any
		if err := json.Unmarshal([]byte(args[1]), &parsed); err == nil {
			value = parsed
		}
		h.Memory.Set(args[0], value, &memory.SetOptions{
			Type: memType,
			TTL:  memTTL,
			Tags: memTags,
		})
		printSuccess("Stored " + color.YellowString(args[0]))
	},
}

var memoryGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Read a value",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		h := openHive()
		defer h.Close()

		v, ok := h.Memory.Get(args[0])
		if !ok {
			printError("key not found: " + args[0])
			os.Exit(1)
		}
		out, _ := json.MarshalIndent(v, "", "  ")
		fmt.Println(string(out))
	},
}

var memoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List entries",
	Run: func(cmd *cobra.Command, args []string) {
		h := openHive()
		defer h.Close()

		entries := h.Memory.List(memory.ListFilter{Type: memType, Tags: memTags}, memory.SortByUpdated)
		if len(entries) == 0 {
			fmt.Println("Memory is empty.")
			return
		}
		for _, e := range entries {
			fmt.Printf("%s  %-10s  accessed=%d  updated=%s\n",
				color.YellowString(e.Key), e.Type, e.AccessCount, e.UpdatedAt.Format(time.RFC3339))
		}
	},
}

var memoryStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store statistics",
	Run: func(cmd *cobra.Command, args []string) {
		h := openHive()
		defer h.Close()

		st := h.Memory.Stats()
		printHeader("🧠 Memory Stats")
		fmt.Printf("Entries:     %d\n", st.Size)
		fmt.Printf("Hits:        %d\n", st.Hits)
		fmt.Printf("Misses:      %d\n", st.Misses)
		fmt.Printf("Hit rate:    %.1f%%\n", st.HitRate*100)
		fmt.Printf("Evictions:   %d\n", st.Evictions)
		fmt.Printf("Expirations: %d\n", st.Expirations)
	},
}

func init() {
	memorySetCmd.Flags().StringVar(&memType, "type", "", "Entry type")
	memorySetCmd.Flags().DurationVar(&memTTL, "ttl", 0, "Time to live (0 = no expiry)")
	memorySetCmd.Flags().StringSliceVar(&memTags, "tag", nil, "Tags (repeatable)")
	memoryListCmd.Flags().StringVar(&memType, "type", "", "Filter by entry type")

	memoryCmd.AddCommand(memorySetCmd)
	memoryCmd.AddCommand(memoryGetCmd)
	memoryCmd.AddCommand(memoryListCmd)
	memoryCmd.AddCommand(memoryStatsCmd)
}
