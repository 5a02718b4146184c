package cmd

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	sessionSwarmID   string
	sessionName      string
	sessionObjective string
	sessionStatus    string
	exportPath       string
	archiveDays      int
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage swarm sessions",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var sessionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new session",
	Run: func(cmd *cobra.Command, args []string) {
		h := openHive()
		defer h.Close()

		id, err := h.StartSession(sessionSwarmID, sessionName, sessionObjective)
		if err != nil {
			printError(fmt.Sprintf("create session: %v", err))
			os.Exit(1)
		}
		printSuccess("Session created: " + color.YellowString(id))
	},
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions",
	Run: func(cmd *cobra.Command, args []string) {
		h := openHive()
		defer h.Close()

		sessions, err := h.Sessions.ListSessions(sessionStatus)
		if err != nil {
			printError(fmt.Sprintf("list sessions: %v", err))
			os.Exit(1)
		}
		if len(sessions) == 0 {
			fmt.Println("No sessions found.")
			return
		}
		for _, s := range sessions {
			fmt.Printf("%s  %-10s  %5.1f%%  %s\n",
				color.YellowString(s.ID), s.Status, s.CompletionPercentage, s.Name)
		}
	},
}

var sessionPauseCmd = &cobra.Command{
	Use:   "pause <session-id>",
	Short: "Pause a session",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		h := openHive()
		defer h.Close()

		ok, err := h.Sessions.PauseSession(args[0])
		if err != nil {
			printError(fmt.Sprintf("pause: %v", err))
			os.Exit(1)
		}
		if !ok {
			printError("session not found: " + args[0])
			os.Exit(1)
		}
		printSuccess("Session paused: " + args[0])
	},
}

var sessionResumeCmd = &cobra.Command{
	Use:   "resume <session-id>",
	Short: "Resume a paused session, restoring agents and memory",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		h := openHive()
		defer h.Close()

		if err := h.Resume(args[0]); err != nil {
			printError(fmt.Sprintf("resume: %v", err))
			os.Exit(1)
		}
		st, _ := h.Status()
		printSuccess(fmt.Sprintf("Session resumed: %s (%d agents, %d memory entries)",
			args[0], st.Agents, st.Memory.Size))
	},
}

var sessionCompleteCmd = &cobra.Command{
	Use:   "complete <session-id>",
	Short: "Mark a session completed",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		h := openHive()
		defer h.Close()

		ok, err := h.Sessions.CompleteSession(args[0])
		if err != nil || !ok {
			printError(fmt.Sprintf("complete: %v", err))
			os.Exit(1)
		}
		printSuccess("Session completed: " + args[0])
	},
}

var sessionSummaryCmd = &cobra.Command{
	Use:   "summary <session-id>",
	Short: "Show a session summary",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		h := openHive()
		defer h.Close()

		sum, err := h.Sessions.GenerateSummary(args[0])
		if err != nil {
			printError(fmt.Sprintf("summary: %v", err))
			os.Exit(1)
		}
		printHeader("📋 Session Summary")
		fmt.Printf("Session:     %s\n", sum.SessionID)
		fmt.Printf("Name:        %s\n", sum.Name)
		fmt.Printf("Status:      %s\n", sum.Status)
		fmt.Printf("Objective:   %s\n", sum.Objective)
		fmt.Printf("Progress:    %.1f%%\n", sum.Progress)
		fmt.Printf("Duration:    %s\n", sum.Duration.Round(time.Second))
		fmt.Printf("Checkpoints: %d\n", sum.CheckpointCount)
		for level, n := range sum.EventsByLevel {
			fmt.Printf("Events[%s]: %d\n", level, n)
		}
	},
}

var sessionExportCmd = &cobra.Command{
	Use:   "export <session-id>",
	Short: "Export a session to a JSON file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		h := openHive()
		defer h.Close()

		path, err := h.Sessions.ExportSession(args[0], exportPath)
		if err != nil {
			printError(fmt.Sprintf("export: %v", err))
			os.Exit(1)
		}
		printSuccess("Exported to " + path)
	},
}

var sessionImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a session from an export file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		h := openHive()
		defer h.Close()

		id, err := h.Sessions.ImportSession(args[0])
		if err != nil {
			printError(fmt.Sprintf("import: %v", err))
			os.Exit(1)
		}
		printSuccess("Imported as " + color.YellowString(id))
	},
}

var sessionArchiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Archive old completed sessions",
	Run: func(cmd *cobra.Command, args []string) {
		h := openHive()
		defer h.Close()

		n, err := h.Sessions.ArchiveSessions(archiveDays)
		if err != nil {
			printError(fmt.Sprintf("archive: %v", err))
			os.Exit(1)
		}
		printSuccess("Archived " + strconv.Itoa(n) + " session(s)")
	},
}

func init() {
	sessionCreateCmd.Flags().StringVar(&sessionSwarmID, "swarm", "default", "Swarm ID")
	sessionCreateCmd.Flags().StringVarP(&sessionName, "name", "n", "", "Session name")
	sessionCreateCmd.Flags().StringVarP(&sessionObjective, "objective", "o", "", "Session objective")
	sessionListCmd.Flags().StringVar(&sessionStatus, "status", "", "Filter by status (active|paused|completed)")
	sessionExportCmd.Flags().StringVar(&exportPath, "out", "", "Output file path")
	sessionArchiveCmd.Flags().IntVar(&archiveDays, "older-than", 30, "Archive completed sessions older than this many days")

	sessionCmd.AddCommand(sessionCreateCmd)
	sessionCmd.AddCommand(sessionListCmd)
	sessionCmd.AddCommand(sessionPauseCmd)
	sessionCmd.AddCommand(sessionResumeCmd)
	sessionCmd.AddCommand(sessionCompleteCmd)
	sessionCmd.AddCommand(sessionSummaryCmd)
	sessionCmd.AddCommand(sessionExportCmd)
	sessionCmd.AddCommand(sessionImportCmd)
	sessionCmd.AddCommand(sessionArchiveCmd)
}
