package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/webmip/postbank/internal/format"
	"github.com/webmip/postbank/internal/harexport"
	"github.com/webmip/postbank/internal/model"
)

var (
	revealSecrets bool
	harPath       string
)

func init() {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "View request history",
		Run:   runHistoryList,
	}

	historyCmd.Flags().IntP("limit", "n", 10, "Number of requests to show")

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show full details of a request",
		Args:  cobra.ExactArgs(1),
		Run:   runHistoryShow,
	}
	showCmd.Flags().BoolVar(&revealSecrets, "reveal", false, "Show sensitive header values")

	replayCmd := &cobra.Command{
		Use:   "replay <id>",
		Short: "Send a request from history again",
		Args:  cobra.ExactArgs(1),
		Run:   runHistoryReplay,
	}
	replayCmd.Flags().BoolVar(&noHistory, "no-history", false, "Don't save to history")
	replayCmd.Flags().BoolVar(&showLog, "show-log", false, "Print the outgoing request log")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear all history",
		Run:   runHistoryClear,
	}

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export history as a HAR 1.2 archive",
		Run:   runHistoryExport,
	}
	exportCmd.Flags().StringVarP(&harPath, "output", "o", "", "Write to file instead of stdout")

	historyCmd.AddCommand(showCmd, replayCmd, clearCmd, exportCmd)
	rootCmd.AddCommand(historyCmd)
}

func findHistoryEntry(a *app, ref string) model.HistoryEntry {
	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		exitWithError(fmt.Sprintf("Invalid history ID: %s", ref))
	}
	entry, ok := a.store.HistoryEntry(id)
	if !ok {
		exitWithError(fmt.Sprintf("Request not found: %s", ref))
	}
	return entry
}

func runHistoryList(cmd *cobra.Command, args []string) {
	a := openApp(cmd)
	defer a.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	format.PrintHistoryList(a.store.History(), limit)
}

func runHistoryShow(cmd *cobra.Command, args []string) {
	a := openApp(cmd)
	defer a.Close()

	format.PrintHistoryDetail(findHistoryEntry(a, args[0]), revealSecrets)
}

func runHistoryReplay(cmd *cobra.Command, args []string) {
	a := openApp(cmd)
	defer a.Close()

	send(cmd, a, findHistoryEntry(a, args[0]).Request)
}

func runHistoryClear(cmd *cobra.Command, args []string) {
	a := openApp(cmd)
	defer a.Close()

	if err := a.store.ClearHistory(); err != nil {
		exitWithError(fmt.Sprintf("Failed to clear history: %v", err))
	}

	format.PrintSuccess("History cleared")
}

func runHistoryExport(cmd *cobra.Command, args []string) {
	a := openApp(cmd)
	defer a.Close()

	history := a.store.History()

	if harPath == "" {
		if err := harexport.Write(os.Stdout, history, version); err != nil {
			exitWithError(fmt.Sprintf("Export failed: %v", err))
		}
		return
	}

	f, err := os.OpenFile(harPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		exitWithError(fmt.Sprintf("Failed to create file: %v", err))
	}
	if err := harexport.Write(f, history, version); err != nil {
		f.Close()
		exitWithError(fmt.Sprintf("Export failed: %v", err))
	}
	if err := f.Close(); err != nil {
		exitWithError(fmt.Sprintf("Failed to write file: %v", err))
	}
	format.PrintSuccess(fmt.Sprintf("Exported %d requests to %s", len(history), harPath))
}
