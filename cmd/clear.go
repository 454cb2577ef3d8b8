package cmd

import (
	"github.com/spf13/cobra"

	"github.com/webmip/postbank/internal/format"
)

func init() {
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all collections, history, saved requests, environments and cookies",
		Run:   runClearAll,
	}
	clearCmd.Flags().Bool("yes", false, "Confirm deletion")

	rootCmd.AddCommand(clearCmd)
}

func runClearAll(cmd *cobra.Command, args []string) {
	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		exitWithError("This deletes all stored data. Re-run with --yes to confirm.")
	}

	a := openApp(cmd)
	defer a.Close()

	if err := a.store.ClearAllData(); err != nil {
		exitWithError("Failed to clear data: " + err.Error())
	}
	format.PrintSuccess("All data cleared")
}
