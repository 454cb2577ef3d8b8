package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/webmip/postbank/internal/format"
	"github.com/webmip/postbank/internal/model"
)

func init() {
	savedCmd := &cobra.Command{
		Use:   "saved",
		Short: "Manage saved requests",
		Long: `Manage saved requests.

Requests are saved with --save on any request command and sent again with
'postbank send <name>'.`,
		Run: runSavedList,
	}

	showCmd := &cobra.Command{
		Use:   "show <saved request>",
		Short: "Show a saved request",
		Args:  cobra.ExactArgs(1),
		Run:   runSavedShow,
	}
	showCmd.Flags().BoolVar(&revealSecrets, "reveal", false, "Show sensitive header values")

	deleteCmd := &cobra.Command{
		Use:   "delete <saved request>",
		Short: "Delete a saved request",
		Args:  cobra.ExactArgs(1),
		Run:   runSavedDelete,
	}

	savedCmd.AddCommand(showCmd, deleteCmd)
	rootCmd.AddCommand(savedCmd)
}

func findSaved(a *app, ref string) model.SavedRequest {
	saved, ok := a.store.FindSavedRequest(ref)
	if !ok {
		exitWithError(fmt.Sprintf("Saved request not found: %s", ref))
	}
	return saved
}

func runSavedList(cmd *cobra.Command, args []string) {
	a := openApp(cmd)
	defer a.Close()

	format.PrintSavedList(a.store.SavedRequests())
}

func runSavedShow(cmd *cobra.Command, args []string) {
	a := openApp(cmd)
	defer a.Close()

	format.PrintSavedRequest(findSaved(a, args[0]), revealSecrets)
}

func runSavedDelete(cmd *cobra.Command, args []string) {
	a := openApp(cmd)
	defer a.Close()

	saved := findSaved(a, args[0])
	if _, err := a.store.DeleteSavedRequest(saved.ID); err != nil {
		exitWithError(fmt.Sprintf("Failed to delete saved request: %v", err))
	}

	format.PrintSuccess(fmt.Sprintf("Saved request '%s' deleted", saved.Name))
}
