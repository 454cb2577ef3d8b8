package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/webmip/postbank/internal/format"
	"github.com/webmip/postbank/internal/model"
)

func init() {
	prefsCmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show or change preferences",
		Run:   runPrefsShow,
	}

	setCmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change a preference",
		Long: `Change a preference.

Keys:
  enrichLogWithIP  true|false  Record this machine's public IP in the request log`,
		Args: cobra.ExactArgs(2),
		Run:  runPrefsSet,
	}

	prefsCmd.AddCommand(setCmd)
	rootCmd.AddCommand(prefsCmd)
}

func runPrefsShow(cmd *cobra.Command, args []string) {
	a := openApp(cmd)
	defer a.Close()

	format.PrintPreferences(a.store.Preferences())
}

func runPrefsSet(cmd *cobra.Command, args []string) {
	var patch model.PreferencesPatch
	switch args[0] {
	case "enrichLogWithIP", "enrich-log-with-ip":
		v, err := strconv.ParseBool(args[1])
		if err != nil {
			exitWithError(fmt.Sprintf("Invalid value %q (want true or false)", args[1]))
		}
		patch.EnrichLogWithIP = &v
	default:
		exitWithError(fmt.Sprintf("Unknown preference: %s", args[0]))
	}

	a := openApp(cmd)
	defer a.Close()

	prefs, err := a.store.UpdatePreferences(patch)
	if err != nil {
		exitWithError(fmt.Sprintf("Failed to save preferences: %v", err))
	}
	format.PrintPreferences(prefs)
}
