package cmd

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/webmip/postbank/internal/format"
	"github.com/webmip/postbank/internal/model"
	"github.com/webmip/postbank/internal/resolver"
)

var envUseNone bool

func init() {
	envCmd := &cobra.Command{
		Use:     "env",
		Aliases: []string{"environment"},
		Short:   "Manage environments and {{variables}}",
		Long: `Manage environments.

The active environment supplies values for {{name}} tokens in request URLs,
header values, bodies and auth fields.

Example:
  postbank env create dev base=https://api.example.com token=abc
  postbank env use dev
  postbank get '{{base}}/users' --bearer '{{token}}'`,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List environments",
		Run:   runEnvList,
	}

	createCmd := &cobra.Command{
		Use:   "create <name> [key=value...]",
		Short: "Create an environment",
		Args:  cobra.MinimumNArgs(1),
		Run:   runEnvCreate,
	}

	showCmd := &cobra.Command{
		Use:   "show [environment]",
		Short: "Show an environment (default: the active one)",
		Args:  cobra.MaximumNArgs(1),
		Run:   runEnvShow,
	}

	setCmd := &cobra.Command{
		Use:   "set <environment> key=value...",
		Short: "Add or replace variables",
		Args:  cobra.MinimumNArgs(2),
		Run:   runEnvSet,
	}

	unsetCmd := &cobra.Command{
		Use:   "unset <environment> key...",
		Short: "Remove variables",
		Args:  cobra.MinimumNArgs(2),
		Run:   runEnvUnset,
	}

	enableCmd := &cobra.Command{
		Use:   "enable <environment> key...",
		Short: "Enable variables",
		Args:  cobra.MinimumNArgs(2),
		Run:   runEnvToggle(true),
	}

	disableCmd := &cobra.Command{
		Use:   "disable <environment> key...",
		Short: "Disable variables without removing them",
		Args:  cobra.MinimumNArgs(2),
		Run:   runEnvToggle(false),
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <environment>",
		Short: "Delete an environment",
		Args:  cobra.ExactArgs(1),
		Run:   runEnvDelete,
	}

	useCmd := &cobra.Command{
		Use:   "use [environment]",
		Short: "Set the active environment",
		Args:  cobra.MaximumNArgs(1),
		Run:   runEnvUse,
	}
	useCmd.Flags().BoolVar(&envUseNone, "none", false, "Deactivate the current environment")

	resolveCmd := &cobra.Command{
		Use:   "resolve <text>",
		Short: "Substitute {{variables}} in text using the active environment",
		Args:  cobra.ExactArgs(1),
		Run:   runEnvResolve,
	}

	envCmd.AddCommand(listCmd, createCmd, showCmd, setCmd, unsetCmd, enableCmd, disableCmd, deleteCmd, useCmd, resolveCmd)
	rootCmd.AddCommand(envCmd)
}

// parseAssignments turns key=value arguments into enabled variables.
func parseAssignments(args []string) ([]model.Variable, error) {
	vars := make([]model.Variable, 0, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid variable %q (want key=value)", arg)
		}
		vars = append(vars, model.Variable{Key: key, Value: value, Enabled: true})
	}
	return vars, nil
}

// setVariables replaces variables with matching keys in place and appends
// the rest, keeping order.
func setVariables(existing, updates []model.Variable) []model.Variable {
	out := append([]model.Variable{}, existing...)
	for _, u := range updates {
		replaced := false
		for i := range out {
			if out[i].Key == u.Key {
				out[i] = u
				replaced = true
			}
		}
		if !replaced {
			out = append(out, u)
		}
	}
	return out
}

func findEnvironment(a *app, ref string) model.Environment {
	env, ok := a.store.FindEnvironment(ref)
	if !ok {
		exitWithError(fmt.Sprintf("Environment '%s' not found", ref))
	}
	return env
}

func saveEnvironment(a *app, env model.Environment, msg string) {
	if _, err := a.store.SaveEnvironment(env); err != nil {
		exitWithError(fmt.Sprintf("Failed to save environment: %v", err))
	}
	format.PrintSuccess(msg)
}

func runEnvList(cmd *cobra.Command, args []string) {
	a := openApp(cmd)
	defer a.Close()

	activeID := ""
	if env := a.store.ActiveEnvironment(); env != nil {
		activeID = env.ID
	}
	format.PrintEnvironmentList(a.store.Environments(), activeID)
}

func runEnvCreate(cmd *cobra.Command, args []string) {
	vars, err := parseAssignments(args[1:])
	if err != nil {
		exitWithError(err.Error())
	}

	a := openApp(cmd)
	defer a.Close()

	env := model.Environment{ID: uuid.New().String(), Name: args[0], Variables: setVariables(nil, vars)}
	saveEnvironment(a, env, fmt.Sprintf("Environment '%s' created (%s)", env.Name, env.ID))
}

func runEnvShow(cmd *cobra.Command, args []string) {
	a := openApp(cmd)
	defer a.Close()

	active := a.store.ActiveEnvironment()
	if len(args) == 0 {
		if active == nil {
			exitWithError("No active environment")
		}
		format.PrintEnvironment(*active, true)
		return
	}

	env := findEnvironment(a, args[0])
	format.PrintEnvironment(env, active != nil && active.ID == env.ID)
}

func runEnvSet(cmd *cobra.Command, args []string) {
	vars, err := parseAssignments(args[1:])
	if err != nil {
		exitWithError(err.Error())
	}

	a := openApp(cmd)
	defer a.Close()

	env := findEnvironment(a, args[0])
	env.Variables = setVariables(env.Variables, vars)
	saveEnvironment(a, env, fmt.Sprintf("Updated %d variables in '%s'", len(vars), env.Name))
}

func runEnvUnset(cmd *cobra.Command, args []string) {
	a := openApp(cmd)
	defer a.Close()

	env := findEnvironment(a, args[0])
	remove := make(map[string]bool, len(args)-1)
	for _, k := range args[1:] {
		remove[k] = true
	}

	kept := make([]model.Variable, 0, len(env.Variables))
	for _, v := range env.Variables {
		if !remove[v.Key] {
			kept = append(kept, v)
		}
	}
	removed := len(env.Variables) - len(kept)
	env.Variables = kept
	saveEnvironment(a, env, fmt.Sprintf("Removed %d variables from '%s'", removed, env.Name))
}

func runEnvToggle(enabled bool) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		a := openApp(cmd)
		defer a.Close()

		env := findEnvironment(a, args[0])
		keys := make(map[string]bool, len(args)-1)
		for _, k := range args[1:] {
			keys[k] = true
		}

		changed := 0
		for i := range env.Variables {
			if keys[env.Variables[i].Key] && env.Variables[i].Enabled != enabled {
				env.Variables[i].Enabled = enabled
				changed++
			}
		}
		state := "disabled"
		if enabled {
			state = "enabled"
		}
		saveEnvironment(a, env, fmt.Sprintf("%d variables %s in '%s'", changed, state, env.Name))
	}
}

func runEnvDelete(cmd *cobra.Command, args []string) {
	a := openApp(cmd)
	defer a.Close()

	env := findEnvironment(a, args[0])
	if _, err := a.store.DeleteEnvironment(env.ID); err != nil {
		exitWithError(fmt.Sprintf("Failed to delete environment: %v", err))
	}

	format.PrintSuccess(fmt.Sprintf("Environment '%s' deleted", env.Name))
}

func runEnvUse(cmd *cobra.Command, args []string) {
	if envUseNone == (len(args) == 1) {
		exitWithError("Give an environment or --none")
	}

	a := openApp(cmd)
	defer a.Close()

	if envUseNone {
		if err := a.store.SetActiveEnvironment(nil); err != nil {
			exitWithError(fmt.Sprintf("Failed to deactivate environment: %v", err))
		}
		format.PrintSuccess("No active environment")
		return
	}

	env := findEnvironment(a, args[0])
	if err := a.store.SetActiveEnvironment(&env); err != nil {
		exitWithError(fmt.Sprintf("Failed to activate environment: %v", err))
	}
	format.PrintSuccess(fmt.Sprintf("Using environment '%s'", env.Name))
}

func runEnvResolve(cmd *cobra.Command, args []string) {
	a := openApp(cmd)
	defer a.Close()

	fmt.Fprintln(format.Out, a.store.ResolveVariables(args[0]))
	if missing := resolver.Unresolved(args[0], a.store.ActiveEnvironment()); len(missing) > 0 {
		format.PrintWarning(fmt.Sprintf("Unresolved variables: %s", strings.Join(missing, ", ")))
	}
}
