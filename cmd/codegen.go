package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/webmip/postbank/internal/codegen"
	"github.com/webmip/postbank/internal/format"
	"github.com/webmip/postbank/internal/model"
)

var codegenResolve bool

func init() {
	codegenCmd := &cobra.Command{
		Use:   "codegen <language> <saved request or history id>",
		Short: "Generate a code snippet for a request",
		Long: fmt.Sprintf(`Generate a code snippet for a saved request or a history entry.

Languages: %s

Example:
  postbank codegen curl "Get Users"
  postbank codegen python 12 --resolve`, strings.Join(codegen.Languages(), ", ")),
		Args: cobra.ExactArgs(2),
		Run:  runCodegen,
	}
	codegenCmd.Flags().BoolVar(&codegenResolve, "resolve", false, "Substitute variables from the active environment")

	rootCmd.AddCommand(codegenCmd)
}

func runCodegen(cmd *cobra.Command, args []string) {
	a := openApp(cmd)
	defer a.Close()

	var req model.Request
	if saved, ok := a.store.FindSavedRequest(args[1]); ok {
		req = saved.Request
	} else if id, err := strconv.ParseInt(args[1], 10, 64); err == nil {
		entry, ok := a.store.HistoryEntry(id)
		if !ok {
			exitWithError(fmt.Sprintf("Request not found: %s", args[1]))
		}
		req = entry.Request
	} else {
		exitWithError(fmt.Sprintf("Request not found: %s", args[1]))
	}

	if codegenResolve {
		req.URL = a.store.ResolveVariables(req.URL)
		req.Body = a.store.ResolveVariables(req.Body)
		for k, v := range req.Headers {
			v.Value = a.store.ResolveVariables(v.Value)
			req.Headers[k] = v
		}
	}

	code, err := codegen.Generate(req, args[0])
	if err != nil {
		exitWithError(err.Error())
	}
	format.PrintCode(code)
}
