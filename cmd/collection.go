package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/webmip/postbank/internal/dispatch"
	"github.com/webmip/postbank/internal/format"
	"github.com/webmip/postbank/internal/model"
)

var (
	fromHistory []string
	exportPath  string
)

func init() {
	collectionCmd := &cobra.Command{
		Use:     "collection",
		Aliases: []string{"col"},
		Short:   "Manage request collections",
		Long: `Manage request collections.

Collections are referenced by ID or name. They can be exchanged with other
tools as Postman v2.1 collection files.`,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all collections",
		Run:   runCollectionList,
	}

	createCmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new collection",
		Long: `Create a new collection, optionally filled from history entries.

Example:
  postbank collection create smoke --from-history 3,5,8`,
		Args: cobra.ExactArgs(1),
		Run:  runCollectionCreate,
	}
	createCmd.Flags().StringSliceVar(&fromHistory, "from-history", nil, "History entry IDs to copy into the collection")

	showCmd := &cobra.Command{
		Use:   "show <collection>",
		Short: "Show requests in a collection",
		Args:  cobra.ExactArgs(1),
		Run:   runCollectionShow,
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <collection>",
		Short: "Delete a collection",
		Args:  cobra.ExactArgs(1),
		Run:   runCollectionDelete,
	}

	addCmd := &cobra.Command{
		Use:   "add <collection> <name> <method> <url>",
		Short: "Add a request to a collection",
		Long: `Add a request to a collection.

Example:
  postbank collection add my-api "Get Users" GET '{{base}}/users'`,
		Args: cobra.ExactArgs(4),
		Run:  runCollectionAdd,
	}
	addCmd.Flags().StringArrayVarP(&headers, "header", "H", []string{}, "Add header")
	addCmd.Flags().StringVarP(&data, "data", "d", "", "Request body")

	removeCmd := &cobra.Command{
		Use:   "remove <collection> <request id or index>",
		Short: "Remove a request from a collection",
		Args:  cobra.ExactArgs(2),
		Run:   runCollectionRemove,
	}

	importCmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a Postman v2.1 collection (use - for stdin)",
		Args:  cobra.ExactArgs(1),
		Run:   runCollectionImport,
	}

	exportCmd := &cobra.Command{
		Use:   "export <collection>",
		Short: "Export a collection as Postman v2.1 JSON",
		Args:  cobra.ExactArgs(1),
		Run:   runCollectionExport,
	}
	exportCmd.Flags().StringVarP(&exportPath, "output", "o", "", "Write to file instead of stdout")

	runCmd := &cobra.Command{
		Use:   "run <collection>",
		Short: "Run all requests in a collection",
		Args:  cobra.ExactArgs(1),
		Run:   runCollectionRun,
	}
	runCmd.Flags().BoolVar(&noHistory, "no-history", false, "Don't save to history")

	collectionCmd.AddCommand(listCmd, createCmd, showCmd, deleteCmd, addCmd, removeCmd, importCmd, exportCmd, runCmd)
	rootCmd.AddCommand(collectionCmd)
}

func findCollection(a *app, ref string) model.Collection {
	col, ok := a.store.FindCollection(ref)
	if !ok {
		exitWithError(fmt.Sprintf("Collection '%s' not found", ref))
	}
	return col
}

func runCollectionList(cmd *cobra.Command, args []string) {
	a := openApp(cmd)
	defer a.Close()

	format.PrintCollectionList(a.store.Collections())
}

func runCollectionCreate(cmd *cobra.Command, args []string) {
	name := args[0]

	a := openApp(cmd)
	defer a.Close()

	if len(fromHistory) > 0 {
		ids := make([]int64, 0, len(fromHistory))
		for _, s := range fromHistory {
			id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
			if err != nil {
				exitWithError(fmt.Sprintf("Invalid history ID: %s", s))
			}
			ids = append(ids, id)
		}
		col, err := a.store.CreateCollectionFromHistory(name, ids)
		if err != nil {
			exitWithError(fmt.Sprintf("Failed to create collection: %v", err))
		}
		format.PrintSuccess(fmt.Sprintf("Collection '%s' created with %d requests (%s)", col.Name, len(col.Requests), col.ID))
		return
	}

	col := model.Collection{ID: uuid.New().String(), Name: name, Requests: []model.Request{}}
	if _, err := a.store.SaveCollection(col); err != nil {
		exitWithError(fmt.Sprintf("Failed to create collection: %v", err))
	}

	format.PrintSuccess(fmt.Sprintf("Collection '%s' created (%s)", name, col.ID))
}

func runCollectionShow(cmd *cobra.Command, args []string) {
	a := openApp(cmd)
	defer a.Close()

	format.PrintCollectionRequests(findCollection(a, args[0]))
}

func runCollectionDelete(cmd *cobra.Command, args []string) {
	a := openApp(cmd)
	defer a.Close()

	col := findCollection(a, args[0])
	if _, err := a.store.DeleteCollection(col.ID); err != nil {
		exitWithError(fmt.Sprintf("Failed to delete collection: %v", err))
	}

	format.PrintSuccess(fmt.Sprintf("Collection '%s' deleted", col.Name))
}

func runCollectionAdd(cmd *cobra.Command, args []string) {
	collectionRef := args[0]
	name := args[1]
	url := args[3]

	method, ok := model.ParseMethod(args[2])
	if !ok {
		exitWithError(fmt.Sprintf("Unsupported method: %s", args[2]))
	}

	a := openApp(cmd)
	defer a.Close()

	col := findCollection(a, collectionRef)
	req := model.Request{
		Name:    name,
		Method:  method,
		URL:     url,
		Headers: parseHeaders(headers),
		Body:    data,
	}

	if _, err := a.store.AddRequestToCollection(col.ID, req); err != nil {
		exitWithError(fmt.Sprintf("Failed to add request: %v", err))
	}

	format.PrintSuccess(fmt.Sprintf("Request '%s' added to collection '%s'", name, col.Name))
}

func runCollectionRemove(cmd *cobra.Command, args []string) {
	a := openApp(cmd)
	defer a.Close()

	col := findCollection(a, args[0])
	requestID := args[1]

	// Accept the 1-based position shown by `collection show`
	if index, err := strconv.Atoi(requestID); err == nil && index > 0 && index <= len(col.Requests) {
		requestID = col.Requests[index-1].ID
	}

	if _, err := a.store.RemoveRequestFromCollection(col.ID, requestID); err != nil {
		exitWithError(fmt.Sprintf("Failed to remove request: %v", err))
	}

	format.PrintSuccess(fmt.Sprintf("Request removed from collection '%s'", col.Name))
}

func runCollectionImport(cmd *cobra.Command, args []string) {
	var (
		content []byte
		err     error
	)
	if args[0] == "-" {
		content, err = io.ReadAll(os.Stdin)
	} else {
		content, err = os.ReadFile(args[0])
	}
	if err != nil {
		exitWithError(fmt.Sprintf("Failed to read file: %v", err))
	}

	a := openApp(cmd)
	defer a.Close()

	col, err := a.store.ImportCollection(string(content))
	if err != nil {
		exitWithError(fmt.Sprintf("Import failed: %v", err))
	}

	format.PrintSuccess(fmt.Sprintf("Imported collection '%s' with %d requests (%s)", col.Name, len(col.Requests), col.ID))
}

func runCollectionExport(cmd *cobra.Command, args []string) {
	a := openApp(cmd)
	defer a.Close()

	col := findCollection(a, args[0])
	text, err := a.store.ExportCollection(col.ID)
	if err != nil {
		exitWithError(fmt.Sprintf("Export failed: %v", err))
	}

	if exportPath == "" {
		fmt.Fprintln(os.Stdout, text)
		return
	}
	if err := os.WriteFile(exportPath, []byte(text+"\n"), 0600); err != nil {
		exitWithError(fmt.Sprintf("Failed to write file: %v", err))
	}
	format.PrintSuccess(fmt.Sprintf("Collection '%s' exported to %s", col.Name, exportPath))
}

func runCollectionRun(cmd *cobra.Command, args []string) {
	verbose, _ := cmd.Flags().GetBool("verbose")

	a := openApp(cmd)
	defer a.Close()

	col := findCollection(a, args[0])
	if len(col.Requests) == 0 {
		exitWithError(fmt.Sprintf("Collection '%s' is empty", col.Name))
	}

	d := a.dispatcher()
	ctx, cancel := signalContext()
	defer cancel()

	fmt.Fprintf(format.Out, "Running %d requests from collection '%s'\n\n", len(col.Requests), col.Name)

	failed := 0
	for i, req := range col.Requests {
		if req.Name != "" {
			fmt.Fprintf(format.Out, "[%d/%d] %s\n", i+1, len(col.Requests), req.Name)
		} else {
			fmt.Fprintf(format.Out, "[%d/%d] %s %s\n", i+1, len(col.Requests), req.Method, req.URL)
		}

		resp, err := d.Send(ctx, a.store, req, dispatch.SendOptions{SkipHistory: noHistory})
		if resp == nil {
			format.PrintError(fmt.Sprintf("Request failed: %v", err))
			failed++
			continue
		}
		if err != nil {
			format.PrintWarning(fmt.Sprintf("Failed to save to history: %v", err))
		}
		if resp.Status == 0 || resp.Status >= 400 {
			failed++
		}

		format.PrintResponse(resp, verbose)
		fmt.Fprintln(format.Out)

		if ctx.Err() != nil {
			exitWithError("Interrupted")
		}
	}

	if failed > 0 {
		format.PrintWarning(fmt.Sprintf("Completed running collection '%s': %d of %d requests failed", col.Name, failed, len(col.Requests)))
		return
	}
	format.PrintSuccess(fmt.Sprintf("Completed running collection '%s'", col.Name))
}
