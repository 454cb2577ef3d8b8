package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/webmip/postbank/internal/auth"
	"github.com/webmip/postbank/internal/dispatch"
	"github.com/webmip/postbank/internal/format"
	"github.com/webmip/postbank/internal/model"
	"github.com/webmip/postbank/internal/params"
	"github.com/webmip/postbank/internal/store"
)

var (
	headers          []string
	queryParams      []string
	data             string
	noHistory        bool
	saveToCollection string
	saveAs           string
	requestName      string
	showLog          bool

	authType     string
	basicUser    string
	bearerToken  string
	apiKeyName   string
	apiKeyValue  string
	apiKeyInPath string
)

func init() {
	for _, m := range model.Methods {
		method := m
		c := &cobra.Command{
			Use:   strings.ToLower(string(method)) + " <url>",
			Short: fmt.Sprintf("Send a %s request", method),
			Args:  cobra.ExactArgs(1),
			Run:   runRequest(method),
		}
		addRequestFlags(c)
		rootCmd.AddCommand(c)
	}

	sendCmd := &cobra.Command{
		Use:   "send <saved request>",
		Short: "Send a saved request by name or ID",
		Args:  cobra.ExactArgs(1),
		Run:   runSendSaved,
	}
	sendCmd.Flags().BoolVar(&noHistory, "no-history", false, "Don't save to history")
	sendCmd.Flags().BoolVar(&showLog, "show-log", false, "Print the outgoing request log")
	rootCmd.AddCommand(sendCmd)
}

func addRequestFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&headers, "header", "H", []string{}, "Add header (can be used multiple times)")
	cmd.Flags().StringArrayVarP(&queryParams, "query", "q", []string{}, "Set query parameter key=value (can be used multiple times)")
	cmd.Flags().StringVarP(&data, "data", "d", "", "Request body (JSON string or @filename)")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "Don't save to history")
	cmd.Flags().StringVarP(&saveToCollection, "collection", "c", "", "Add to collection (name or ID)")
	cmd.Flags().StringVar(&saveAs, "save", "", "Save the request under this name")
	cmd.Flags().StringVar(&requestName, "name", "", "Request name")
	cmd.Flags().BoolVar(&showLog, "show-log", false, "Print the outgoing request log")

	cmd.Flags().StringVar(&authType, "auth", "", "Auth type: none, basic, bearer, api-key")
	cmd.Flags().StringVarP(&basicUser, "user", "u", "", "Basic auth credentials user:password")
	cmd.Flags().StringVar(&bearerToken, "bearer", "", "Bearer token")
	cmd.Flags().StringVar(&apiKeyName, "api-key-name", auth.HeaderAPIKey, "API key header or query parameter name")
	cmd.Flags().StringVar(&apiKeyValue, "api-key", "", "API key value")
	cmd.Flags().StringVar(&apiKeyInPath, "api-key-in", auth.LocationHeader, "Where to send the API key: header or query")
}

func runRequest(method model.Method) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		req, err := buildRequest(method, args[0])
		if err != nil {
			exitWithError(err.Error())
		}

		// Warn if body contains potentially sensitive data
		if !noHistory {
			warnIfSensitiveBody(req.Body)
		}

		a := openApp(cmd)
		defer a.Close()

		send(cmd, a, req)

		if saveToCollection != "" {
			saveRequestToCollection(a.store, saveToCollection, req)
		}
		if saveAs != "" {
			saved, err := a.store.SaveRequest(saveAs, req)
			if err != nil {
				format.PrintError(fmt.Sprintf("Failed to save request: %v", err))
			} else {
				format.PrintSuccess(fmt.Sprintf("Saved request '%s' (%s)", saved.Name, saved.ID))
			}
		}
	}
}

func runSendSaved(cmd *cobra.Command, args []string) {
	a := openApp(cmd)
	defer a.Close()

	saved, ok := a.store.FindSavedRequest(args[0])
	if !ok {
		exitWithError(fmt.Sprintf("Saved request not found: %s", args[0]))
	}
	req := saved.Request
	if req.Name == "" {
		req.Name = saved.Name
	}
	send(cmd, a, req)
}

// send dispatches req through the active environment and prints the result.
func send(cmd *cobra.Command, a *app, req model.Request) {
	verbose, _ := cmd.Flags().GetBool("verbose")

	if env := a.store.ActiveEnvironment(); env != nil {
		a.logger.Debug("using environment", "name", env.Name)
	}
	a.store.SetActiveRequest(&req)

	ctx, cancel := signalContext()
	defer cancel()

	resp, err := a.dispatcher().Send(ctx, a.store, req, dispatch.SendOptions{SkipHistory: noHistory})
	if resp == nil {
		exitWithError(fmt.Sprintf("Request failed: %v", err))
	}

	format.PrintResponse(resp, verbose)
	if err != nil {
		format.PrintWarning(fmt.Sprintf("Failed to save to history: %v", err))
	}

	if showLog {
		fmt.Fprintln(format.Out)
		format.PrintLogs(a.store.Logs(), verbose)
	}
}

// buildRequest assembles a request from the command-line flags.
func buildRequest(method model.Method, rawURL string) (model.Request, error) {
	req := model.Request{
		Method:  method,
		URL:     rawURL,
		Headers: parseHeaders(headers),
		Name:    requestName,
	}

	for _, q := range queryParams {
		key, value, ok := strings.Cut(q, "=")
		if !ok || key == "" {
			return req, fmt.Errorf("invalid query parameter %q (want key=value)", q)
		}
		req.URL = params.Set(req.URL, key, value)
	}

	body := data
	if strings.HasPrefix(body, "@") {
		filename := strings.TrimPrefix(body, "@")
		content, err := readBodyFromFile(filename)
		if err != nil {
			return req, fmt.Errorf("failed to read file: %w", err)
		}
		body = content
	}
	req.Body = body

	a, err := authFromFlags()
	if err != nil {
		return req, err
	}
	req.Auth = a
	return req, nil
}

// authFromFlags builds an auth descriptor. --user, --bearer and --api-key
// imply their type when --auth is not given.
func authFromFlags() (*model.Auth, error) {
	t := authType
	if t == "" {
		switch {
		case basicUser != "":
			t = string(model.AuthBasic)
		case bearerToken != "":
			t = string(model.AuthBearer)
		case apiKeyValue != "":
			t = string(model.AuthAPIKey)
		default:
			return nil, nil
		}
	}

	parsed, err := auth.ParseType(t)
	if err != nil {
		return nil, err
	}

	a := &model.Auth{Type: parsed}
	switch parsed {
	case model.AuthBasic:
		user, pass, ok := strings.Cut(basicUser, ":")
		if !ok {
			return nil, errors.New("basic auth needs --user user:password")
		}
		a.Username, a.Password = user, pass
	case model.AuthBearer:
		if bearerToken == "" {
			return nil, errors.New("bearer auth needs --bearer <token>")
		}
		a.Token = bearerToken
	case model.AuthAPIKey:
		if apiKeyValue == "" {
			return nil, errors.New("api-key auth needs --api-key <value>")
		}
		if apiKeyInPath != auth.LocationHeader && apiKeyInPath != auth.LocationQuery {
			return nil, fmt.Errorf("invalid --api-key-in %q (want header or query)", apiKeyInPath)
		}
		a.APIKey, a.APIValue, a.APIKeyLocation = apiKeyName, apiKeyValue, apiKeyInPath
	}
	return a, nil
}

// parseHeaders turns "Name: value" flags into enabled headers.
func parseHeaders(headerStrings []string) model.Headers {
	result := make(model.Headers)
	for _, h := range headerStrings {
		parts := strings.SplitN(h, ":", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			result[key] = model.HeaderValue{Value: value, Enabled: true}
		}
	}
	return result
}

func saveRequestToCollection(st *store.Store, ref string, req model.Request) {
	col, ok := st.FindCollection(ref)
	if !ok {
		format.PrintError(fmt.Sprintf("Collection '%s' not found", ref))
		return
	}

	if _, err := st.AddRequestToCollection(col.ID, req); err != nil {
		format.PrintError(fmt.Sprintf("Failed to save to collection: %v", err))
		return
	}

	format.PrintSuccess(fmt.Sprintf("Saved to collection '%s'", col.Name))
}

// readBodyFromFile reads file content with path validation to prevent directory traversal
func readBodyFromFile(filename string) (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}

	absPath, err := filepath.Abs(filename)
	if err != nil {
		return "", fmt.Errorf("invalid file path: %w", err)
	}
	cleanPath := filepath.Clean(absPath)

	// Ensure file is within working directory (prevent path traversal)
	if !strings.HasPrefix(cleanPath, wd+string(filepath.Separator)) && cleanPath != wd {
		return "", fmt.Errorf("access denied: file must be within current directory")
	}

	// Check for symlinks - resolve and verify target is also within working directory
	realPath, err := filepath.EvalSymlinks(cleanPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to resolve path: %w", err)
		}
		realPath = cleanPath
	} else if !strings.HasPrefix(realPath, wd+string(filepath.Separator)) && realPath != wd {
		return "", fmt.Errorf("access denied: symlink target must be within current directory")
	}

	content, err := os.ReadFile(realPath)
	if err != nil {
		return "", err
	}

	return string(content), nil
}

// sensitiveBodyPatterns contains patterns that suggest sensitive data in request bodies
var sensitiveBodyPatterns = []string{
	"password", "passwd", "pwd",
	"secret", "token", "api_key", "apikey",
	"private_key", "privatekey",
	"credit_card", "creditcard", "card_number",
	"ssn", "social_security",
	"access_token", "refresh_token",
	"client_secret", "auth",
}

// warnIfSensitiveBody checks if the request body might contain sensitive data and warns the user
func warnIfSensitiveBody(body string) {
	if body == "" {
		return
	}

	lowerBody := strings.ToLower(body)
	for _, pattern := range sensitiveBodyPatterns {
		if strings.Contains(lowerBody, pattern) {
			fmt.Fprintln(os.Stderr, "WARNING: Request body may contain sensitive data (e.g., passwords, tokens). This will be stored in history.")
			fmt.Fprintln(os.Stderr, "         Use --no-history flag to skip storing this request.")
			return
		}
	}
}
