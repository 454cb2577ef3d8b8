package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/webmip/postbank/internal/dispatch"
	"github.com/webmip/postbank/internal/format"
	"github.com/webmip/postbank/internal/model"
)

var cookieDisabled bool

func init() {
	cookieCmd := &cobra.Command{
		Use:   "cookie",
		Short: "Manage cookies sent with requests",
		Long: `Manage cookies.

Enabled cookies stored for a domain are sent in the Cookie header of every
request to that exact host. Domains may be given as a host name or a URL.`,
	}

	listCmd := &cobra.Command{
		Use:   "list [domain]",
		Short: "List cookies",
		Args:  cobra.MaximumNArgs(1),
		Run:   runCookieList,
	}

	setCmd := &cobra.Command{
		Use:   "set <domain> <name=value>",
		Short: "Add or replace a cookie",
		Args:  cobra.ExactArgs(2),
		Run:   runCookieSet,
	}
	setCmd.Flags().BoolVar(&cookieDisabled, "disabled", false, "Store the cookie without sending it")

	deleteCmd := &cobra.Command{
		Use:   "delete <domain> <name>",
		Short: "Delete a cookie",
		Args:  cobra.ExactArgs(2),
		Run:   runCookieDelete,
	}

	cookieCmd.AddCommand(listCmd, setCmd, deleteCmd)
	rootCmd.AddCommand(cookieCmd)
}

// cookieDomain normalizes a host name or URL to the domain cookies are
// keyed by.
func cookieDomain(ref string) string {
	domain, err := dispatch.CookieDomain(ref)
	if err != nil {
		exitWithError(fmt.Sprintf("Invalid domain: %v", err))
	}
	return domain
}

func runCookieList(cmd *cobra.Command, args []string) {
	a := openApp(cmd)
	defer a.Close()

	byDomain := make(map[string][]model.Cookie)
	if len(args) == 1 {
		domain := cookieDomain(args[0])
		if cookies := a.store.CookiesForDomain(domain); len(cookies) > 0 {
			byDomain[domain] = cookies
		}
	} else {
		for _, d := range a.store.CookieDomains() {
			byDomain[d] = a.store.CookiesForDomain(d)
		}
	}
	format.PrintCookies(byDomain)
}

func runCookieSet(cmd *cobra.Command, args []string) {
	name, value, ok := strings.Cut(args[1], "=")
	if !ok || strings.TrimSpace(name) == "" {
		exitWithError(fmt.Sprintf("Invalid cookie %q (want name=value)", args[1]))
	}
	domain := cookieDomain(args[0])

	a := openApp(cmd)
	defer a.Close()

	cookie := model.Cookie{Name: strings.TrimSpace(name), Value: value, Enabled: !cookieDisabled}
	if _, err := a.store.AddCookie(domain, cookie); err != nil {
		exitWithError(fmt.Sprintf("Failed to save cookie: %v", err))
	}

	format.PrintSuccess(fmt.Sprintf("Cookie '%s' set for %s", cookie.Name, domain))
}

func runCookieDelete(cmd *cobra.Command, args []string) {
	domain := cookieDomain(args[0])

	a := openApp(cmd)
	defer a.Close()

	if err := a.store.RemoveCookie(domain, args[1]); err != nil {
		exitWithError(fmt.Sprintf("Failed to delete cookie: %v", err))
	}

	format.PrintSuccess(fmt.Sprintf("Cookie '%s' deleted from %s", args[1], domain))
}
