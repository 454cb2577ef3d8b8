package main

import (
	"os"

	"github.com/webmip/postbank/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
