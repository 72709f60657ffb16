package main

import (
	"os"

	"callctx/internal/ui/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
