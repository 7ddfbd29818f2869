package main

import (
	"fmt"
	"os"

	"github.com/nhle/hotel-ops/internal/cli"
)

var Version = "dev"

func main() {
	if err := cli.NewRootCmd(Version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
