package main

import (
	"os"

	"github.com/platinummonkey/provisioner/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
