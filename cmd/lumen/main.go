package main

import (
	"github.com/lumen-io/client/cmd/cli"
)

func main() {
	cli.Execute()
}
