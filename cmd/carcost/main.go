package main

import (
	"os"

	"carcost/cmd/carcost/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
