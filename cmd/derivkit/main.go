package main

import (
	"os"

	"github.com/wyfcoding/derivkit/cmd/derivkit/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
