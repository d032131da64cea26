package main

import (
	"os"

	"github.com/expensaur/backend/cmd/sweeper/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
