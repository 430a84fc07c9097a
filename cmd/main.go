package main

import (
	"os"

	"github.com/violabg/dev-quiz-battle-sub000/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
