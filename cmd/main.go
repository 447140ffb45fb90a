package main

import (
	"os"

	"elsa-quiz-room/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
