package main

import (
	"fmt"
	"os"

	"github.com/narendra-goswami/bindshub/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "bindshub: %v\n", err)
		os.Exit(1)
	}
}
