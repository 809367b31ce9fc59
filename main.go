package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/postline/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "postline: %v\n", err)
		os.Exit(1)
	}
}
