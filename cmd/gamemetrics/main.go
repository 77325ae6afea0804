package main

import (
	"fmt"
	"os"
)

func main() {
	root := Root()
	root.SetArgs(os.Args[1:])
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "gamemetrics: %v\n", err)
		os.Exit(1)
	}
}
