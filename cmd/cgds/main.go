// Package main provides the CGDS CLI.
package main

import (
	"fmt"
	"os"
)

const version = "v0.0.1-dev"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("CGDS %s\n", version)
		return
	}

	fmt.Println("CGDS - Competitive Gradient Descent for Go")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version    Show version")
	fmt.Println("")
	fmt.Println("See examples/bilinear for a runnable two-player game.")
}
