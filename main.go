// ABOUTME: Entry point for the technoshield analyst console
// ABOUTME: One-shot commands and an interactive dashboard over the alert backend

package main

import (
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"

	"github.com/drake-forum/technoshield/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
