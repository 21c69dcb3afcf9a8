// Package main is the entry point for the storefront CLI.
package main

import "github.com/basecamp/storefront/internal/cli"

func main() {
	cli.Execute()
}
