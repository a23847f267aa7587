package main

import "github.com/pricelens/backend/internal/cli"

func main() {
	cli.Execute()
}
