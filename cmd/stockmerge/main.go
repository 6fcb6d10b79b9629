package main

import "stockmerge/internal/cli"

func main() {
	cli.Execute()
}
