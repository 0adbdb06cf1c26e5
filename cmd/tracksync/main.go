package main

import "github.com/cesargomez89/tracksync/internal/cli"

func main() {
	cli.Execute()
}
