package main

import "github.com/pfrederiksen/hh-events/internal/cli"

func main() {
	cli.Execute()
}
