package main

import "github.com/funvibe/matchgen/pkg/cli"

func main() {
	cli.Run()
}
