package main

import "github.com/itish2003/courserag/cli"

func main() {
	cli.Execute()
}
