package main

import "github.com/ppiankov/stewardgate/internal/cli"

func main() {
	cli.Execute()
}
