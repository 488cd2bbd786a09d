package main

import "github.com/hexhold/hexhold/internal/cli"

func main() {
	cli.Execute()
}
