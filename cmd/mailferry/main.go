package main

import "mailferry/internal/cli"

func main() {
	cli.Execute()
}
