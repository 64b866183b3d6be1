package main

import "hydrowatch/internal/cli"

func main() {
	cli.Execute()
}
