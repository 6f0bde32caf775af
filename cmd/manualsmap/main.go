package main

import "manualsmap/internal/cli"

func main() {
	cli.Execute()
}
