package main

import "github.com/ordersvc/commander/internal/cli"

func main() {
	cli.Execute()
}
