package main

import "taskshare/internal/cli"

func main() {
	cli.Execute()
}
