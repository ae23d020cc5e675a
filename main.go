package main

import "awful/internal/cli"

func main() {
	cli.Execute()
}
