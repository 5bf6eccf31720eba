package main

import "github.com/buckleypaul/chipcheck/internal/cli"

func main() {
	cli.Execute()
}
