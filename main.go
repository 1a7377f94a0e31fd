package main

import (
	"github.com/stacksx402/stacks-agent/internal/cmd"
)

func main() {
	cmd.Execute()
}
