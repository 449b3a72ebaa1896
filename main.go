package main

import (
	"github.com/dsaquest/contestscope/cmd"
)

func main() {
	cmd.Execute()
}
