package main

import (
	"github.com/himanshujainsanghai/up-igrs-new-sub002/cmd"
)

func main() {
	cmd.Execute()
}
