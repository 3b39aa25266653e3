package main

import "github.com/marcus/crewd/cmd/crewd/commands"

func main() {
	commands.Execute()
}
