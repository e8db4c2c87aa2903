package main

import "github.com/avyuktsoni0731/continuum/cmd/continuum/commands"

func main() {
	commands.Execute()
}
