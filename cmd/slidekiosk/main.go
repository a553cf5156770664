package main

import "github.com/Avataren/slidekiosk/cmd/slidekiosk/commands"

func main() {
	commands.Execute()
}
