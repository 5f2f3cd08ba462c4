package main

import "paintboard/cmd/paintboard/command"

func main() {
	command.Execute()
}
