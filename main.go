package main

import "pride/cmd"

func main() {
	cmd.Execute()
}
