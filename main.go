package main

import "lexpipe/cmd"

func main() {
	cmd.Execute()
}
