package main

import "github.com/kozaktomas/cybereye/cmd"

func main() {
	cmd.Execute()
}
