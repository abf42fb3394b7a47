package main

import "github.com/nextlevelbuilder/webpilot/cmd"

func main() {
	cmd.Execute()
}
