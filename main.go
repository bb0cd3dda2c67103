package main

import "github.com/lepinkainen/listado/cmd"

var execute = cmd.Execute

func main() {
	execute()
}
