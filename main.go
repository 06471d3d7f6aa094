package main

import "github.com/lepinkainen/librarylookup/cmd"

var execute = cmd.Execute

func main() {
	execute()
}
