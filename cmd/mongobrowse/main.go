package main

import "github.com/peternagy/mongobrowse/cmd/mongobrowse/cmd"

func main() {
	cmd.Execute()
}
