package main

import "github.com/halvorsen/subsetdb/cmd/subsetdb/cmd"

func main() {
	cmd.Execute()
}
