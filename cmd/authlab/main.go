package main

import "github.com/jmcleod/authlab/cmd/authlab/cmd"

func main() {
	cmd.Execute()
}
