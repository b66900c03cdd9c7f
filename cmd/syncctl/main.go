package main

import "healthsync/cmd/syncctl/cmd"

func main() {
	cmd.Execute()
}
