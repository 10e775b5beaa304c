package main

import "bookgateway/cmd/bookgateway/cmd"

func main() {
	cmd.Execute()
}
