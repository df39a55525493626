package main

import "bedrockcron/cmd"

func main() {
	cmd.Execute()
}
