package main

import "github.com/dogma165/push-notification/cmd"

func main() {
	cmd.Execute()
}
