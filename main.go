package main

import "usher-schedule/cmd"

func main() {
	cmd.Execute()
}
