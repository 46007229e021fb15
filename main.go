package main

import "github.com/jfmyers9/cueline/cmd"

func main() {
	cmd.Execute()
}
