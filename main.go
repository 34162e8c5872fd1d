package main

import "github.com/naka-gawa/github-audience/cmd"

func main() {
	cmd.Execute()
}
