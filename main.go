package main

import "github.com/vynguyen175/vizion/cmd"

func main() {
	cmd.Execute()
}
