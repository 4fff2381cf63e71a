package main

import "github.com/mselser95/coinflip/cmd"

func main() {
	cmd.Execute()
}
