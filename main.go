package main

import "github.com/bl4ckh401/chama/cmd"

func main() {
	cmd.Execute()
}
