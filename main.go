package main

import "github.com/jmehdipour/satisfaction-predictor/cmd"

func main() {
	cmd.Execute()
}
