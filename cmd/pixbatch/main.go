package main

import "github.com/MeKo-Tech/pixbatch/cmd/pixbatch/cmd"

func main() {
	cmd.Execute()
}
