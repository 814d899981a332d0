package main

import "github.com/MeKo-Tech/noisegradient/internal/cmd"

func main() {
	cmd.Execute()
}
