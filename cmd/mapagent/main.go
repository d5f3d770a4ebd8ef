package main

import "github.com/MeKo-Tech/mapagent/internal/cmd"

func main() {
	cmd.Execute()
}
