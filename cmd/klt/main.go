package main

import "github.com/MeKo-Tech/goklt/cmd/klt/cmd"

func main() {
	cmd.Execute()
}
