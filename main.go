package main

import (
	"github.com/joho/godotenv"

	"apinode/cmd"
)

func main() {
	_ = godotenv.Load()
	cmd.Execute()
}
