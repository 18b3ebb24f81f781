package main

import cmd "github.com/rohmanhakim/pyq-crawler/internal/cli"

func main() {
	cmd.Execute()
}
