package main

import "github.com/ryantjarrett/CTSI-2024/internal/cli"

func main() {
	cli.Execute()
}
