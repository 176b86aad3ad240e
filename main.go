package main

import (
	"github.com/quorumkv/qkv/cmd"
)

func main() {
	cmd.Execute()
}
