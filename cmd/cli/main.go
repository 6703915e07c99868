package main

import (
	"github.com/mchmarny/vascular/pkg/cli"
)

func main() {
	cli.Execute()
}
