package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Printf("stub one: %v\n", os.Args[1:])
}
