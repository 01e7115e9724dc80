package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Printf("stub two: %v\n", os.Args[1:])
}
