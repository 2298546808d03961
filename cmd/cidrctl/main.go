package main

import (
	"fmt"
	"os"
)

func main() {
	a := &app{out: os.Stdout}
	defer a.close()

	if err := newRootCmd(a).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
