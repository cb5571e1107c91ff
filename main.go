package main

import (
	"fmt"
	"os"

	"github.com/balebuild/bale/cmd"
	"github.com/balebuild/bale/logger"
)

func main() {
	err := cmd.RootCmd.Execute()
	logger.Close()
	if err != nil {
		fmt.Println("Error:", err.Error())
		os.Exit(1)
	}
}
