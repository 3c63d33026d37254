// Command chatgateway runs the JobSync AI chat gateway.
package main

import (
	"fmt"
	"os"

	"github.com/jobsync/chatgateway/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
