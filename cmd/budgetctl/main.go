// Command budgetctl runs budget engine maintenance from the command line.
package main

import (
	"os"

	"famledger/internal/logger"
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	Execute()
}
