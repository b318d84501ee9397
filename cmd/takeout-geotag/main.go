// cmd/takeout-geotag/main.go
package main

import (
	"github.com/bstardust/takeout-geotag/internal/logger"
	"github.com/bstardust/takeout-geotag/pkg/cli"
	"github.com/joho/godotenv"
)

func main() {
	// S3 credentials may live in a .env file next to the takeout
	_ = godotenv.Load()

	logger.Init()

	cli.Execute()
}
