// Command import replaces the service catalog from an xlsx file
// through the API, reporting chunk progress as it goes.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"inventory-service/internal/excel"
	"inventory-service/internal/importer"
	"inventory-service/pkg/apiclient"
	"inventory-service/pkg/config"
	"inventory-service/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	var (
		server   = flag.String("server", "http://localhost:8080", "inventory service address")
		email    = flag.String("email", "", "login email")
		password = flag.String("password", "", "login password")
		file     = flag.String("file", "", "xlsx file to import")
	)
	flag.Parse()

	if *email == "" || *password == "" || *file == "" {
		fmt.Fprintln(os.Stderr, "usage: import -server URL -email EMAIL -password PASSWORD -file FILE.xlsx")
		os.Exit(2)
	}

	appConfig, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}
	logger.InitLogger(appConfig)
	log := logger.GetLogger()
	defer log.Sync()

	f, err := os.Open(*file)
	if err != nil {
		log.Fatal("Failed to open file", zap.String("file", *file), zap.Error(err))
	}
	defer f.Close()

	items, err := excel.ReadItems(f)
	if err != nil {
		log.Fatal("Failed to parse spreadsheet", zap.String("file", *file), zap.Error(err))
	}
	log.Info("Spreadsheet parsed", zap.Int("rows", len(items)))

	ctx := context.Background()
	client := apiclient.New(*server, *email, *password, log)
	if err := client.Login(ctx); err != nil {
		log.Fatal("Login failed", zap.Error(err))
	}

	im := importer.New(appConfig.Import, client, log)
	count, err := im.Run(ctx, items, func(chunk, total int) {
		if chunk == 0 {
			fmt.Println("Backing up images and clearing catalog...")
			return
		}
		fmt.Printf("Chunk %d/%d done\n", chunk, total)
	})
	if err != nil {
		log.Fatal("Import failed", zap.Error(err))
	}

	fmt.Printf("Imported %d of %d rows\n", count, len(items))
}
