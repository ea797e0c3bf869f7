// Package main provides a development entry point for the Air background
// core: it runs the notification pipeline against a payload file and prints
// the batch, without a host extension in the loop.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/airmsg/core/internal/background"
	"github.com/airmsg/core/internal/bridge"
)

// Version is set at build time
var Version = "0.1.0"

func main() {
	payloadPath := flag.String("payload", "", "path to an incoming-content JSON file")
	flag.Parse()

	if *payloadPath == "" {
		fmt.Printf("Air Background Core v%s\n", Version)
		fmt.Println("usage: core -payload <file.json>")
		os.Exit(2)
	}

	content, err := os.ReadFile(*payloadPath)
	if err != nil {
		log.Fatalf("failed to read payload: %v", err)
	}

	result := bridge.NewProcessor(background.NewTransformer()).Process(string(content))
	if result == bridge.Sentinel {
		log.Fatal("processing returned no result; see the log file for details")
	}
	fmt.Println(result)
}
