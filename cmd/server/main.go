package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/avendley/schemavc"
	"github.com/avendley/schemavc/core"
	"github.com/avendley/schemavc/vcs"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	port := flag.Int("port", 7410, "TCP port to listen on")
	baseDir := flag.String("baseDir", "", "Base directory for persistence (memory if empty)")
	jwtSecret := flag.String("jwtSecret", "", "Shared secret for JWT authentication (disabled if empty)")
	jwtIssuer := flag.String("jwtIssuer", "", "Expected JWT issuer claim")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("schemavc server v%s\n", Version)
		return
	}

	var instance *schemavc.Instance
	if *baseDir == "" {
		log.Println("Using memory persistence")
		persistence, err := vcs.NewMemoryPersistence()
		if err != nil {
			log.Fatalf("Failed to initialize memory persistence: %v", err)
		}
		instance = schemavc.Open(&persistence)
	} else {
		log.Printf("Using file persistence: %s", *baseDir)
		persistence, err := vcs.NewFilePersistence(*baseDir)
		if err != nil {
			log.Fatalf("Failed to initialize file persistence: %v", err)
		}
		instance = schemavc.Open(&persistence)
	}

	identity := core.Identity{
		Name:  "schemavc server",
		Email: "server@schemavc.local",
	}

	var authConfig *AuthConfig
	if *jwtSecret != "" {
		authConfig = &AuthConfig{
			Enabled:   true,
			JWTSecret: *jwtSecret,
			Issuer:    *jwtIssuer,
		}
	}

	server := NewServer(instance, identity, authConfig)
	addr := fmt.Sprintf(":%d", *port)

	if err := server.Start(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	fmt.Printf("schemavc server v%s listening on port %d\n", Version, *port)
	fmt.Println("Send JSON commands (one per line), 'quit' to disconnect")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	server.Stop()
	log.Println("Server stopped")
}
