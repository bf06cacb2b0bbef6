package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/certnode/certnode/internal/api"
	"github.com/certnode/certnode/internal/auth"
	"github.com/certnode/certnode/internal/certify"
	"github.com/certnode/certnode/internal/config"
	"github.com/certnode/certnode/internal/export"
	"github.com/certnode/certnode/internal/ics"
	"github.com/certnode/certnode/internal/mcp"
	"github.com/certnode/certnode/internal/vault"
)

var version = config.Version

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "certify":
		cmdCertify(os.Args[2:])
	case "verify":
		cmdVerify(os.Args[2:])
	case "list":
		cmdList(os.Args[2:])
	case "vault-status":
		cmdVaultStatus(os.Args[2:])
	case "mcp":
		cmdMCP(os.Args[2:])
	case "version":
		fmt.Printf("certnode %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`certnode — prose certification pipeline

Usage:
  certnode serve [--config config.toml] [--addr :8080]
  certnode certify --file doc.txt [--type FULL_DOCUMENT] [--author id] [--out dir]
  certnode verify --file doc.txt [--cert cert.json]
  certnode list [--limit 20]
  certnode vault-status
  certnode mcp [--config config.toml]
  certnode version

Commands:
  serve         Start the HTTP server
  certify       Certify a document and export its artifacts
  verify        Verify a document against its certificate
  list          List recent vault entries
  vault-status  Print ledger statistics
  mcp           Serve certification tools over MCP stdio
  version       Print version
  help          Show this help`)
}

func setup(configPath string) (*config.Config, *vault.Store, *certify.Pipeline) {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	store, err := vault.Open(cfg.Vault.Path)
	if err != nil {
		log.Fatalf("opening vault: %v", err)
	}
	pipeline := certify.New(cfg, store)
	if err := store.SetMetadata("genesis_hash", pipeline.GenesisHash()); err != nil {
		log.Fatalf("recording genesis hash: %v", err)
	}
	return cfg, store, pipeline
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.toml")
	addr := fs.String("addr", "", "listen address (overrides config)")
	fs.Parse(args)

	cfg, store, pipeline := setup(*configPath)
	defer store.Close()

	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	a := auth.New(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiryMin)
	apiHandler := api.New(pipeline, store, a, cfg)

	mux := http.NewServeMux()
	apiHandler.RegisterRoutes(mux)

	log.Printf("certnode %s listening on %s", version, cfg.Server.Addr)
	log.Printf("vault: %s", store.Path())
	log.Printf("genesis: %s", pipeline.GenesisHash())

	if err := http.ListenAndServe(cfg.Server.Addr, api.SecurityHeaders(mux)); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func cmdCertify(args []string) {
	fs := flag.NewFlagSet("certify", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.toml")
	file := fs.String("file", "", "document to certify")
	certType := fs.String("type", string(ics.CertFullDocument), "certification type")
	author := fs.String("author", "", "author identifier")
	out := fs.String("out", "certified", "output directory for artifacts")
	fs.Parse(args)

	if *file == "" {
		log.Fatal("certify: --file is required")
	}
	content, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("reading document: %v", err)
	}

	_, store, pipeline := setup(*configPath)
	defer store.Close()

	res, err := pipeline.Certify(certify.Request{
		Content:  string(content),
		CertType: ics.CertType(*certType),
		AuthorID: *author,
	})
	if err != nil {
		log.Fatalf("certify: %v", err)
	}

	if !res.Success {
		fmt.Printf("FAILED (score %.3f)\n", res.Score)
		for _, issue := range res.Issues {
			fmt.Printf("  issue: %s\n", issue)
		}
		for _, rec := range res.Recommendations {
			fmt.Printf("  recommend: %s\n", rec)
		}
		os.Exit(1)
	}

	bundle, err := export.WriteBundle(*out, string(content), res)
	if err != nil {
		log.Fatalf("exporting artifacts: %v", err)
	}
	fmt.Printf("CERTIFIED (score %.3f)\n", res.Score)
	fmt.Printf("  cert id:   %s\n", res.Certificate.CertID())
	fmt.Printf("  anchor:    %s\n", res.Certificate.VaultAnchor)
	fmt.Printf("  certified: %s\n", bundle.CertifiedPath)
	fmt.Printf("  signature: %s\n", bundle.SignaturePath)
	fmt.Printf("  report:    %s\n", bundle.ReportPath)
}

func cmdVerify(args []string) {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.toml")
	file := fs.String("file", "", "document to verify")
	certFile := fs.String("cert", "", "certificate JSON (omit to look up in the vault)")
	fs.Parse(args)

	if *file == "" {
		log.Fatal("verify: --file is required")
	}
	content, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("reading document: %v", err)
	}

	var certJSON []byte
	if *certFile != "" {
		certJSON, err = os.ReadFile(*certFile)
		if err != nil {
			log.Fatalf("reading certificate: %v", err)
		}
	}

	_, store, pipeline := setup(*configPath)
	defer store.Close()

	valid, errs, err := pipeline.Verify(string(content), certJSON)
	if err != nil {
		log.Fatalf("verify: %v", err)
	}
	if valid {
		fmt.Println("VALID")
		return
	}
	fmt.Println("INVALID")
	for _, e := range errs {
		fmt.Printf("  %s\n", e)
	}
	os.Exit(1)
}

func cmdList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.toml")
	limit := fs.Int("limit", 20, "max entries")
	fs.Parse(args)

	_, store, _ := setup(*configPath)
	defer store.Close()

	entries, err := store.List(*limit, 0)
	if err != nil {
		log.Fatalf("listing vault: %v", err)
	}
	for _, e := range entries {
		fmt.Printf("%s  %-15s  %s\n", e.Timestamp, e.CertType, e.CertID)
	}
}

func cmdVaultStatus(args []string) {
	fs := flag.NewFlagSet("vault-status", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.toml")
	fs.Parse(args)

	_, store, pipeline := setup(*configPath)
	defer store.Close()

	stats, err := store.Stats()
	if err != nil {
		log.Fatalf("vault stats: %v", err)
	}
	out, _ := json.MarshalIndent(map[string]any{
		"vault_path":   store.Path(),
		"genesis_hash": pipeline.GenesisHash(),
		"stats":        stats,
	}, "", "  ")
	fmt.Println(string(out))
}

func cmdMCP(args []string) {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.toml")
	fs.Parse(args)

	_, store, pipeline := setup(*configPath)
	defer store.Close()

	srv := mcp.NewServer(pipeline, store)
	if err := server.ServeStdio(srv); err != nil {
		log.Fatalf("mcp server: %v", err)
	}
}
