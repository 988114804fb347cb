package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	qrcode "github.com/skip2/go-qrcode"

	"termshare/internal/auth"
	"termshare/internal/bridge"
	"termshare/internal/constants"
	"termshare/internal/hub"
	"termshare/internal/registry"
	"termshare/internal/relay"
	"termshare/internal/security"
	"termshare/internal/server"
	"termshare/internal/terminal"
	"termshare/internal/types"
	"termshare/internal/utils"
)

func main() {
	godotenv.Load()

	command := os.Args[1:]
	if len(command) == 1 && (command[0] == "-h" || command[0] == "--help") {
		fmt.Println(constants.MsgUsage)
		fmt.Println(constants.MsgExample)
		fmt.Println("Run with no arguments to start a discovery hub.")
		return
	}
	isHub := len(command) == 0

	token := auth.NewSessionToken()
	tickets := auth.NewTicketStore(token)
	limiter := security.NewRateLimiter()

	audit, err := security.GetAuditLogger()
	if err != nil {
		log.Printf("Warning: Failed to initialize audit logger: %v", err)
	}

	reg, err := registry.New()
	if err != nil {
		log.Fatalf("Failed to initialize session registry: %v", err)
	}

	relayClient := relay.NewClient()
	hubSvc := hub.New(reg, relayClient)

	ttl := constants.SessionTTL
	name := utils.GetEnv("TERMSHARE_NAME", "")
	if isHub {
		ttl = constants.HubSessionTTL
		if name == "" {
			name = "hub"
		}
	} else if name == "" {
		name = filepath.Base(command[0])
	}

	var allowedHosts []string
	if env := utils.GetEnv("TERMSHARE_ALLOWED_ORIGINS", ""); env != "" {
		allowedHosts = strings.Split(env, ",")
	}

	manager := bridge.NewConnManager(tickets, allowedHosts, ttl, audit)

	exitCh := make(chan int, 1)
	var b *bridge.Bridge
	if !isHub {
		replayEnabled := utils.GetEnv("TERMSHARE_REPLAY", "true") != "false"
		b = bridge.New(manager, audit, os.Stdout, replayEnabled, func(code int) {
			exitCh <- code
		})
	}

	// A hub binds a well-known port so siblings and dashboards can find it;
	// interactive sessions take an ephemeral port and are reached through
	// the relay or the printed local URL.
	defaultPort := "0"
	if isHub {
		defaultPort = constants.DefaultHubPort
	}

	srv := server.New(server.Config{
		Token:        token,
		Tickets:      tickets,
		Limiter:      limiter,
		Audit:        audit,
		Bridge:       b,
		Manager:      manager,
		Hub:          hubSvc,
		IsHub:        isHub,
		AllowedHosts: allowedHosts,
		Port:         utils.GetEnv("TERMSHARE_PORT", defaultPort),
	})
	if err := srv.Start(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	port := srv.Port()

	var proc *terminal.Process
	if !isHub {
		proc, err = terminal.Start(command, constants.DefaultCols, constants.DefaultRows, b.HandleOutput, b.HandleExit)
		if err != nil {
			log.Fatalf("Failed to start %q: %v", command[0], err)
		}
		b.SetProcess(proc)

		// Local keystrokes go to the same process the viewers see.
		go io.Copy(proc, os.Stdin)
	}

	endpoint := provisionRelay(relayClient, manager, port, name)

	recordID := writeRecord(reg, token, name, port, isHub, endpoint)

	printJoinInfo(port, token, endpoint, ttl)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case <-sigChan:
		log.Println("🛑 Shutting down...")
		if proc != nil {
			proc.Close()
		}
		manager.Shutdown()
	case exitCode = <-exitCh:
		log.Printf("🏁 Session ended (exit %d)", exitCode)
	}

	srv.Shutdown()
	if endpoint != nil {
		relayClient.Teardown(endpoint.ID)
	}
	reg.Remove(recordID)
	tickets.Close()
	if audit != nil {
		audit.Close()
	}
	os.Exit(exitCode)
}

func provisionRelay(rc *relay.Client, manager *bridge.ConnManager, port int, name string) *types.RelayEndpoint {
	if !rc.Available() {
		fmt.Println(constants.ColorYellow + rc.RemediationText() + constants.ColorReset)
		return nil
	}

	endpoint, err := rc.Provision(port, name)
	if err != nil {
		log.Printf("⚠️  Relay provisioning failed: %v", err)
		fmt.Println(constants.ColorYellow + rc.RemediationText() + constants.ColorReset)
		return nil
	}

	manager.AllowHostOf(endpoint.URL)
	return endpoint
}

func writeRecord(reg *registry.Registry, token *auth.SessionToken, name string, port int, isHub bool, endpoint *types.RelayEndpoint) string {
	machine, _ := os.Hostname()
	rec := types.SessionRecord{
		ID:        uuid.New().String(),
		Token:     token.Value(),
		Name:      name,
		Port:      port,
		IsHub:     isHub,
		Machine:   machine,
		PID:       os.Getpid(),
		CreatedAt: time.Now(),
	}
	if endpoint != nil {
		rec.TunnelID = endpoint.ID
		rec.TunnelURL = endpoint.URL
	}
	if err := reg.Write(rec); err != nil {
		log.Printf("⚠️  Failed to write session record: %v", err)
	}
	return rec.ID
}

func printJoinInfo(port int, token *auth.SessionToken, endpoint *types.RelayEndpoint, ttl time.Duration) {
	localURL := fmt.Sprintf("http://127.0.0.1:%d/#%s", port, token.Value())

	fmt.Println()
	fmt.Printf("  %s🖥  Local:%s   %s%s%s\n", constants.ColorBold, constants.ColorReset, constants.ColorGreen, localURL, constants.ColorReset)
	if endpoint != nil {
		publicURL := fmt.Sprintf("%s/#%s", strings.TrimSuffix(endpoint.URL, "/"), token.Value())
		fmt.Printf("  %s🌐 Public:%s  %s%s%s\n", constants.ColorBold, constants.ColorReset, constants.ColorCyan, publicURL, constants.ColorReset)
		if qr, err := qrcode.New(publicURL, qrcode.Medium); err == nil {
			fmt.Println(qr.ToSmallString(false))
		}
	}
	fmt.Printf("  %sSession expires in %s%s\n", constants.ColorDim, utils.FormatDuration(ttl), constants.ColorReset)
	fmt.Println()
}
