package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"elmbridge/internal/bridge"
	"elmbridge/internal/config"
	"elmbridge/internal/link"
	"elmbridge/internal/logger"
	"elmbridge/internal/monitor"
	"elmbridge/web"
)

func main() {
	configPath := flag.String("config", "/etc/elmbridge/config.yaml", "Path to config file")
	demo := flag.Bool("demo", false, "Run with a simulated ELM327 adapter")
	port := flag.Int("port", 0, "Override bridge TCP port (default 35000)")
	listenAddr := flag.String("listen", "", "Override monitor listen address (e.g. :8080)")
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("[main] elmbridge starting")

	cfg := config.Load(*configPath)

	if *demo {
		cfg.Link.Type = "demo"
	}
	if *port != 0 {
		cfg.Bridge.Port = *port
	}
	if *listenAddr != "" {
		cfg.Monitor.ListenAddr = *listenAddr
	}

	// Create context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("[main] received %v, shutting down", sig)
		cancel()
	}()

	// Vehicle-side link
	var lnk link.Link
	switch cfg.Link.Type {
	case "serial":
		lnk = link.NewSerial(cfg.Link.Serial)
	default:
		lnk = link.NewDemo()
	}

	// Connect with exponential backoff, non-blocking — the bridge starts
	// regardless and answers NO BLUETOOTH CONNECTION until the link is up.
	go connectWithRetry(ctx, lnk.Name(), lnk, 10)

	br := bridge.New(lnk)

	exchangeLog := logger.New(cfg.Logging)
	defer exchangeLog.Close()

	if cfg.Monitor.Enabled {
		mon := monitor.New(cfg, br, web.FS)
		br.SetStatusFunc(func(running bool, client string) {
			logStatus(running, client)
			mon.BroadcastStatus(running, client)
		})
		br.SetRecorder(multiRecorder{exchangeLog, mon})

		if !br.Start(cfg.Bridge.Port) {
			log.Fatalf("[main] could not bind port %d", cfg.Bridge.Port)
		}
		log.Printf("[main] %s", br.ConnectionInfo())

		if err := mon.Run(ctx); err != nil {
			log.Printf("[main] monitor exited: %v", err)
		}
	} else {
		br.SetStatusFunc(logStatus)
		br.SetRecorder(multiRecorder{exchangeLog})

		if !br.Start(cfg.Bridge.Port) {
			log.Fatalf("[main] could not bind port %d", cfg.Bridge.Port)
		}
		log.Printf("[main] %s", br.ConnectionInfo())

		<-ctx.Done()
	}

	br.Stop()
	lnk.Close()
}

func logStatus(running bool, client string) {
	switch {
	case !running:
		log.Printf("[status] bridge stopped")
	case client != "":
		log.Printf("[status] client connected: %s", client)
	default:
		log.Printf("[status] running, waiting for client")
	}
}

// multiRecorder fans one exchange out to several recorders.
type multiRecorder []bridge.Recorder

func (m multiRecorder) Record(ex bridge.Exchange) {
	for _, r := range m {
		r.Record(ex)
	}
}

// connectable is satisfied by all link implementations.
type connectable interface {
	Connect() error
	Close() error
}

// connectWithRetry attempts to connect with exponential backoff.
// Starts at 1s, doubles each attempt up to 60s, retries up to maxAttempts
// then continues at max interval indefinitely.
func connectWithRetry(ctx context.Context, name string, c connectable, maxAttempts int) {
	delay := 1 * time.Second
	maxDelay := 60 * time.Second
	attempt := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := c.Connect(); err != nil {
			attempt++
			if attempt <= maxAttempts {
				log.Printf("[%s] connect attempt %d/%d failed: %v (retry in %v)",
					name, attempt, maxAttempts, err, delay)
			} else {
				log.Printf("[%s] connect attempt %d failed: %v (retry in %v)",
					name, attempt, err, delay)
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}

			delay *= 2
			if delay > maxDelay {
				delay = maxDelay
			}
		} else {
			log.Printf("[%s] connected successfully (attempt %d)", name, attempt+1)
			return
		}
	}
}
