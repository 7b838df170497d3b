// chatkit is a terminal runner for the marketplace chat widget engine:
// it connects one local identity to the chat backend, opens a thread
// with a counterpart and relays stdin lines as messages.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/estately/chatkit/boot"
	"github.com/estately/chatkit/identity"
	"github.com/estately/chatkit/widget"
)

var (
	flagUID         = flag.String("uid", "", "log in as this user id (persisted for later runs)")
	flagToken       = flag.String("token", "", "bearer token for --uid")
	flagCounterpart = flag.String("counterpart", "", "user id to chat with (required)")
)

func main() {
	flag.Parse()

	// NOTE: os.Exit() does not call defers.
	os.Exit(run())
}

func run() int {
	defer glog.Flush()

	if *flagCounterpart == "" {
		return errorf("--counterpart is required")
	}

	conf, err := boot.Load(context.Background())
	if err != nil {
		return errorf("config: %v", err)
	}

	ids, err := identity.Open(conf.IdentityDB)
	if err != nil {
		return errorf("identity store: %v", err)
	}
	defer ids.Close()

	if *flagUID != "" {
		if *flagToken == "" {
			return errorf("--token is required with --uid")
		}
		if err := ids.Save(identity.Identity{UserID: *flagUID, Token: *flagToken}); err != nil {
			return errorf("save identity: %v", err)
		}
	}

	id, err := ids.Load()
	if err != nil {
		return errorf("no identity: log in once with --uid and --token: %v", err)
	}

	if conf.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(
				prometheus.DefaultGatherer,
				promhttp.HandlerOpts{},
			))
			if err := http.ListenAndServe(conf.MetricsAddr, mux); err != nil {
				glog.Errorf("metrics: serve error: %v", err)
			}
		}()
	}

	w := widget.New(widget.Config{
		WsURL:    conf.WsURL,
		APIURL:   conf.APIURL,
		Entitled: conf.Entitled,
	}, id)
	defer w.Close()

	// A failed connect is not fatal: the widget degrades to local-only
	// rendering and sends go through the retry watchdog.
	w.Connect()

	if err := w.Open(context.Background(), *flagCounterpart); err != nil {
		return errorf("open thread: %v", err)
	}

	fmt.Printf("chatting as %s with %s (type a message, /resend <id>, ctrl-d to quit)\n",
		id.UserID, *flagCounterpart)

	done := make(chan struct{})
	go printLoop(w, done)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigCh
		os.Stdin.Close()
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/resend ") {
			id := strings.TrimPrefix(line, "/resend ")
			if !w.Resend(id) {
				fmt.Printf("! nothing failed with id %s\n", id)
			}
			continue
		}

		w.Typing(true)
		m := w.Send(line, nil, nil)
		w.Typing(false)
		glog.V(5).Infof("sent %s", m.ID)
	}

	close(done)
	return 0
}

// printLoop renders new messages and typing transitions as they land.
func printLoop(w *widget.Widget, done <-chan struct{}) {
	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()

	var seen int
	var typing string

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			msgs := w.Render()
			for ; seen < len(msgs); seen++ {
				m := msgs[seen]
				fmt.Printf("[%s] %s: %s\n", m.Status, m.From, m.Text)
			}

			if party := w.TypingParty(); party != typing {
				typing = party
				if party != "" {
					fmt.Printf("... %s is typing\n", party)
				}
			}
		}
	}
}

func errorf(format string, args ...interface{}) int {
	glog.Errorf(format, args...)
	return 1
}
