package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/captionlabs/caption-core/internal/config"
	"github.com/captionlabs/caption-core/internal/protocol"
	"github.com/captionlabs/caption-core/internal/secrets"
	"github.com/nats-io/nats.go"
)

// captionctl tails the caption stream from a running captiond, and manages
// the locally stored service credential.
func main() {
	var (
		server    string
		subject   string
		setAPIKey bool
	)

	flag.StringVar(&server, "server", nats.DefaultURL, "NATS server URL")
	flag.StringVar(&subject, "subject", protocol.SubjectCaptionDisplay, "Caption subject to subscribe to")
	flag.BoolVar(&setAPIKey, "set-api-key", false, "Read an API key from stdin and store it encrypted")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if setAPIKey {
		storeAPIKey(logger)
		return
	}

	conn, err := nats.Connect(server, nats.Name("captionctl"))
	if err != nil {
		logger.Error("failed to connect", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer conn.Close()

	sub, err := conn.Subscribe(subject, func(msg *nats.Msg) {
		var caption protocol.Caption
		if err := json.Unmarshal(msg.Data, &caption); err != nil {
			logger.Warn("malformed caption", slog.String("error", err.Error()))
			return
		}
		if caption.Text == "" {
			return
		}
		fmt.Printf("%s  %s\n", caption.Timestamp.Local().Format("15:04:05"), caption.Text)
	})
	if err != nil {
		logger.Error("failed to subscribe", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer sub.Drain()

	logger.Info("listening for captions", slog.String("subject", subject))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
}

func storeAPIKey(logger *slog.Logger) {
	fmt.Fprint(os.Stderr, "API key: ")
	var key string
	if _, err := fmt.Scanln(&key); err != nil || key == "" {
		logger.Error("no API key provided")
		os.Exit(1)
	}
	store := secrets.NewStore(config.Default().Secrets, logger)
	if err := store.Save(key); err != nil {
		logger.Error("failed to store API key", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("API key stored")
}
