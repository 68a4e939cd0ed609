// wsprobe connects to a tickerstream server, subscribes to the given
// symbols, and prints every price update to the console.
//
// Usage: go run ./cmd/wsprobe -addr ws://localhost:8080/ws BTCUSD ETHUSD
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"tickerstream/internal/model"
)

func main() {
	addr := flag.String("addr", "ws://localhost:8080/ws", "websocket endpoint")
	user := flag.String("user", "", "subscriber identity (default: random)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	symbols := flag.Args()
	if len(symbols) == 0 {
		logger.Error("no symbols given")
		fmt.Fprintln(os.Stderr, "usage: wsprobe [-addr URL] [-user ID] SYMBOL...")
		os.Exit(1)
	}

	userID := *user
	if userID == "" {
		userID = "wsprobe-" + uuid.NewString()[:8]
	}

	conn, _, err := websocket.DefaultDialer.Dial(*addr, nil)
	if err != nil {
		logger.Error("dial failed", "addr", *addr, "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	logger.Info("connected", "addr", *addr, "user_id", userID)

	for _, sym := range symbols {
		cmd := model.ClientCommand{Action: model.ActionAddTicker, Ticker: sym, UserID: userID}
		if err := conn.WriteJSON(cmd); err != nil {
			logger.Error("subscribe failed", "symbol", sym, "error", err)
			os.Exit(1)
		}
		logger.Info("subscribed", "symbol", sym)
	}

	// Unsubscribe politely on Ctrl-C.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("unsubscribing...")
		for _, sym := range symbols {
			cmd := model.ClientCommand{Action: model.ActionRemoveTicker, Ticker: sym, UserID: userID}
			conn.WriteJSON(cmd)
		}
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			logger.Info("connection closed", "error", err)
			return
		}

		var update model.PriceUpdate
		if err := json.Unmarshal(data, &update); err != nil {
			logger.Warn("unexpected message", "data", string(data))
			continue
		}

		if update.Price == model.PriceNotFound {
			fmt.Printf("%s  %-12s  NOT FOUND\n", time.Now().Format(time.TimeOnly), update.Ticker)
			continue
		}
		fmt.Printf("%s  %-12s  %g\n", time.Now().Format(time.TimeOnly), update.Ticker, update.Price)
	}
}
