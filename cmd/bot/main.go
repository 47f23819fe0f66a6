package main

import (
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"stackhold.gg/internal/protocol"
)

// A small exerciser client: joins, shuffles stacks between its own
// containers, and prints every result it gets back.
func main() {
	var (
		url  = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name = flag.String("name", "bot", "player name")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		PlayerName:      *name,
		Capabilities: protocol.HelloCapabilities{
			MaxQueue: 8,
		},
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	var containers []protocol.ContainerRef
	var nextID uint64

	for {
		select {
		case <-stop:
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			containers = w.Containers
			logger.Printf("WELCOME player_id=%s tick_rate=%d containers=%d", w.PlayerID, w.StoreParams.TickRateHz, len(w.Containers))

		case protocol.TypeUpdate:
			var u protocol.UpdateMsg
			if err := json.Unmarshal(msg, &u); err != nil {
				continue
			}
			for _, res := range u.Results {
				if res.OK {
					logger.Printf("t=%d cmd=%d ok", u.Tick, res.ID)
				} else {
					logger.Printf("t=%d cmd=%d failed code=%s msg=%q", u.Tick, res.ID, res.Code, res.Message)
				}
			}
			for _, cu := range u.Containers {
				logger.Printf("t=%d container=%s changes=%d", u.Tick, cu.Container, len(cu.Changes))
			}
			shuffle(conn, rng, containers, &nextID)
		}
	}
}

// shuffle occasionally moves a random slot of the main container somewhere
// else, swapping when the destination disagrees.
func shuffle(conn *websocket.Conn, rng *rand.Rand, containers []protocol.ContainerRef, nextID *uint64) {
	if len(containers) < 2 || rng.Intn(4) != 0 {
		return
	}
	src := containers[0]
	dst := containers[rng.Intn(len(containers))]
	*nextID++
	cmd := protocol.CmdMsg{
		Type:            protocol.TypeCmd,
		ProtocolVersion: protocol.Version,
		Commands: []protocol.CommandReq{
			{
				ID:        *nextID,
				Op:        protocol.OpMove,
				From:      src.Container,
				FromSlot:  rng.Intn(src.Capacity),
				To:        dst.Container,
				ToSlot:    rng.Intn(dst.Capacity),
				Amount:    1 + rng.Intn(16),
				AllowSwap: true,
			},
		},
	}
	_ = conn.WriteJSON(cmd)
}
