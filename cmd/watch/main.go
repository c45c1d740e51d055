// Command watch tails the forklift server's live websocket feed.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/gorilla/websocket"

	"forklift-backend/models"
)

func main() {
	var (
		url    = flag.String("url", "ws://localhost:3000/websocket/web", "ws url")
		action = flag.String("cmd", "", "command to send after connecting (start|pause|stop|reset|step)")
		only   = flag.String("types", "", "comma separated message types to print (default: all)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[watch] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if *action != "" {
		cmd := models.NewMessage(models.MessageTypeCommand, models.CommandData{Action: *action})
		if err := conn.WriteJSON(cmd); err != nil {
			logger.Fatalf("send command: %v", err)
		}
	}

	filter := parseTypes(*only)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg feedMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		if len(filter) > 0 && !filter[msg.Type] {
			continue
		}
		logger.Println(describe(msg))
	}
}

// feedMessage keeps Data raw so each type decodes into its own shape.
type feedMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

func parseTypes(s string) map[string]bool {
	out := map[string]bool{}
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out[t] = true
		}
	}
	return out
}

func describe(msg feedMessage) string {
	switch msg.Type {
	case models.MessageTypeSystemInfo:
		var info models.SystemInfo
		if json.Unmarshal(msg.Data, &info) == nil {
			return fmt.Sprintf("SYSTEM %s (clients=%d)", info.Message, info.ConnectedClients)
		}

	case models.MessageTypeSnapshot:
		var snap models.EngineSnapshot
		if json.Unmarshal(msg.Data, &snap) == nil {
			return fmt.Sprintf("SNAPSHOT state=%s carrier=(%d,%d) queue=%d delivered=%d/%d",
				snap.State, snap.Carrier.X, snap.Carrier.Y, len(snap.Queue), snap.Progress.Delivered, snap.Progress.Total)
		}

	case models.MessageTypeEngineEvent:
		var ev models.EngineEvent
		if json.Unmarshal(msg.Data, &ev) == nil {
			line := fmt.Sprintf("EVENT #%d %s state=%s", ev.Seq, ev.Type, ev.Snapshot.State)
			if ev.Record != nil {
				line += fmt.Sprintf(" delivered=%s aisle=%s energy=%.1f", ev.Record.Item.ID, ev.Record.Item.Aisle, ev.Record.Energy)
			} else if ev.Item != nil {
				line += fmt.Sprintf(" item=%s aisle=%s target=(%d,%d)", ev.Item.ID, ev.Item.Aisle, ev.Item.Target.X, ev.Item.Target.Y)
			}
			return line
		}

	case models.MessageTypeQueueUpdate:
		var queue []models.Item
		if json.Unmarshal(msg.Data, &queue) == nil {
			aisles := make([]string, 0, len(queue))
			for _, it := range queue {
				aisles = append(aisles, it.Aisle)
			}
			return fmt.Sprintf("QUEUE %d [%s]", len(queue), strings.Join(aisles, " "))
		}

	case models.MessageTypePathUpdate:
		var path []models.PathNode
		if json.Unmarshal(msg.Data, &path) == nil {
			if len(path) == 0 {
				return "PATH (none)"
			}
			end := path[len(path)-1]
			return fmt.Sprintf("PATH %d steps -> (%d,%d)", len(path), end.X, end.Y)
		}

	case models.MessageTypePosition:
		var pos models.Position
		if json.Unmarshal(msg.Data, &pos) == nil {
			return fmt.Sprintf("POSITION (%d,%d)", pos.X, pos.Y)
		}

	case models.MessageTypeNarration:
		var n models.NarrationData
		if json.Unmarshal(msg.Data, &n) == nil {
			return "NARRATION " + n.Text
		}
	}
	return fmt.Sprintf("%s %s", strings.ToUpper(msg.Type), string(msg.Data))
}
