package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/TermiX-official/BscA2A-agent/sdk/go/bscagent"
)

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/tasks", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			w.WriteHeader(http.StatusAccepted)
			_ = json.NewEncoder(w).Encode(bscagent.Record{Task: bscagent.Task{
				ID:    "task-demo",
				State: "working",
				Messages: []bscagent.Message{
					{Role: "user", Parts: []bscagent.Part{{Text: "check my balance"}}},
				},
			}})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/v1/tasks/task-demo", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(bscagent.Record{Task: bscagent.Task{
			ID:    "task-demo",
			State: "completed",
			Messages: []bscagent.Message{
				{Role: "user", Parts: []bscagent.Part{{Text: "check my balance"}}},
				{Role: "agent", Parts: []bscagent.Part{{Text: "Working on your DeFi request..."}}},
				{Role: "agent", Parts: []bscagent.Part{{Text: "Native Balance (BNB): 0.42"}}},
			},
		}})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := bscagent.NewClient(srv.URL, srv.Client())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	record, err := client.SendMessage(ctx, "check my balance")
	if err != nil {
		panic(err)
	}
	fmt.Printf("submitted task %s (state=%s)\n", record.Task.ID, record.Task.State)

	final, err := client.GetTask(ctx, record.Task.ID)
	if err != nil {
		panic(err)
	}
	fmt.Printf("task %s finished with %q\n", final.Task.ID, final.Reply())
}
