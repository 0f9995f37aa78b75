// Package main provides a terminal chat client for the Greanly server.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/naavyaberiwal-glitch/myAI3/internal/client"
	"github.com/naavyaberiwal-glitch/myAI3/internal/config"
	"github.com/naavyaberiwal-glitch/myAI3/internal/domain"
	"github.com/naavyaberiwal-glitch/myAI3/internal/profile"
	"github.com/naavyaberiwal-glitch/myAI3/internal/store"
)

func main() {
	cfg := config.Load()
	serverURL := flag.String("server", cfg.ServerURL, "Chat server URL")
	storePath := flag.String("store", cfg.StorePath, "Path to the local conversation store")
	flag.Parse()

	log.SetFlags(log.Ltime)

	db, err := store.NewSQLiteStore(*storePath)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer db.Close()

	session := client.NewSession(client.NewStreamClient(*serverURL), db)
	session.SetObserver(renderEvent)
	session.Hydrate()

	printTranscript(session.Conversation(), session.Durations())

	fmt.Println("\nType a message and press Enter to send.")
	fmt.Println("Commands: /suggest, /clear, /quit. Ctrl+C stops a streaming answer.")

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			return
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		switch input {
		case "/quit":
			fmt.Println("Bye!")
			return
		case "/clear":
			session.Clear()
			fmt.Println("Chat cleared.")
			printTranscript(session.Conversation(), session.Durations())
			continue
		case "/suggest":
			p := profile.Extract(session.Conversation())
			for _, s := range profile.Suggestions(p) {
				fmt.Printf("  - %s\n", s)
			}
			continue
		}

		done, err := session.Submit(input)
		if err != nil {
			log.Printf("Submit failed: %v", err)
			continue
		}

		// Drop any interrupt pressed while idle at the prompt; it must
		// not stop the turn that was just submitted.
		select {
		case <-interrupt:
		default:
		}

		select {
		case <-interrupt:
			session.Stop()
			fmt.Println("\n[stopped]")
		case err := <-done:
			if session.Status() == client.StatusError {
				if err == nil {
					fmt.Println("\n[the answer failed partway, you can resubmit]")
				} else {
					fmt.Printf("\n[error: %v, you can resubmit]\n", err)
				}
			} else if msg := session.Conversation().LastMessage(); msg != nil {
				if ms, ok := session.Durations()[msg.ID]; ok {
					fmt.Printf("\n[answered in %.1fs]\n", float64(ms)/1000)
				} else {
					fmt.Println()
				}
			}
		}
	}
}

// renderEvent prints stream activity as it is applied by the reconciler.
func renderEvent(ev domain.StreamEvent) {
	switch ev.Type {
	case domain.EventTypeTextDelta:
		fmt.Print(ev.Delta)
	case domain.EventTypeToolInvocation:
		fmt.Printf("\n[%s...]\n", ev.ToolName)
	}
}

func printTranscript(conversation domain.Conversation, durations domain.DurationMap) {
	for _, msg := range conversation {
		label := "You"
		if msg.Role == domain.RoleAssistant {
			label = "Greanly"
		}
		fmt.Printf("\n%s: %s", label, msg.Text())
		if ms, ok := durations[msg.ID]; ok {
			fmt.Printf("  (%.1fs)", float64(ms)/1000)
		}
		fmt.Println()
	}
}
