// agenthub CLI - command line peer for the agent hub relay
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ubhp-protocol/agenthub/clients/go/agenthub"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	hubURL := os.Getenv("HUB_URL")
	if hubURL == "" {
		hubURL = "ws://localhost:8080/"
	}

	cmd := os.Args[1]

	switch cmd {
	case "listen":
		id := "cli"
		kind := "client"
		if len(os.Args) > 2 {
			id = os.Args[2]
		}
		if len(os.Args) > 3 {
			kind = os.Args[3]
		}

		client := agenthub.NewClient(hubURL, id, kind)
		client.Token = os.Getenv("HUB_PEER_TOKEN")
		exitOnError(client.Connect(context.Background()))
		defer client.Close()

		fmt.Fprintf(os.Stderr, "listening as %s (%s)\n", id, kind)
		for {
			env, err := client.Receive()
			exitOnError(err)
			ts := time.UnixMilli(env.Timestamp).Format("2006-01-02 15:04:05")
			fmt.Printf("[%s] %s %s->%s (%s): %s\n", ts, env.Meta.Channel, env.From, env.To, env.Type, string(env.Content))
		}

	case "send":
		if len(os.Args) < 5 {
			fmt.Fprintln(os.Stderr, "Usage: agenthub send <id> <channel> <message> [to]")
			os.Exit(1)
		}
		id, channel, message := os.Args[2], os.Args[3], os.Args[4]
		to := ""
		if len(os.Args) > 5 {
			to = os.Args[5]
		}

		kind := "client"
		if channel == agenthub.ChannelAgentToAgent || channel == agenthub.ChannelAgentToUser {
			kind = "agent"
		}

		client := agenthub.NewClient(hubURL, id, kind)
		client.Token = os.Getenv("HUB_PEER_TOKEN")
		exitOnError(client.Connect(context.Background()))
		defer client.Close()

		exitOnError(client.SendContent(channel, to, "text", map[string]string{"text": message}))
		fmt.Println("sent")

	case "bridge-send":
		if len(os.Args) < 4 {
			fmt.Fprintln(os.Stderr, "Usage: agenthub bridge-send <sender> <message> [receiver]")
			os.Exit(1)
		}
		sender, message := os.Args[2], os.Args[3]
		receiver := ""
		if len(os.Args) > 4 {
			receiver = os.Args[4]
		}

		bridgeURL := os.Getenv("BRIDGE_URL")
		if bridgeURL == "" {
			bridgeURL = "http://localhost:8081"
		}

		bc := agenthub.NewBridgeClient(bridgeURL)
		bc.APIKey = os.Getenv("API_KEY")
		bc.Bearer = os.Getenv("BRIDGE_TOKEN")

		content, _ := json.Marshal(map[string]string{"text": message})
		resp, err := bc.Send(context.Background(), agenthub.SendRequest{
			Sender:   sender,
			Receiver: receiver,
			Content:  content,
		})
		exitOnError(err)
		printJSON(resp)

	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `agenthub - relay CLI

Commands:
  listen <id> [kind]                    connect and print envelopes
  send <id> <channel> <message> [to]    send an envelope over WebSocket
  bridge-send <sender> <message> [to]   post an envelope via the bridge

Environment:
  HUB_URL          hub WebSocket URL (default ws://localhost:8080/)
  BRIDGE_URL       bridge base URL (default http://localhost:8081)
  HUB_PEER_TOKEN   peer token when the hub requires auth
  API_KEY          bridge API key
  BRIDGE_TOKEN     bridge bearer token`)
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}
