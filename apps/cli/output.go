package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/hsannu/connect/core/chat"
)

// Output formats
const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

func (cli *commandLine) checkOutput() error {
	switch strings.ToLower(cli.output) {
	case outputText, outputJSON, outputYAML:
		cli.output = strings.ToLower(cli.output)
		return nil
	default:
		return errors.Errorf("unknown output format %q (want text, json or yaml)", cli.output)
	}
}

// print writes v in the selected format; text renders it with the given function.
func (cli *commandLine) print(v interface{}, text func(w io.Writer)) error {
	switch cli.output {
	case outputJSON:
		enc := json.NewEncoder(cli.out)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(v), "encoding json")
	case outputYAML:
		// through JSON so that keys and timestamps match the json output
		data, err := json.Marshal(v)
		if err != nil {
			return errors.Wrap(err, "encoding json")
		}
		var doc interface{}
		if err = json.Unmarshal(data, &doc); err != nil {
			return errors.Wrap(err, "decoding json")
		}
		enc := yaml.NewEncoder(cli.out)
		enc.SetIndent(2)
		if err = enc.Encode(doc); err != nil {
			return errors.Wrap(err, "encoding yaml")
		}
		return errors.Wrap(enc.Close(), "encoding yaml")
	default:
		text(cli.out)
		return nil
	}
}

func formatTime(ts chat.Timestamp) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format("2006-01-02 15:04")
}

func writeConversations(w io.Writer, convs []chat.Conversation) {
	if len(convs) == 0 {
		fmt.Fprintln(w, "No conversations.")
		return
	}
	for _, conv := range convs {
		unread := ""
		if conv.UnreadCount > 0 {
			unread = fmt.Sprintf(" (%d unread)", conv.UnreadCount)
		}
		fmt.Fprintf(w, "#%d  %s%s  %s\n", conv.ID, conv.Primary().DisplayName(), unread, formatTime(chat.NewTimestamp(conv.LatestActivity())))
		if preview := conv.Preview(); preview != "" {
			fmt.Fprintf(w, "    %s\n", preview)
		}
	}
}

func writeMessage(w io.Writer, msg chat.Message) {
	fmt.Fprintf(w, "[%s] %s: %s\n", formatTime(msg.CreatedAt), msg.SenderName, msg.Content)
}

func writeMessages(w io.Writer, msgs []chat.Message) {
	if len(msgs) == 0 {
		fmt.Fprintln(w, "No messages yet.")
		return
	}
	for _, msg := range msgs {
		writeMessage(w, msg)
	}
}
