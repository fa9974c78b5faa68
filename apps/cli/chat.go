package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/hsannu/connect/core/chat"
)

func (cli *commandLine) conversationsCmd() *cobra.Command {
	var query string

	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"ls"},
		Short:   "List conversations, most recent first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var data chat.SearchRequest
			data.Query = query
			if err := data.Validate(cli.validate); err != nil {
				return err
			}
			usr, err := cli.currentUser()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			ctrl := cli.newController(usr, cli.chatOpts)
			defer ctrl.Stop()

			if err = ctrl.Start(ctx); err != nil {
				return err
			}
			convs := ctrl.State().Conversations
			if data.Query != "" {
				convs, _ = ctrl.RunSearch(ctx, data.Query)
			}
			return cli.print(convs, func(w io.Writer) {
				writeConversations(w, convs)
			})
		},
	}
	cmd.Flags().StringVarP(&query, "search", "s", "", "Only conversations whose participant or messages contain QUERY")
	return cmd
}

func (cli *commandLine) messagesCmd() *cobra.Command {
	var conversationID int

	cmd := &cobra.Command{
		Use:   "messages -c ID",
		Short: "Show the messages of a conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			usr, err := cli.currentUser()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			ctrl := cli.newController(usr, cli.chatOpts)
			defer ctrl.Stop()

			if err = ctrl.Start(ctx); err != nil {
				return err
			}
			if err = ctrl.SelectConversation(ctx, conversationID); err != nil {
				return err
			}
			msgs := ctrl.State().Messages
			return cli.print(msgs, func(w io.Writer) {
				if name := ctrl.OtherParticipantName(); name != "" {
					fmt.Fprintf(w, "Conversation with %s\n\n", name)
				}
				writeMessages(w, msgs)
			})
		},
	}
	cmd.Flags().IntVarP(&conversationID, "conversation", "c", 0, "Conversation id")
	_ = cmd.MarkFlagRequired("conversation")
	return cmd
}

func (cli *commandLine) sendCmd() *cobra.Command {
	var conversationID int
	var content string

	cmd := &cobra.Command{
		Use:   "send -c ID -m TEXT",
		Short: "Send a message to a conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data := chat.SendRequest{Content: content}
			if err := data.Validate(cli.validate); err != nil {
				return err
			}
			usr, err := cli.currentUser()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			ctrl := cli.newController(usr, cli.chatOpts)
			defer ctrl.Stop()

			if err = ctrl.SelectConversation(ctx, conversationID); err != nil {
				return err
			}
			msg, err := ctrl.SendMessage(ctx, data.Content)
			if err != nil {
				return err
			}
			if msg == nil {
				return errors.New("message not sent")
			}
			return cli.print(msg, func(w io.Writer) {
				writeMessage(w, *msg)
			})
		},
	}
	cmd.Flags().IntVarP(&conversationID, "conversation", "c", 0, "Conversation id")
	cmd.Flags().StringVarP(&content, "message", "m", "", "Message text")
	_ = cmd.MarkFlagRequired("conversation")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

// watchCmd prints the messages of a conversation as they arrive, until interrupted.
func (cli *commandLine) watchCmd() *cobra.Command {
	var conversationID int

	cmd := &cobra.Command{
		Use:   "watch -c ID",
		Short: "Follow a conversation until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if conversationID <= 0 {
				return errors.Errorf("invalid conversation id %d", conversationID)
			}
			usr, err := cli.currentUser()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var mu sync.Mutex
			seen := make(map[int]bool)
			opts := cli.chatOpts
			opts.OnChange = func(st chat.State) {
				if st.SelectedID != conversationID {
					return
				}
				mu.Lock()
				defer mu.Unlock()
				for _, msg := range st.Messages {
					if seen[msg.ID] {
						continue
					}
					seen[msg.ID] = true
					if err := cli.print(msg, func(w io.Writer) { writeMessage(w, msg) }); err != nil {
						cli.logger.Error("printing message", err)
					}
				}
			}
			ctrl := cli.newController(usr, opts)
			defer ctrl.Stop()

			if err = ctrl.SelectConversation(ctx, conversationID); err != nil {
				return err
			}
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().IntVarP(&conversationID, "conversation", "c", 0, "Conversation id")
	_ = cmd.MarkFlagRequired("conversation")
	return cmd
}
