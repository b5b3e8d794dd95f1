package main

import (
	"bufio"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/0xcro3dile/ragchat-go/internal/domain/entities"
)

func newChatCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "chat <file>",
		Short: "Chat with a local document from the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			a, log, err := flags.start(ctx, nil)
			if err != nil {
				return err
			}
			defer shutdown(a, log)

			path := args[0]
			id, err := a.Sessions.CreateSession(ctx, entities.CorpusSource{Path: path, Name: filepath.Base(path)})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Session %s ready. Ask away (Ctrl-D to quit).\n", id)

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "> ")
				if !scanner.Scan() {
					fmt.Fprintln(out)
					return scanner.Err()
				}
				question := strings.TrimSpace(scanner.Text())
				if question == "" {
					continue
				}

				stream, err := a.Sessions.Ask(ctx, id, question)
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					printErr(cmd, "Error: %v", err)
					continue
				}
				for f := range stream.Fragments() {
					fmt.Fprint(out, f.String())
				}
				fmt.Fprintln(out)
				if ctx.Err() != nil {
					return nil
				}
			}
		},
	}
}
