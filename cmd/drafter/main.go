// Command drafter is a terminal editor for forum drafts. Typing autosaves the
// draft to the server after a short pause.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"forum/autosave"
	"forum/client"
	"forum/config"
	"forum/editor"

	"github.com/chzyer/readline"
)

func main() {
	cfg, err := config.LoadDrafter()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	api := client.New(cfg.APIURL, client.WithToken(cfg.Token))

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          editor.Prompt(autosave.Status{}),
		HistoryFile:     cfg.HistoryFile,
		InterruptPrompt: "^C",
		EOFPrompt:       ":quit",
	})
	if err != nil {
		log.Fatalf("Failed to initialize readline: %v", err)
	}
	defer rl.Close()

	session := editor.NewSession(api, rl.Stdout(),
		autosave.WithDelay(cfg.AutosaveDelay),
		autosave.WithSaveTimeout(cfg.SaveTimeout),
		autosave.WithStatusFunc(func(st autosave.Status) {
			rl.SetPrompt(editor.Prompt(st))
			rl.Refresh()
		}),
	)

	fmt.Fprintf(rl.Stdout(), "Connected to %s. Use :help for the list of commands.\n", cfg.APIURL)
	if cfg.Token == "" {
		fmt.Fprintln(rl.Stdout(), "Sign in with :login <email> <password> before typing.")
	}

	ctx := context.Background()
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			fmt.Fprintln(rl.Stdout(), "Use :quit to save and exit.")
			continue
		}
		if errors.Is(err, io.EOF) {
			line = ":quit"
		} else if err != nil {
			log.Printf("Error reading input: %v", err)
			line = ":quit"
		}

		err = session.Execute(ctx, strings.TrimRight(line, "\r"))
		if errors.Is(err, editor.ErrQuit) {
			break
		}
		if err != nil {
			fmt.Fprintln(rl.Stdout(), "Error:", err)
		}
		rl.SetPrompt(session.Prompt())
	}
	fmt.Println("Goodbye!")
}
