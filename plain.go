package main

import (
	"bufio"
	"fmt"
	"os"

	"zed/zmachine"
)

// runPlain drives the interpreter with no terminal UI at all: narrative on
// stdout, input from stdin, no ANSI, no status bar. Useful for piping
// transcripts and for terminals that can't take styling.
func runPlain(z *zmachine.ZMachine, inputChannel chan<- zmachine.InputResponse, saveRestoreChannel chan<- zmachine.SaveRestoreResponse, outputChannel <-chan any, savePath string) int {
	stdin := bufio.NewScanner(os.Stdin)
	exitCode := 0

	go z.Run()

	for msg := range outputChannel {
		switch msg := msg.(type) {
		case string:
			fmt.Print(msg)

		case zmachine.UpperWindowText, zmachine.StatusBar, zmachine.SplitWindow, zmachine.SetWindow:
			// No windowing and no status bar in plain mode

		case zmachine.SoundEffectRequest:
			fmt.Print("\a")

		case zmachine.StateChangeRequest:
			if msg != zmachine.WaitForInput {
				continue
			}
			if !stdin.Scan() {
				inputChannel <- zmachine.InputResponse{Quit: true}
				continue
			}
			inputChannel <- zmachine.InputResponse{Text: stdin.Text()}

		case zmachine.Save:
			err := os.WriteFile(savePath, msg.Data, 0644)
			saveRestoreChannel <- zmachine.SaveResponse{Success: err == nil}

		case zmachine.Restore:
			data, err := os.ReadFile(savePath)
			saveRestoreChannel <- zmachine.RestoreResponse{Success: err == nil, Data: data}

		case zmachine.Warning:
			fmt.Fprintf(os.Stderr, "%s\n", msg)

		case zmachine.RuntimeError:
			fmt.Fprintf(os.Stderr, "%s\n", msg)
			exitCode = 1

		case zmachine.Quit:
			return exitCode
		}
	}

	return exitCode
}
