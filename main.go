package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"zed/storypicker"
	"zed/zmachine"
)

var (
	noHighlight bool
	plainOutput bool
	randomSeed  int64
	saveDir     string
)

var rootCmd = &cobra.Command{
	Use:   "zed [story file]",
	Short: "A terminal interpreter for version 3 Z-machine story files",
	Long: `zed runs Infocom-style interactive fiction story files written for
version 3 of the Z-machine. Give it a .z3 file, or run it with no arguments
to pick a story from the interactive fiction archive.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		var storyBytes []byte
		var storyName string

		if len(args) == 1 {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			storyBytes = data
			storyName = filepath.Base(args[0])
		} else {
			name, data, err := storypicker.Pick(cacheDir())
			if err != nil {
				return err
			}
			if data == nil { // User backed out of the picker
				return nil
			}
			storyBytes = data
			storyName = name
		}

		os.Exit(runStory(cmd, storyBytes, storyName))
		return nil
	},
}

func runStory(cmd *cobra.Command, storyBytes []byte, storyName string) int {
	outputChannel := make(chan any)
	inputChannel := make(chan zmachine.InputResponse)
	saveRestoreChannel := make(chan zmachine.SaveRestoreResponse)

	z, err := zmachine.LoadRom(storyBytes, inputChannel, saveRestoreChannel, outputChannel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", storyName, err)
		return 1
	}

	if cmd.Flags().Changed("seed") {
		z.SeedRandom(randomSeed)
	}

	savePath := defaultSavePath(storyName)

	if plainOutput {
		return runPlain(z, inputChannel, saveRestoreChannel, outputChannel, savePath)
	}

	var highlighter *strings.Replacer
	if !noHighlight {
		highlighter = newNameHighlighter(z)
	}

	model := newStoryModel(z, inputChannel, saveRestoreChannel, outputChannel, highlighter, savePath)
	tui := tea.NewProgram(model, tea.WithAltScreen())

	finalModel, err := tui.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		return 1
	}

	if m, ok := finalModel.(storyModel); ok && m.runtimeError != "" {
		fmt.Fprintf(os.Stderr, "%s\n", m.runtimeError)
		return 1
	}

	return 0
}

// defaultSavePath derives the save filename from the story name, replacing
// the .z3 extension, e.g. "zork1.z3" becomes "zork1.sav"
func defaultSavePath(storyName string) string {
	base := storyName
	ext := filepath.Ext(base)
	if len(ext) >= 2 && (ext[1] == 'z' || ext[1] == 'Z') {
		base = base[:len(base)-len(ext)]
	}
	if base == "" {
		base = "game"
	}
	return filepath.Join(saveDir, base+".sav")
}

func cacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "zed")
}

func init() {
	rootCmd.Flags().BoolVar(&noHighlight, "no-highlight", false, "disable styling of object names in narrative text")
	rootCmd.Flags().BoolVar(&plainOutput, "plain", false, "suppress all ANSI output and run on plain stdio")
	rootCmd.Flags().Int64Var(&randomSeed, "seed", 0, "seed the random number generator for reproducible play")
	rootCmd.Flags().StringVar(&saveDir, "save-dir", ".", "directory for save files")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}
}
