// gametest runs story files headless as a regression harness: it loads every
// .z3 file in a directory, optionally feeds it a script of commands, and
// records the transcript of each run as JSON.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"zed/zmachine"
)

// TestResult captures the outcome of running a single game
type TestResult struct {
	Filename     string   `json:"filename"`
	Success      bool     `json:"success"`
	PanicMessage string   `json:"panic_message,omitempty"`
	StackTrace   string   `json:"stack_trace,omitempty"`
	Transcript   []string `json:"transcript,omitempty"`
	ErrorMessage string   `json:"error_message,omitempty"`
}

func main() {
	storiesDir := flag.String("stories", "stories", "Directory containing v3 story files")
	outputDir := flag.String("output", "testdata", "Directory to write results to")
	singleGame := flag.String("game", "", "Test a single game file instead of all games")
	scriptPath := flag.String("script", "", "File of commands to feed the game, one per line")
	seed := flag.Int64("seed", 1, "Random seed so runs are reproducible")
	flag.Parse()

	script, err := loadScript(*scriptPath)
	if err != nil {
		fmt.Printf("Failed to read script: %v\n", err)
		os.Exit(1)
	}

	if *singleGame != "" {
		runSingleGame(*singleGame, script, *seed)
		return
	}

	runAllGames(*storiesDir, *outputDir, script, *seed)
}

func loadScript(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() // nolint:errcheck

	var commands []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		commands = append(commands, scanner.Text())
	}
	return commands, scanner.Err()
}

func runAllGames(storiesDir, outputDir string, script []string, seed int64) {
	entries, err := os.ReadDir(storiesDir)
	if err != nil {
		fmt.Printf("Failed to read stories directory: %v\n", err)
		fmt.Println("Run 'go run ./cmd/scraper' first to download games.")
		os.Exit(1)
	}

	var games []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".z3") {
			games = append(games, filepath.Join(storiesDir, entry.Name()))
		}
	}

	if len(games) == 0 {
		fmt.Printf("No v3 game files found in %s\n", storiesDir)
		os.Exit(1)
	}

	fmt.Printf("Found %d games to test\n", len(games))

	var results []TestResult

	for i, gamePath := range games {
		result := runGameTest(gamePath, script, seed)
		results = append(results, result)

		status := "ok"
		if !result.Success {
			status = "FAIL"
		}
		fmt.Printf("[%d/%d] %-4s %s\n", i+1, len(games), status, filepath.Base(gamePath))
		if !result.Success && result.ErrorMessage != "" {
			fmt.Printf("        Error: %s\n", result.ErrorMessage)
		}
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		fmt.Printf("Failed to create output directory: %v\n", err)
		os.Exit(1)
	}

	resultsPath := filepath.Join(outputDir, "test_results.json")
	resultsJSON, _ := json.MarshalIndent(results, "", "  ")
	if err := os.WriteFile(resultsPath, resultsJSON, 0644); err != nil {
		fmt.Printf("Failed to write results: %v\n", err)
	} else {
		fmt.Printf("\nResults written to %s\n", resultsPath)
	}

	passed := 0
	for _, r := range results {
		if r.Success {
			passed++
		}
	}
	fmt.Printf("\n=== SUMMARY ===\nPassed: %d\nFailed: %d\nTotal: %d\n", passed, len(results)-passed, len(results))
}

func runSingleGame(gamePath string, script []string, seed int64) {
	result := runGameTest(gamePath, script, seed)

	fmt.Printf("Game: %s\n", result.Filename)
	fmt.Printf("Success: %v\n", result.Success)

	if result.PanicMessage != "" {
		fmt.Printf("Panic: %s\n", result.PanicMessage)
		fmt.Printf("Stack: %s\n", result.StackTrace)
	}

	if result.ErrorMessage != "" {
		fmt.Printf("Error: %s\n", result.ErrorMessage)
	}

	fmt.Printf("Transcript:\n%s\n", strings.Join(result.Transcript, "\n"))
}

func runGameTest(gamePath string, script []string, seed int64) (result TestResult) {
	result.Filename = filepath.Base(gamePath)

	defer func() {
		if r := recover(); r != nil {
			result.Success = false
			result.PanicMessage = fmt.Sprintf("%v", r)
			result.StackTrace = string(debug.Stack())
		}
	}()

	storyBytes, err := os.ReadFile(gamePath)
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("Failed to read file: %v", err)
		return
	}

	outputChannel := make(chan any, 100)
	inputChannel := make(chan zmachine.InputResponse, 10)
	saveRestoreChannel := make(chan zmachine.SaveRestoreResponse, 1)

	z, err := zmachine.LoadRom(storyBytes, inputChannel, saveRestoreChannel, outputChannel)
	if err != nil {
		result.ErrorMessage = err.Error()
		return
	}
	z.SeedRandom(seed)

	go z.Run()

	var transcript []string
	nextCommand := 0
	timeout := time.After(10 * time.Second)

	for {
		select {
		case msg := <-outputChannel:
			switch v := msg.(type) {
			case string:
				transcript = append(transcript, strings.Split(v, "\n")...)
			case zmachine.StateChangeRequest:
				if v != zmachine.WaitForInput {
					continue
				}
				if nextCommand < len(script) {
					transcript = append(transcript, "> "+script[nextCommand])
					inputChannel <- zmachine.InputResponse{Text: script[nextCommand]}
					nextCommand++
				} else {
					inputChannel <- zmachine.InputResponse{Quit: true}
				}
			case zmachine.Save:
				saveRestoreChannel <- zmachine.SaveResponse{Success: false}
			case zmachine.Restore:
				saveRestoreChannel <- zmachine.RestoreResponse{Success: false}
			case zmachine.RuntimeError:
				result.ErrorMessage = string(v)
				result.Transcript = transcript
				return
			case zmachine.Quit:
				result.Success = true
				result.Transcript = transcript
				return
			}
		case <-timeout:
			result.ErrorMessage = "Timeout waiting for the game to finish"
			result.Transcript = transcript
			return
		}
	}
}
