package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"zed/zmachine"
)

type runningStoryState int

const (
	appRunning         runningStoryState = iota
	appWaitingForInput runningStoryState = iota
)

type storyModel struct {
	outputChannel      <-chan any
	sendChannel        chan<- zmachine.InputResponse
	saveRestoreChannel chan<- zmachine.SaveRestoreResponse
	zMachine           *zmachine.ZMachine
	statusBar          zmachine.StatusBar
	lowerWindowText    string
	appState           runningStoryState
	inputBox           textinput.Model
	width              int
	height             int
	statusBarStyle     lipgloss.Style
	highlighter        *strings.Replacer
	savePath           string
	runtimeError       string
}

func newStoryModel(z *zmachine.ZMachine, inputChannel chan<- zmachine.InputResponse, saveRestoreChannel chan<- zmachine.SaveRestoreResponse, outputChannel <-chan any, highlighter *strings.Replacer, savePath string) storyModel {
	ti := textinput.New()
	ti.Focus()
	ti.CharLimit = 120
	ti.Prompt = ""

	return storyModel{
		outputChannel:      outputChannel,
		sendChannel:        inputChannel,
		saveRestoreChannel: saveRestoreChannel,
		zMachine:           z,
		appState:           appRunning,
		inputBox:           ti,
		statusBarStyle:     lipgloss.NewStyle().Reverse(true),
		highlighter:        highlighter,
		savePath:           savePath,
	}
}

func (m storyModel) Init() tea.Cmd {
	return tea.Batch(
		waitForInterpreter(m.outputChannel),
		runInterpreter(m.zMachine),
		tea.WindowSize(),
	)
}

func runInterpreter(z *zmachine.ZMachine) tea.Cmd {
	return func() tea.Msg {
		z.Run()
		return nil
	}
}

func (m storyModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			if m.appState == appWaitingForInput {
				m.sendChannel <- zmachine.InputResponse{Quit: true}
			}
			return m, tea.Quit
		}

		if m.appState == appWaitingForInput && msg.Type == tea.KeyEnter {
			m.appState = appRunning
			m.lowerWindowText += m.inputBox.Value() + "\n"
			m.sendChannel <- zmachine.InputResponse{Text: m.inputBox.Value()}
			m.inputBox.SetValue("")
		}

	case textUpdateMessage:
		text := string(msg)
		if m.highlighter != nil {
			text = m.highlighter.Replace(text)
		}
		m.lowerWindowText += text
		return m, waitForInterpreter(m.outputChannel)

	case statusBarMessage:
		m.statusBar = zmachine.StatusBar(msg)
		return m, waitForInterpreter(m.outputChannel)

	case zmachine.StateChangeRequest:
		if msg == zmachine.WaitForInput {
			m.appState = appWaitingForInput
		}
		return m, waitForInterpreter(m.outputChannel)

	case saveRequestMessage:
		err := os.WriteFile(m.savePath, msg.Data, 0644)
		m.saveRestoreChannel <- zmachine.SaveResponse{Success: err == nil}
		return m, waitForInterpreter(m.outputChannel)

	case restoreRequestMessage:
		data, err := os.ReadFile(m.savePath)
		m.saveRestoreChannel <- zmachine.RestoreResponse{Success: err == nil, Data: data}
		return m, waitForInterpreter(m.outputChannel)

	case soundEffectMessage:
		fmt.Print("\a")
		return m, waitForInterpreter(m.outputChannel)

	case ignoredMessage:
		return m, waitForInterpreter(m.outputChannel)

	case warningMessage:
		fmt.Fprintf(os.Stderr, "%s\n", string(msg))
		return m, waitForInterpreter(m.outputChannel)

	case runtimeErrorMessage:
		m.runtimeError = string(msg)
		return m, tea.Quit
	}

	if m.appState == appWaitingForInput {
		m.inputBox, cmd = m.inputBox.Update(msg)
	}

	return m, cmd
}

func createStatusLine(width int, placeName string, scoreOrHours int, movesOrMinutes int, isTimeBasedGame bool) string {
	rightHandSide := fmt.Sprintf("Score: %d    Moves: %d", scoreOrHours, movesOrMinutes)

	if isTimeBasedGame {
		rightHandSide = fmt.Sprintf("Time: %d:%02d", scoreOrHours, movesOrMinutes)
	}

	// Too narrow to show properly so just show as much of the score/time as
	// we can manage
	if len(rightHandSide) >= width {
		return rightHandSide[:width]
	}

	if len(placeName)+len(rightHandSide)+1 >= width {
		return fmt.Sprintf("%s %s", placeName[:width-len(rightHandSide)-1], rightHandSide)
	}

	numberSpaces := width - len(placeName) - len(rightHandSide)

	return fmt.Sprintf("%s%s%s", placeName, strings.Repeat(" ", numberSpaces), rightHandSide)
}

func (m storyModel) View() string {
	if m.runtimeError != "" {
		errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true)
		return fmt.Sprintf("\n%s\n\n%s\n", errorStyle.Render("Z-machine error:"), m.runtimeError)
	}

	// Wait until the terminal has reported its size before drawing anything
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	s := strings.Builder{}
	lowerWindowHeight := m.height

	if m.statusBar.PlaceName != "" {
		s.WriteString(m.statusBarStyle.Render(createStatusLine(m.width, m.statusBar.PlaceName, m.statusBar.Score, m.statusBar.Moves, m.statusBar.IsTimeBased)))
		s.WriteString("\n")
		lowerWindowHeight -= 2
	}

	wordWrappedBody := wordwrap.String(m.lowerWindowText, m.width)
	lines := strings.Split(wordWrappedBody, "\n")

	if len(lines) > lowerWindowHeight-2 {
		lines = lines[len(lines)-lowerWindowHeight+2:]
	}
	s.WriteString(strings.Join(lines, "\n"))

	if m.appState == appWaitingForInput {
		s.WriteString(m.inputBox.View())
	}

	return s.String()
}

// Message wrappers so bubbletea's type switch stays distinct from the raw
// interpreter vocabulary
type textUpdateMessage string
type statusBarMessage zmachine.StatusBar
type saveRequestMessage zmachine.Save
type restoreRequestMessage zmachine.Restore
type soundEffectMessage zmachine.SoundEffectRequest
type runtimeErrorMessage zmachine.RuntimeError
type warningMessage zmachine.Warning
type ignoredMessage struct{}

func waitForInterpreter(sub <-chan any) tea.Cmd {
	return func() tea.Msg {
		msg := <-sub
		switch msg := msg.(type) {
		case string:
			return textUpdateMessage(msg)
		case zmachine.StatusBar:
			return statusBarMessage(msg)
		case zmachine.StateChangeRequest:
			return msg
		case zmachine.Save:
			return saveRequestMessage(msg)
		case zmachine.Restore:
			return restoreRequestMessage(msg)
		case zmachine.SoundEffectRequest:
			return soundEffectMessage(msg)
		case zmachine.UpperWindowText, zmachine.SplitWindow, zmachine.SetWindow:
			// This host has no upper window; a v3 story using one still plays
			return ignoredMessage{}
		case zmachine.Warning:
			return warningMessage(msg)
		case zmachine.RuntimeError:
			return runtimeErrorMessage(msg)
		case zmachine.Quit:
			return tea.Quit()
		default:
			return runtimeErrorMessage("invalid message type sent from interpreter")
		}
	}
}
