// Package storypicker shows an interactive chooser over the if-archive's
// z-code index, filtered to the version 3 story files this interpreter can
// run. The index and downloaded stories are cached on disk.
package storypicker

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const indexURL = "https://www.ifarchive.org/indexes/if-archive/games/zcode/"
const cacheDuration = 7 * 24 * time.Hour

var storyFilePattern = regexp.MustCompile(`\.z3$`)
var releaseDatePattern = regexp.MustCompile(`\d{2}-\w{3}-\d{4}`)

var docStyle = lipgloss.NewStyle().Margin(1, 2)

type pickerState int

const (
	loadingStoryList pickerState = iota
	choosingStory    pickerState = iota
	downloadingStory pickerState = iota
)

type story struct {
	name        string
	releaseDate time.Time
	url         string
	description string
}

func (s story) Title() string       { return s.name }
func (s story) Description() string { return s.description }
func (s story) FilterValue() string { return s.name + s.description }

type pickerModel struct {
	state             pickerState
	storyList         list.Model
	spinner           spinner.Model
	err               error
	cacheDir          string
	selectedStoryName string
	storyBytes        []byte
}

type storiesDownloadedMsg []list.Item
type downloadedStoryMsg []uint8
type errMsg struct{ error }

func (e errMsg) Error() string { return e.error.Error() }

// Pick runs the chooser and returns the selected story. A nil byte slice
// with a nil error means the user backed out.
func Pick(cacheDir string) (string, []byte, error) {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	model := pickerModel{
		state:     loadingStoryList,
		storyList: list.New(make([]list.Item, 0), list.NewDefaultDelegate(), 0, 0),
		spinner:   s,
		cacheDir:  cacheDir,
	}

	finalModel, err := tea.NewProgram(model).Run()
	if err != nil {
		return "", nil, err
	}

	picker := finalModel.(pickerModel)
	if picker.err != nil {
		return "", nil, picker.err
	}

	return picker.selectedStoryName, picker.storyBytes, nil
}

func (m pickerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, downloadStoryList(m.cacheDir))
}

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			s, selected := m.storyList.SelectedItem().(story)
			if selected {
				m.state = downloadingStory
				m.selectedStoryName = s.name

				return m, downloadStory(s, m.cacheDir)
			}
		}

	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		m.storyList.SetSize(msg.Width-h, msg.Height-v)

	case storiesDownloadedMsg:
		m.state = choosingStory
		m.storyList.SetShowStatusBar(false)
		m.storyList.SetShowTitle(false)
		return m, m.storyList.SetItems([]list.Item(msg))

	case downloadedStoryMsg:
		m.storyBytes = []byte(msg)
		return m, tea.Quit

	case errMsg:
		m.err = msg
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.storyList, cmd = m.storyList.Update(msg)
	return m, cmd
}

func (m pickerModel) View() string {
	if m.err != nil {
		return docStyle.Render(m.err.Error())
	}

	switch m.state {
	case loadingStoryList:
		return fmt.Sprintf("\n\n   %s Loading stories...\n\n", m.spinner.View())
	case choosingStory:
		return docStyle.Render(m.storyList.View())
	case downloadingStory:
		return fmt.Sprintf("\n\n   %s Downloading %s...\n\n", m.spinner.View(), m.selectedStoryName)
	default:
		return ""
	}
}

// cacheFilePath generates a cache file path for a given key (URL or
// identifier)
func cacheFilePath(cacheDir, key string) string {
	hash := sha256.Sum256([]byte(key))
	return filepath.Join(cacheDir, hex.EncodeToString(hash[:]))
}

func isCacheValid(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) < cacheDuration
}

type cachedStoryList struct {
	Stories []cachedStory `json:"stories"`
}

type cachedStory struct {
	Name        string    `json:"name"`
	ReleaseDate time.Time `json:"release_date"`
	URL         string    `json:"url"`
	Description string    `json:"description"`
}

func downloadStory(s story, cacheDir string) tea.Cmd {
	return func() tea.Msg {
		if cacheDir != "" {
			cachePath := cacheFilePath(cacheDir, s.url)
			if isCacheValid(cachePath) {
				data, err := os.ReadFile(cachePath)
				if err == nil {
					return downloadedStoryMsg(data)
				}
			}
		}

		c := &http.Client{Timeout: 60 * time.Second}
		res, err := c.Get(s.url)
		if err != nil {
			return errMsg{err}
		}
		defer res.Body.Close() // nolint:errcheck

		storyBytes, err := io.ReadAll(res.Body)
		if err != nil {
			return errMsg{err}
		}

		if cacheDir != "" {
			if err := os.MkdirAll(cacheDir, 0755); err == nil {
				os.WriteFile(cacheFilePath(cacheDir, s.url), storyBytes, 0644) // nolint:errcheck
			}
		}

		return downloadedStoryMsg(storyBytes)
	}
}

func downloadStoryList(cacheDir string) tea.Cmd {
	return func() tea.Msg {
		if cacheDir != "" {
			cachePath := cacheFilePath(cacheDir, "storylist")
			if isCacheValid(cachePath) {
				data, err := os.ReadFile(cachePath)
				if err == nil {
					var cached cachedStoryList
					if json.Unmarshal(data, &cached) == nil {
						var stories []list.Item
						for _, cs := range cached.Stories {
							stories = append(stories, story{
								name:        cs.Name,
								releaseDate: cs.ReleaseDate,
								url:         cs.URL,
								description: cs.Description,
							})
						}
						return storiesDownloadedMsg(stories)
					}
				}
			}
		}

		c := &http.Client{Timeout: 10 * time.Second}
		res, err := c.Get(indexURL)
		if err != nil {
			return errMsg{err}
		}
		defer res.Body.Close() // nolint:errcheck
		if res.StatusCode != 200 {
			return errMsg{fmt.Errorf("story index returned status %d", res.StatusCode)}
		}

		doc, err := goquery.NewDocumentFromReader(res.Body)
		if err != nil {
			return errMsg{err}
		}

		var stories []list.Item

		doc.Find("dl dt").Each(func(i int, s *goquery.Selection) {
			title := strings.Replace(s.Find("a").Text(), "◆", "", 1)
			href, _ := s.Find("a").Attr("href")

			if !storyFilePattern.MatchString(href) {
				return
			}

			releaseDate, _ := time.Parse("02-Jan-2006", releaseDatePattern.FindString(s.Find("span").Text()))
			var description string

			s.NextUntil("dt").Each(func(j int, s2 *goquery.Selection) {
				if len(s2.ChildrenFiltered("p").Nodes) == 1 {
					description = s2.Find("p").Text()
				}
			})

			stories = append(stories, story{
				name:        title,
				releaseDate: releaseDate,
				url:         "https://www.ifarchive.org" + href,
				description: description,
			})
		})

		if cacheDir != "" {
			if err := os.MkdirAll(cacheDir, 0755); err == nil {
				var cached cachedStoryList
				for _, item := range stories {
					s := item.(story)
					cached.Stories = append(cached.Stories, cachedStory{
						Name:        s.name,
						ReleaseDate: s.releaseDate,
						URL:         s.url,
						Description: s.description,
					})
				}
				data, _ := json.Marshal(cached)
				os.WriteFile(cacheFilePath(cacheDir, "storylist"), data, 0644) // nolint:errcheck
			}
		}

		return storiesDownloadedMsg(stories)
	}
}
