package tui

import (
	"context"
	"fmt"
	"image"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ryanlrappa/geo-testing/internal/capture"
	"github.com/ryanlrappa/geo-testing/internal/config"
	"github.com/ryanlrappa/geo-testing/internal/rbridge"
	"github.com/ryanlrappa/geo-testing/internal/rscript"
	"github.com/ryanlrappa/geo-testing/internal/storage"
	"github.com/ryanlrappa/geo-testing/internal/viz"
)

var (
	cyan   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white  = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	green  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	red    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
)

type kind struct {
	name     string
	info     string
	multi    bool
	lookback bool
}

var kinds = []kind{
	{"market", "power analysis diagnostic", false, false},
	{"deep-dive", "power curves for one market", false, true},
	{"multicell", "stacked lift across cells", true, false},
	{"multicell-deep-dive", "stacked power curves", true, true},
}

type state int

const (
	stateMenu state = iota
	stateParams
	stateBusy
	stateView
)

type model struct {
	state  state
	cursor int

	fields      []string // editable param fields, ids first
	fieldLabels []string
	fieldCursor int

	exec  rbridge.Executor
	cfg   *config.Config
	store *storage.Store

	img     image.Image
	png     []byte
	caption string
	savedID string
	err     error

	width  int
	height int
}

type resultMsg struct {
	img     image.Image
	png     []byte
	caption string
}

type errMsg struct{ err error }

// Run starts the interactive session against an already-open executor.
func Run(exec rbridge.Executor, cfg *config.Config, store *storage.Store) error {
	m := &model{
		state:  stateMenu,
		exec:   exec,
		cfg:    cfg,
		store:  store,
		width:  80,
		height: 24,
	}
	p := tea.NewProgram(m)
	_, err := p.Run()
	return err
}

func (m *model) Init() tea.Cmd { return nil }

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case resultMsg:
		m.img = msg.img
		m.png = msg.png
		m.caption = msg.caption
		m.err = nil
		m.savedID = ""
		m.state = stateView
		return m, nil
	case errMsg:
		m.err = msg.err
		m.state = stateView
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if key == "ctrl+c" {
		return m, tea.Quit
	}

	switch m.state {
	case stateMenu:
		switch key {
		case "q", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(kinds)-1 {
				m.cursor++
			}
		case "enter":
			m.setupParams()
			m.state = stateParams
		}
	case stateParams:
		switch key {
		case "esc":
			m.state = stateMenu
		case "tab", "down":
			m.fieldCursor = (m.fieldCursor + 1) % len(m.fields)
		case "up":
			m.fieldCursor = (m.fieldCursor + len(m.fields) - 1) % len(m.fields)
		case "enter":
			return m, m.startCapture()
		case "backspace":
			f := m.fields[m.fieldCursor]
			if len(f) > 0 {
				m.fields[m.fieldCursor] = f[:len(f)-1]
			}
		default:
			if len(key) == 1 && strings.ContainsAny(key, "0123456789, ") {
				m.fields[m.fieldCursor] += key
			}
		}
	case stateView:
		switch key {
		case "q":
			return m, tea.Quit
		case "esc", "enter":
			m.state = stateMenu
		case "s":
			if m.err == nil && m.savedID == "" && m.store != nil {
				m.saveResult()
			}
		}
	}
	return m, nil
}

func (m *model) setupParams() {
	k := kinds[m.cursor]
	m.fields = []string{""}
	if k.multi {
		m.fieldLabels = []string{"market ids (comma separated)"}
	} else {
		m.fieldLabels = []string{"market id"}
	}
	if k.lookback {
		m.fields = append(m.fields, strconv.Itoa(m.cfg.Power.Lookback))
		m.fieldLabels = append(m.fieldLabels, "lookback window")
	}
	m.fieldCursor = 0
}

func (m *model) params() (ids []int, lookback int, err error) {
	for _, part := range strings.Split(m.fields[0], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, 0, fmt.Errorf("bad market id %q", part)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, 0, rscript.ErrNoMarkets
	}
	lookback = m.cfg.Power.Lookback
	if len(m.fields) > 1 {
		lookback, err = strconv.Atoi(strings.TrimSpace(m.fields[1]))
		if err != nil {
			return nil, 0, fmt.Errorf("bad lookback %q", m.fields[1])
		}
	}
	return ids, lookback, nil
}

func (m *model) startCapture() tea.Cmd {
	k := kinds[m.cursor]
	ids, lookback, err := m.params()
	if err != nil {
		return func() tea.Msg { return errMsg{err} }
	}

	objects := rscript.Objects{
		Data:       m.cfg.Objects.Data,
		Selections: m.cfg.Objects.Selections,
		Markets:    m.cfg.Objects.Markets,
	}
	opts := capture.Options{
		Width:      m.cfg.Plot.Width,
		Height:     m.cfg.Plot.Height,
		PointSize:  m.cfg.Plot.PointSize,
		Background: m.cfg.Plot.Background,
	}

	var plot rscript.Plot
	switch k.name {
	case "market":
		plot, err = rscript.MarketPlot(objects, ids[0])
	case "deep-dive":
		plot, err = rscript.MarketDeepDive(objects, ids[0], lookback, powerParams(m.cfg.Power))
	case "multicell":
		plot, err = rscript.MulticellPlot(objects, ids)
	case "multicell-deep-dive":
		plot, err = rscript.MulticellDeepDive(objects, ids, lookback, powerParams(m.cfg.MulticellPower))
	}
	if err != nil {
		return func() tea.Msg { return errMsg{err} }
	}

	m.state = stateBusy
	exec := m.exec
	caption := fmt.Sprintf("%s %v", k.name, ids)
	return func() tea.Msg {
		res, err := capture.Capture(context.Background(), exec, plot, opts)
		if err != nil {
			return errMsg{err}
		}
		return resultMsg{img: res.Image, png: res.PNG, caption: caption}
	}
}

func (m *model) saveResult() {
	k := kinds[m.cursor]
	ids, lookback, err := m.params()
	if err != nil {
		return
	}
	meta := storage.PlotMetadata{
		Kind:      k.name,
		MarketIDs: ids,
		Width:     m.cfg.Plot.Width,
		Height:    m.cfg.Plot.Height,
	}
	if k.lookback {
		meta.Lookback = lookback
	}
	id, err := m.store.Save(meta, m.png)
	if err != nil {
		m.err = err
		return
	}
	m.savedID = id
}

func powerParams(p config.PowerConfig) rscript.PowerParams {
	return rscript.PowerParams{
		EffectFrom: p.EffectFrom,
		EffectTo:   p.EffectTo,
		EffectStep: p.EffectStep,
		CPIC:       p.CPIC,
		SideOfTest: p.SideOfTest,
	}
}

func (m *model) View() string {
	var b strings.Builder
	b.WriteString(cyan.Render("geolift") + dim.Render("  GeoLift plot session") + "\n\n")

	switch m.state {
	case stateMenu:
		for i, k := range kinds {
			cursor := "  "
			style := white
			if i == m.cursor {
				cursor = cyan.Render("> ")
				style = cyan
			}
			b.WriteString(fmt.Sprintf("%s%s  %s\n", cursor, style.Render(k.name), dim.Render(k.info)))
		}
		b.WriteString("\n" + dim.Render("enter select · q quit"))
	case stateParams:
		b.WriteString(white.Render(kinds[m.cursor].name) + "\n\n")
		for i, label := range m.fieldLabels {
			marker := "  "
			if i == m.fieldCursor {
				marker = cyan.Render("> ")
			}
			b.WriteString(fmt.Sprintf("%s%s: %s\n", marker, dim.Render(label), white.Render(m.fields[i]+"_")))
		}
		b.WriteString("\n" + dim.Render("enter run · tab next field · esc back"))
	case stateBusy:
		b.WriteString(yellow.Render("running R, this can take a while for power simulations..."))
	case stateView:
		if m.err != nil {
			b.WriteString(red.Render("error: ") + m.err.Error() + "\n")
		} else {
			b.WriteString(viz.RenderHalfBlocks(m.img, m.width-2))
			b.WriteString(dim.Render(m.caption) + "\n")
			if m.savedID != "" {
				b.WriteString(green.Render("saved: "+m.savedID) + "\n")
			}
		}
		b.WriteString(dim.Render("s save · esc back · q quit"))
	}
	return b.String()
}
