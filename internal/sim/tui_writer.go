package sim

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"netsim/internal/config"
	"netsim/internal/device"
	"netsim/internal/stats"
	"netsim/internal/traffic"
)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

// transferMsg carries one transfer event into the model.
type transferMsg struct{ ev traffic.TransferEvent }

// alertMsg carries an alert log line.
type alertMsg struct{ line string }

// resetMsg clears the stats table.
type resetMsg struct{}

const tuiLogLimit = 500

// TUIWriter renders the live event stream using a bubbletea TUI.
type TUIWriter struct {
	program    teaProgram
	done       chan struct{}
	sendSignal atomic.Bool
}

// NewTUIWriter starts a bubbletea program and returns a TUIWriter.
func NewTUIWriter(cfg *config.SimulationConfig, reg *device.Registry) *TUIWriter {
	w := &TUIWriter{done: make(chan struct{})}
	w.sendSignal.Store(true)
	m := newTUIModel(cfg, reg)
	p := tea.NewProgram(m, tea.WithAltScreen())
	w.program = p
	go func() {
		defer close(w.done)
		if _, err := p.Run(); err != nil {
			fmt.Println("TUI error:", err)
		}
		w.sendSignal.Store(false)
	}()
	return w
}

// WriteTransfer implements EventWriter.
func (w *TUIWriter) WriteTransfer(ev traffic.TransferEvent) error {
	if !w.sendSignal.Load() {
		return nil
	}
	w.program.Send(transferMsg{ev: ev})
	return nil
}

// WriteAlert implements EventWriter.
func (w *TUIWriter) WriteAlert(ev traffic.AlertEvent) error {
	if !w.sendSignal.Load() {
		return nil
	}
	line := fmt.Sprintf("%s[%s]%s %sALERT%s device=%d %s",
		colorGray, time.Now().Format(time.RFC3339), colorReset,
		colorRed, colorReset, ev.DeviceID, ev.Message)
	w.program.Send(alertMsg{line: line})
	return nil
}

// WriteReset implements EventWriter.
func (w *TUIWriter) WriteReset() error {
	if !w.sendSignal.Load() {
		return nil
	}
	w.program.Send(resetMsg{})
	return nil
}

// Close shuts down the TUI program and waits for cleanup.
func (w *TUIWriter) Close() error {
	w.sendSignal.Store(false)
	if w.program != nil {
		w.program.Send(tea.Quit())
	}
	if w.done != nil {
		<-w.done
	}
	return nil
}

type tuiModel struct {
	cfg        *config.SimulationConfig
	reg        *device.Registry
	names      map[int]string
	table      table.Model
	vp         viewport.Model
	alertVP    viewport.Model
	logs       []string
	alerts     []string
	perDevice  map[int]stats.Snapshot
	global     stats.Global
	wrap       bool
	autoscroll bool
	height     int
}

var (
	tuiTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	tuiAlertStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	tuiFooterStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func newTUIModel(cfg *config.SimulationConfig, reg *device.Registry) tuiModel {
	cols := []table.Column{
		{Title: "ID", Width: 4},
		{Title: "Device", Width: 18},
		{Title: "Sent", Width: 10},
		{Title: "Received", Width: 10},
		{Title: "Transfers", Width: 10},
	}
	names := make(map[int]string)
	for _, d := range reg.Devices() {
		names[d.ID] = d.Name
	}
	t := table.New(table.WithColumns(cols), table.WithHeight(reg.Len()+1))
	m := tuiModel{
		cfg:        cfg,
		reg:        reg,
		names:      names,
		table:      t,
		vp:         viewport.New(0, 0),
		alertVP:    viewport.New(0, 0),
		perDevice:  make(map[int]stats.Snapshot),
		autoscroll: true,
	}
	m.refreshTable()
	return m
}

func (m tuiModel) Init() tea.Cmd { return nil }

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.table.SetWidth(msg.Width)
		m.vp.Width = msg.Width
		m.alertVP.Width = msg.Width
		m.height = msg.Height
		m.resize()
		m.refreshViewports()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "w":
			m.wrap = !m.wrap
			m.refreshViewports()
		case "s":
			m.autoscroll = !m.autoscroll
			if m.autoscroll {
				m.vp.GotoBottom()
				m.alertVP.GotoBottom()
			}
		case "j", "down":
			if !m.autoscroll {
				m.vp.LineDown(1)
			}
		case "k", "up":
			if !m.autoscroll {
				m.vp.LineUp(1)
			}
		}
	case transferMsg:
		ev := msg.ev
		m.perDevice[ev.FromID] = ev.FromStats
		m.perDevice[ev.ToID] = ev.ToStats
		m.global.TransferCount++
		m.global.TotalBytes += ev.Bytes
		m.logs = append(m.logs, m.formatTransfer(ev))
		if len(m.logs) > tuiLogLimit {
			m.logs = m.logs[len(m.logs)-tuiLogLimit:]
		}
		m.refreshTable()
		m.refreshViewports()
	case alertMsg:
		m.alerts = append(m.alerts, msg.line)
		if len(m.alerts) > tuiLogLimit {
			m.alerts = m.alerts[len(m.alerts)-tuiLogLimit:]
		}
		m.resize()
		m.refreshViewports()
	case resetMsg:
		m.perDevice = make(map[int]stats.Snapshot)
		m.global = stats.Global{}
		m.refreshTable()
	}
	return m, nil
}

func (m tuiModel) View() string {
	var b strings.Builder
	b.WriteString(tuiTitleStyle.Render("netsim — live traffic"))
	b.WriteString(fmt.Sprintf("  transfers=%d total=%s\n", m.global.TransferCount, stats.FormatBytes(m.global.TotalBytes)))
	b.WriteString(m.table.View())
	b.WriteString("\n")
	if len(m.alerts) > 0 {
		b.WriteString(tuiAlertStyle.Render("Alerts"))
		b.WriteString("\n")
		b.WriteString(m.alertVP.View())
		b.WriteString("\n")
	}
	b.WriteString(m.vp.View())
	b.WriteString("\n")
	b.WriteString(tuiFooterStyle.Render("q quit · w wrap · s autoscroll · j/k scroll"))
	return b.String()
}

func (m *tuiModel) resize() {
	alertLines := len(m.alerts)
	if alertLines > 4 {
		alertLines = 4
	}
	m.alertVP.Height = alertLines
	h := m.height - m.table.Height() - m.alertVP.Height - 4
	if h < 0 {
		h = 0
	}
	m.vp.Height = h
}

func (m *tuiModel) refreshTable() {
	var rows []table.Row
	for _, d := range m.reg.Devices() {
		s := m.perDevice[d.ID]
		rows = append(rows, table.Row{
			strconv.Itoa(d.ID),
			d.Name,
			stats.FormatBytes(s.BytesSent),
			stats.FormatBytes(s.BytesReceived),
			strconv.FormatInt(s.TransferCount, 10),
		})
	}
	// Devices outside the registry should not normally appear, but a
	// replayed log may reference them.
	var extra []int
	for id := range m.perDevice {
		if _, ok := m.names[id]; !ok {
			extra = append(extra, id)
		}
	}
	sort.Ints(extra)
	for _, id := range extra {
		s := m.perDevice[id]
		rows = append(rows, table.Row{
			strconv.Itoa(id),
			fmt.Sprintf("#%d", id),
			stats.FormatBytes(s.BytesSent),
			stats.FormatBytes(s.BytesReceived),
			strconv.FormatInt(s.TransferCount, 10),
		})
	}
	m.table.SetRows(rows)
}

func (m *tuiModel) refreshViewports() {
	var lines []string
	for _, l := range m.logs {
		if m.wrap {
			lines = append(lines, wordwrap.String(l, m.vp.Width))
		} else {
			lines = append(lines, l)
		}
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
	m.alertVP.SetContent(strings.Join(m.alerts, "\n"))
	if m.autoscroll {
		m.vp.GotoBottom()
		m.alertVP.GotoBottom()
	}
}

func (m *tuiModel) formatTransfer(ev traffic.TransferEvent) string {
	name := func(id int) string {
		if n, ok := m.names[id]; ok {
			return n
		}
		return fmt.Sprintf("#%d", id)
	}
	protoColor := colorGreen
	if ev.Protocol == traffic.ProtocolUDP {
		protoColor = colorYellow
	}
	return fmt.Sprintf("%s[%s]%s %s%s%s -> %s%s%s %s%s%s %s%s%s",
		colorGray, ev.Timestamp.Format("15:04:05"), colorReset,
		colorCyan, name(ev.FromID), colorReset,
		colorBlue, name(ev.ToID), colorReset,
		protoColor, ev.Protocol, colorReset,
		colorMagenta, stats.FormatBytes(ev.Bytes), colorReset)
}
