// Package main – watch subcommand: live failover view rendered with bubbletea + lipgloss.
package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/i-melnichenko/ha-failover/internal/failover"
	"github.com/i-melnichenko/ha-failover/internal/notify"
	admingrpc "github.com/i-melnichenko/ha-failover/internal/transport/grpc/admin"
)

const (
	watchRefreshInterval = time.Second
	watchReconnectDelay  = 2 * time.Second
	watchEventHistory    = 12
)

// ---- Data types -------------------------------------------------------------

type watchRow struct {
	addr       string
	status     string
	inProgress bool
	reasons    []string
	last       string
	err        string
}

// ---- Bubbletea messages -----------------------------------------------------

type tickMsg time.Time

type rowsMsg struct {
	rows []watchRow
	ts   time.Time
}

type eventMsg struct {
	addr  string
	event notify.Event
}

// ---- Lipgloss styles --------------------------------------------------------

type uiStyles struct {
	statusMaster  lipgloss.Style
	statusBackup  lipgloss.Style
	statusBusy    lipgloss.Style
	statusError   lipgloss.Style
	statusUnknown lipgloss.Style
	addr          lipgloss.Style
	reason        lipgloss.Style
	noReason      lipgloss.Style
	last          lipgloss.Style
	tableHeader   lipgloss.Style
	appHeader     lipgloss.Style
	tsStyle       lipgloss.Style
	footer        lipgloss.Style
	divider       lipgloss.Style
	eventsHdr     lipgloss.Style
	eventTopic    lipgloss.Style
	eventAction   lipgloss.Style
	eventFields   lipgloss.Style
	errorText     lipgloss.Style
}

var styles = buildStyles()

func buildStyles() uiStyles {
	// "1"=red  "2"=green  "3"=yellow  "4"=blue  "5"=magenta  "6"=cyan
	// "7"=white  "8"=bright-black
	return uiStyles{
		statusMaster:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2")),
		statusBackup:  lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		statusBusy:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3")),
		statusError:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
		statusUnknown: lipgloss.NewStyle().Faint(true),
		addr:          lipgloss.NewStyle().Faint(true).Foreground(lipgloss.Color("6")),
		reason:        lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		noReason:      lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		last:          lipgloss.NewStyle().Faint(true),
		tableHeader:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7")).Background(lipgloss.Color("8")),
		appHeader:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")),
		tsStyle:       lipgloss.NewStyle().Faint(true),
		footer:        lipgloss.NewStyle().Faint(true),
		divider:       lipgloss.NewStyle().Faint(true),
		eventsHdr:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5")),
		eventTopic:    lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
		eventAction:   lipgloss.NewStyle().Bold(true),
		eventFields:   lipgloss.NewStyle().Faint(true),
		errorText:     lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
	}
}

func statusStyle(status string) lipgloss.Style {
	switch failover.Status(status) {
	case failover.StatusMaster, failover.StatusSingle:
		return styles.statusMaster
	case failover.StatusBackup:
		return styles.statusBackup
	case failover.StatusElecting, failover.StatusImporting:
		return styles.statusBusy
	case failover.StatusError:
		return styles.statusError
	default:
		return styles.statusUnknown
	}
}

// ---- Rendering --------------------------------------------------------------

const (
	colAddr   = 22
	colStatus = 10
	colBusy   = 4
)

func renderHeader(contentWidth int) string {
	line := fmt.Sprintf("%-*s %-*s %-*s %s", colAddr, "ADDR", colStatus, "STATUS", colBusy, "JOB", "DISABLED REASONS")
	return styles.tableHeader.Render(padRight(line, contentWidth))
}

func makeTableRow(r watchRow, contentWidth int) string {
	var b strings.Builder
	b.WriteString(styles.addr.Render(padRight(shorten(r.addr, colAddr), colAddr)))
	b.WriteString(" ")

	if r.err != "" {
		b.WriteString(styles.statusError.Render(padRight("DOWN", colStatus)))
		b.WriteString(" ")
		b.WriteString(styles.errorText.Render(shorten(r.err, maxInt(10, contentWidth-colAddr-colStatus-2))))
		return b.String()
	}

	b.WriteString(statusStyle(r.status).Render(padRight(r.status, colStatus)))
	b.WriteString(" ")
	busy := "-"
	if r.inProgress {
		busy = "yes"
	}
	b.WriteString(padRight(busy, colBusy))
	b.WriteString(" ")

	rest := maxInt(10, contentWidth-colAddr-colStatus-colBusy-3)
	if len(r.reasons) == 0 {
		b.WriteString(styles.noReason.Render("ok"))
	} else {
		b.WriteString(styles.reason.Render(shorten(strings.Join(r.reasons, ","), rest)))
	}
	return b.String()
}

func renderEvent(e eventMsg, contentWidth int) string {
	fields := make([]string, 0, len(e.event.Fields))
	for k, v := range e.event.Fields {
		fields = append(fields, fmt.Sprintf("%s=%v", k, v))
	}
	sort.Strings(fields)
	line := fmt.Sprintf("  %s %s %s %s",
		styles.tsStyle.Render(e.event.Time.Format("15:04:05")),
		styles.eventTopic.Render(e.event.Topic),
		styles.eventAction.Render(e.event.Action),
		styles.addr.Render(e.addr),
	)
	rest := contentWidth - lipgloss.Width(line) - 1
	if rest > 10 && len(fields) > 0 {
		line += " " + styles.eventFields.Render(shorten(strings.Join(fields, " "), rest))
	}
	return line
}

// ---- Bubbletea model --------------------------------------------------------

type watchModel struct {
	rows    []watchRow
	events  []eventMsg
	ts      time.Time
	clients []*admingrpc.Client
	eventCh <-chan eventMsg
	timeout time.Duration
	width   int
	height  int
}

func newWatchModel(clients []*admingrpc.Client, eventCh <-chan eventMsg, timeout time.Duration) watchModel {
	return watchModel{
		clients: clients,
		eventCh: eventCh,
		timeout: timeout,
		width:   120,
		height:  40,
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.pollCmd(), m.waitEventCmd())
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		return m, m.pollCmd()

	case rowsMsg:
		m.rows = msg.rows
		m.ts = msg.ts
		tickFn := func(t time.Time) tea.Msg { return tickMsg(t) }
		return m, tea.Tick(watchRefreshInterval, tickFn)

	case eventMsg:
		m.events = append(m.events, msg)
		if len(m.events) > watchEventHistory {
			m.events = m.events[len(m.events)-watchEventHistory:]
		}
		return m, m.waitEventCmd()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "c":
			m.events = nil
		}
	}
	return m, nil
}

func (m watchModel) View() string {
	contentWidth := m.width - 2
	if contentWidth <= 0 {
		contentWidth = 80
	}

	var b strings.Builder

	b.WriteString("  ")
	b.WriteString(styles.appHeader.Render("Failover"))
	b.WriteString("  ")
	b.WriteString(styles.tsStyle.Render(m.ts.Format(time.RFC3339)))
	b.WriteString("\n\n")

	b.WriteString(renderHeader(contentWidth))
	b.WriteString("\n")
	for _, r := range m.rows {
		b.WriteString(makeTableRow(r, contentWidth))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	for _, r := range m.rows {
		if r.last == "" {
			continue
		}
		b.WriteString("  ")
		b.WriteString(styles.addr.Render(r.addr))
		b.WriteString(" ")
		b.WriteString(styles.last.Render(shorten(r.last, maxInt(10, contentWidth-len(r.addr)-3))))
		b.WriteString("\n")
	}

	b.WriteString(styles.divider.Render(strings.Repeat("-", contentWidth)))
	b.WriteString("\n")
	b.WriteString(styles.eventsHdr.Render("Events"))
	b.WriteString("\n")
	if len(m.events) == 0 {
		b.WriteString(styles.footer.Render("  (waiting)"))
		b.WriteString("\n")
	}
	for i := len(m.events) - 1; i >= 0; i-- {
		b.WriteString(renderEvent(m.events[i], contentWidth))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString("  ")
	b.WriteString(styles.footer.Render("c to clear events, q to exit"))

	// Pad to the terminal height so a shorter frame overwrites the previous one.
	out := b.String()
	if m.height > 0 {
		lines := strings.Split(out, "\n")
		for len(lines) < m.height {
			lines = append(lines, "")
		}
		return strings.Join(lines, "\n")
	}
	return out
}

func (m watchModel) pollCmd() tea.Cmd {
	clients := m.clients
	timeout := m.timeout
	return func() tea.Msg {
		rows := pollWatchRows(context.Background(), clients, timeout)
		return rowsMsg{rows: rows, ts: time.Now()}
	}
}

func (m watchModel) waitEventCmd() tea.Cmd {
	ch := m.eventCh
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return ev
	}
}

// ---- Polling ----------------------------------------------------------------

func watchCommand(opts *rootOptions) *cobra.Command {
	var topics []string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live view of both controllers and their events",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return cmdWatch(opts.addrs(), topics, opts.timeout)
		},
	}
	cmd.Flags().StringSliceVar(&topics, "topic", nil, "event topics to follow (default all)")
	return cmd
}

func cmdWatch(addrs, topics []string, timeout time.Duration) error {
	if len(addrs) == 0 {
		return fmt.Errorf("no addresses provided")
	}
	clients := make([]*admingrpc.Client, 0, len(addrs))
	defer func() {
		for _, c := range clients {
			_ = c.Close()
		}
	}()
	for _, addr := range addrs {
		c, err := admingrpc.Dial(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return err
		}
		clients = append(clients, c)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eventCh := make(chan eventMsg, 64)
	for _, c := range clients {
		go followEvents(ctx, c, topics, eventCh)
	}

	p := tea.NewProgram(newWatchModel(clients, eventCh, timeout), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// followEvents streams events from one controller and reconnects after the
// stream breaks until ctx is done.
func followEvents(ctx context.Context, c *admingrpc.Client, topics []string, out chan<- eventMsg) {
	for {
		_ = c.WatchEvents(ctx, topics, func(ev notify.Event) error {
			select {
			case out <- eventMsg{addr: c.Target(), event: ev}:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		})
		select {
		case <-ctx.Done():
			return
		case <-time.After(watchReconnectDelay):
		}
	}
}

func pollWatchRows(ctx context.Context, clients []*admingrpc.Client, timeout time.Duration) []watchRow {
	rows := make([]watchRow, len(clients))
	var wg sync.WaitGroup
	wg.Add(len(clients))

	for i, c := range clients {
		go func(i int, c *admingrpc.Client) {
			defer wg.Done()
			rows[i] = pollWatchRow(ctx, c, timeout)
		}(i, c)
	}
	wg.Wait()
	return rows
}

func pollWatchRow(ctx context.Context, c *admingrpc.Client, timeout time.Duration) watchRow {
	row := watchRow{addr: c.Target()}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	st, err := c.Status(reqCtx)
	if err != nil {
		row.err = err.Error()
		return row
	}
	row.status = string(st)

	if busy, err := c.InProgress(reqCtx); err == nil {
		row.inProgress = busy
	}
	if reasons, err := c.DisabledReasons(reqCtx); err == nil {
		for _, r := range reasons {
			row.reasons = append(row.reasons, string(r))
		}
	} else {
		row.reasons = []string{"?"}
	}
	if rec, ok, err := c.LastTransition(reqCtx); err == nil && ok {
		row.last = formatTransition(rec)
	}
	return row
}

func formatTransition(rec failover.TransitionRecord) string {
	s := fmt.Sprintf("last: %s %s -> %s (%s)",
		rec.Event.Interface, rec.Event.Kind, rec.Result, rec.Finished.Format(time.RFC3339))
	if rec.Error != "" {
		s += ": " + rec.Error
	}
	return s
}

// ---- Helpers ----------------------------------------------------------------

func shorten(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
