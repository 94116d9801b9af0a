package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"usher-schedule/model"
	"usher-schedule/service"
	"usher-schedule/store"
)

const (
	tickInterval       = time.Second
	manualRefreshDelay = 750 * time.Millisecond
	homeCardCount      = 3
)

type appState int

const (
	stateLoading appState = iota
	stateHome
	stateSchedule
	stateError
)

// Deps are the collaborators the app needs. Store and Fetcher are required.
type Deps struct {
	Store   *store.ShowtimeStore
	Fetcher service.Fetcher
	Logger  *slog.Logger
	Theater string
	Now     func() time.Time
}

type appModel struct {
	store   *store.ShowtimeStore
	fetcher service.Fetcher
	logger  *slog.Logger
	theater string
	now     func() time.Time

	state     appState
	lastState appState
	err       error

	width  int
	height int

	clock      time.Time
	refreshing bool

	scheduleList list.Model
	spinner      spinner.Model
}

type refreshMsg struct {
	err error
}

type tickMsg time.Time

func New(deps Deps) tea.Model {
	m := appModel{
		store:   deps.Store,
		fetcher: deps.Fetcher,
		logger:  deps.Logger,
		theater: deps.Theater,
		now:     deps.Now,
		state:   stateLoading,
	}
	if m.store == nil {
		m.store = store.New()
	}
	if m.fetcher == nil {
		m.fetcher = service.NewMockFetcher()
	}
	if m.logger == nil {
		m.logger = slog.New(slog.DiscardHandler)
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.theater == "" {
		m.theater = "Usher Schedule"
	}
	m.clock = m.now()

	m.scheduleList = newList("Usher Schedule")

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	m.spinner = sp

	return m
}

func (m appModel) Init() tea.Cmd {
	return tea.Batch(m.refreshCmd(0), m.spinner.Tick, tickCmd())
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeLists()
		return m, nil

	case tea.KeyMsg:
		if m.handleFilterInput(msg) {
			return m, nil
		}
		m, cmd, handled := m.handleKey(msg)
		if handled {
			return m, cmd
		}
		// fallthrough to component update

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.isLoading() {
			return m, cmd
		}
		return m, nil

	case tickMsg:
		m.clock = m.now()
		return m, tea.Batch(m.refreshItems(), tickCmd())

	case refreshMsg:
		if errors.Is(msg.err, store.ErrSuperseded) {
			return m, nil
		}
		m.refreshing = false
		m.clock = m.now()
		if msg.err != nil {
			m.logger.Error("refresh failed", "kind", service.KindOf(msg.err).String(), "err", msg.err)
			if m.store.Len() == 0 {
				m.err = msg.err
				m.lastState = stateHome
				m.state = stateError
				return m, nil
			}
		}
		if m.state == stateLoading || m.state == stateError {
			m.state = stateHome
		}
		return m, m.refreshItems()
	}

	var cmd tea.Cmd
	if m.state == stateSchedule {
		m.scheduleList, cmd = m.scheduleList.Update(msg)
	}
	return m, cmd
}

func (m appModel) View() string {
	header := m.headerView()
	switch m.state {
	case stateLoading:
		return header + "\n\n" + m.loadingView()
	case stateHome:
		return header + "\n\n" + m.homeView()
	case stateSchedule:
		return header + "\n\n" + m.scheduleView()
	case stateError:
		return header + "\n\n" + m.errorView()
	default:
		return header
	}
}

func (m appModel) headerView() string {
	title := lipgloss.NewStyle().Bold(true).Render(m.theater)
	sub := []string{}
	if m.state == stateSchedule {
		sub = append(sub, "Sort: "+m.store.SortMode().Label())
		if m.store.UpcomingOnly() {
			sub = append(sub, "Only upcoming")
		}
		sub = append(sub, fmt.Sprintf("Crossed off: %d/%d", m.store.CrossedOffCount(), m.store.Len()))
	}
	if m.refreshing {
		sub = append(sub, m.spinner.View()+" refreshing")
	} else if last := m.store.LastRefresh(); !last.IsZero() {
		sub = append(sub, "Updated "+model.FormatClock(last))
	}
	meta := strings.Join(sub, " • ")
	if meta != "" {
		meta = "\n" + lipgloss.NewStyle().Faint(true).Render(meta)
	}

	hints := "ctrl+c quit • tab schedule • ctrl+r refresh"
	switch m.state {
	case stateSchedule:
		hints = "ctrl+c quit • esc back • type to filter • enter cross off • ctrl+s sort • ctrl+u only upcoming • ctrl+r refresh"
	case stateError:
		hints = "ctrl+c quit • esc back"
		if retryable(m.err) {
			hints += " • ctrl+r retry"
		}
	}
	filterLine := ""
	if listPtr := m.activeList(); listPtr != nil {
		if filter := listPtr.FilterValue(); filter != "" {
			filterLine = "\n" + hint(fmt.Sprintf("Filter: %s", filter))
		}
	}
	banner := ""
	if err := m.store.LastError(); err != nil && m.state != stateError {
		message := problemMessage(err)
		if retryable(err) {
			message += " Press ctrl+r to retry."
		}
		banner = "\n" + lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Render(message)
	}
	return title + meta + filterLine + banner + "\n" + hint(hints)
}

func (m appModel) loadingView() string {
	return fmt.Sprintf("%s Loading showtimes\n\n%s", m.spinner.View(), hint("Fetching schedule..."))
}

func (m appModel) homeView() string {
	heading := lipgloss.NewStyle().Bold(true).Render("Upcoming Showtimes")
	upcoming := m.store.Upcoming(m.clock, homeCardCount)
	if len(upcoming) == 0 {
		return heading + "\n\n" + hint("Nothing else is starting today.")
	}

	cards := make([]string, 0, len(upcoming))
	for _, st := range upcoming {
		cards = append(cards, m.renderCard(st))
	}
	return heading + "\n\n" + strings.Join(cards, "\n")
}

func (m appModel) renderCard(st model.Showtime) string {
	crossed := m.store.IsCrossedOff(st.UID)
	titleStyle := lipgloss.NewStyle().Bold(true)
	if crossed {
		titleStyle = titleStyle.Strikethrough(true).Faint(true)
	}
	lines := []string{
		titleStyle.Render(st.Title) + "  " + hint(st.TimeStatus(m.clock)),
		fmt.Sprintf("%s – %s • %s • %s", st.StartString(), st.EndString(), st.AuditoriumLabel(), st.Duration()),
	}
	if st.Description != "" {
		lines = append(lines, hint(st.Description))
	}

	card := lipgloss.NewStyle().
		Padding(0, 2).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("1"))
	if m.width > 12 {
		card = card.Width(m.width - 4)
	}
	return card.Render(strings.Join(lines, "\n"))
}

func (m appModel) scheduleView() string {
	if len(m.scheduleList.Items()) == 0 {
		if m.store.UpcomingOnly() {
			return lipgloss.NewStyle().Bold(true).Render("This looks a bit empty") + "\n\n" +
				"There are no more upcoming showtimes today! Good job! :)" + "\n\n" +
				hint("Press ctrl+u to show finished showtimes.")
		}
		return hint("No showtimes loaded. Press ctrl+r to refresh.")
	}
	return m.scheduleList.View()
}

func (m appModel) errorView() string {
	message := problemMessage(m.err)
	help := "Press esc to go back or ctrl+c to quit."
	if retryable(m.err) {
		help = "Press ctrl+r to retry, esc to go back or ctrl+c to quit."
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Render(message) + "\n\n" + hint(help)
}

// retryable reports whether a manual refresh is worth offering for err.
func retryable(err error) bool {
	return err != nil && service.KindOf(err).Temporary()
}

func (m appModel) handleKey(msg tea.KeyMsg) (appModel, tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit, true
	case "esc":
		if listPtr := m.activeList(); listPtr != nil {
			if listPtr.SettingFilter() || listPtr.IsFiltered() {
				listPtr.ResetFilter()
				return m, nil, true
			}
		}
		return m.goBack(), nil, true
	case "tab":
		switch m.state {
		case stateHome:
			m.state = stateSchedule
			return m, m.refreshItems(), true
		case stateSchedule:
			m.state = stateHome
			return m, nil, true
		}
	case "ctrl+r":
		if m.refreshing {
			return m, nil, true
		}
		m.refreshing = true
		return m, tea.Batch(m.refreshCmd(manualRefreshDelay), m.spinner.Tick), true
	case "ctrl+s":
		if m.state == stateSchedule {
			m.store.CycleSortMode()
			return m, m.refreshItems(), true
		}
	case "ctrl+u":
		if m.state == stateSchedule {
			m.store.ToggleUpcomingOnly()
			return m, m.refreshItems(), true
		}
	case "ctrl+x", "enter":
		if m.state == stateSchedule {
			item, ok := m.scheduleList.SelectedItem().(showtimeItem)
			if !ok {
				return m, nil, true
			}
			m.store.ToggleCrossedOff(item.showtime.UID)
			return m, m.refreshItems(), true
		}
	}
	return m, nil, false
}

func (m appModel) goBack() appModel {
	switch m.state {
	case stateSchedule:
		m.state = stateHome
	case stateError:
		m.state = m.lastState
		if m.state == stateError || m.state == stateLoading {
			m.state = stateHome
		}
	}
	return m
}

func (m *appModel) handleFilterInput(msg tea.KeyMsg) bool {
	listPtr := m.activeList()
	if listPtr == nil {
		return false
	}
	if !listPtr.FilteringEnabled() {
		return false
	}
	switch msg.Type {
	case tea.KeyRunes:
		if len(msg.Runes) == 0 {
			return false
		}
		m.appendFilter(listPtr, string(msg.Runes))
		return true
	case tea.KeySpace:
		m.appendFilter(listPtr, " ")
		return true
	case tea.KeyBackspace, tea.KeyDelete:
		if listPtr.FilterValue() == "" {
			return false
		}
		m.popFilter(listPtr)
		return true
	default:
		return false
	}
}

func (m *appModel) appendFilter(listPtr *list.Model, value string) {
	if value == "" {
		return
	}
	listPtr.SetFilterText(listPtr.FilterValue() + value)
}

func (m *appModel) popFilter(listPtr *list.Model) {
	value := trimLastRune(listPtr.FilterValue())
	if value == "" {
		listPtr.ResetFilter()
		return
	}
	listPtr.SetFilterText(value)
}

func trimLastRune(value string) string {
	runes := []rune(value)
	if len(runes) <= 1 {
		return ""
	}
	return string(runes[:len(runes)-1])
}

func (m *appModel) activeList() *list.Model {
	if m.state == stateSchedule {
		return &m.scheduleList
	}
	return nil
}

func (m appModel) isLoading() bool {
	return m.state == stateLoading || m.refreshing
}

// refreshItems rebuilds the schedule list from the store so countdowns,
// ordering and crossed-off marks reflect the current clock and settings.
func (m *appModel) refreshItems() tea.Cmd {
	visible := m.store.VisibleList(m.clock)
	items := make([]list.Item, 0, len(visible))
	for _, st := range visible {
		items = append(items, showtimeItem{
			showtime:   st,
			crossedOff: m.store.IsCrossedOff(st.UID),
			now:        m.clock,
		})
	}
	return m.scheduleList.SetItems(items)
}

func (m *appModel) resizeLists() {
	if m.width == 0 || m.height == 0 {
		return
	}
	h := m.height - 6
	if h < 6 {
		h = 6
	}
	m.scheduleList.SetSize(m.width, h)
}

func (m appModel) refreshCmd(minDuration time.Duration) tea.Cmd {
	st := m.store
	fetcher := m.fetcher
	return func() tea.Msg {
		started := time.Now()
		err := st.Refresh(context.Background(), fetcher)
		if wait := minDuration - time.Since(started); wait > 0 {
			time.Sleep(wait)
		}
		return refreshMsg{err: err}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func newList(title string) list.Model {
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	l := list.New([]list.Item{}, delegate, 0, 0)
	l.Title = title
	l.Filter = caseInsensitiveFilter
	l.SetFilteringEnabled(true)
	l.SetShowFilter(true)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	return l
}

func hint(text string) string {
	return lipgloss.NewStyle().Faint(true).Render(text)
}

func caseInsensitiveFilter(term string, targets []string) []list.Rank {
	term = strings.ToLower(term)
	lower := make([]string, len(targets))
	for i, t := range targets {
		lower[i] = strings.ToLower(t)
	}
	return list.DefaultFilter(term, lower)
}

// problemMessage turns a fetch failure into something an usher can act on.
func problemMessage(err error) string {
	if err == nil {
		return ""
	}
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		return "The schedule contained an invalid showtime."
	}
	switch service.KindOf(err) {
	case service.ProblemBadData:
		return "The schedule server sent data we could not read."
	case service.ProblemTimeout:
		return "The schedule server took too long to answer."
	case service.ProblemCannotConnect:
		return "Could not reach the schedule server. Check your connection."
	case service.ProblemUnauthorized:
		return "You are not signed in to the schedule server."
	case service.ProblemForbidden:
		return "You are not allowed to view this schedule."
	case service.ProblemNotFound:
		return "No schedule was found for this theater."
	case service.ProblemRejected:
		return "The schedule server rejected the request."
	case service.ProblemServer:
		return "The schedule server is having trouble. Try again shortly."
	case service.ProblemUnknown:
		return "Something went wrong loading the schedule: " + err.Error()
	}
	return err.Error()
}
