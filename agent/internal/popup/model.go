package popup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tracker-guard/agent/internal/notify"
	"tracker-guard/agent/internal/premium"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const opTimeout = 10 * time.Second

type (
	loadedMsg struct {
		view   View
		emails []string
		err    error
	}
	toggledMsg struct {
		enabled bool
		err     error
	}
	feedbackMsg      string
	clearFeedbackMsg struct{ seq int }
	emailAddedMsg    struct {
		email    string
		breaches []string
		err      error
	}
	permissionsMsg struct {
		perms []premium.Permission
		err   error
	}
)

// Model is the terminal popup for one tab.
type Model struct {
	ctl    *Controller
	tabURL string

	Status    View
	Emails    []string
	Breaches  []string
	Feedback  string
	Err       error
	Input     textinput.Model
	Perms     table.Model
	editing   bool
	showPerms bool
	seq       int
	width     int
}

func NewModel(ctl *Controller, tabURL string) Model {
	in := textinput.New()
	in.Placeholder = "you@example.com"
	in.Prompt = "Email: "

	columns := []table.Column{
		{Title: "Permission", Width: 16},
		{Title: "Status", Width: 10},
	}
	t := table.New(table.WithColumns(columns), table.WithHeight(5))
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return Model{ctl: ctl, tabURL: tabURL, Input: in, Perms: t}
}

func (m Model) Init() tea.Cmd { return m.load }

func (m Model) load() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	v, err := m.ctl.Load(ctx, m.tabURL)
	if err != nil {
		return loadedMsg{view: v, err: err}
	}
	emails, err := m.ctl.Emails(ctx)
	return loadedMsg{view: v, emails: emails, err: err}
}

func (m Model) toggle() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	enabled, err := m.ctl.Toggle(ctx)
	return toggledMsg{enabled: enabled, err: err}
}

func (m Model) clearCookies() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return feedbackMsg(m.ctl.ClearCookies(ctx, m.tabURL))
}

func (m Model) addEmail(raw string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		found, err := m.ctl.AddEmail(ctx, raw)
		return emailAddedMsg{email: strings.TrimSpace(raw), breaches: found, err: err}
	}
}

func (m Model) permissions() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	perms, err := m.ctl.Permissions(ctx, m.tabURL)
	return permissionsMsg{perms: perms, err: err}
}

// flash shows text and clears it after the feedback delay unless a newer
// message replaced it.
func (m *Model) flash(text string) tea.Cmd {
	m.seq++
	m.Feedback = text
	seq := m.seq
	return tea.Tick(notify.FeedbackDelay, func(time.Time) tea.Msg { return clearFeedbackMsg{seq: seq} })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.editing {
			return m.updateInput(msg)
		}
		switch msg.String() {
		case "q", "esc":
			return m, tea.Quit
		case "t":
			return m, m.toggle
		case "c":
			return m, m.clearCookies
		case "r":
			return m, m.load
		case "e":
			m.editing = true
			m.Input.Focus()
			return m, textinput.Blink
		case "p":
			m.showPerms = !m.showPerms
			if m.showPerms {
				return m, m.permissions
			}
			return m, nil
		}
		if m.showPerms {
			var cmd tea.Cmd
			m.Perms, cmd = m.Perms.Update(msg)
			return m, cmd
		}

	case loadedMsg:
		m.Status, m.Err = msg.view, msg.err
		if msg.emails != nil {
			m.Emails = msg.emails
		}

	case toggledMsg:
		m.Status.Enabled = msg.enabled
		m.Err = msg.err

	case feedbackMsg:
		return m, m.flash(string(msg))

	case clearFeedbackMsg:
		if msg.seq == m.seq {
			m.Feedback = ""
		}

	case emailAddedMsg:
		if msg.err != nil {
			m.Err = msg.err
			return m, nil
		}
		m.Err = nil
		m.Breaches = m.Breaches[:0]
		for _, b := range msg.breaches {
			m.Breaches = append(m.Breaches, fmt.Sprintf("%s was found in %s breach.", msg.email, b))
		}
		return m, m.load

	case permissionsMsg:
		if msg.err != nil {
			m.showPerms = false
			if errors.Is(msg.err, premium.ErrUpgradeRequired) {
				return m, m.flash("Upgrade to Pro for Advanced Permissions Management")
			}
			m.Err = msg.err
			return m, nil
		}
		rows := make([]table.Row, 0, len(msg.perms))
		for _, p := range msg.perms {
			status := "denied"
			if p.Granted {
				status = "granted"
			}
			rows = append(rows, table.Row{p.Name, status})
		}
		m.Perms.SetRows(rows)
	}
	return m, nil
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.editing = false
		m.Input.Blur()
		m.Input.SetValue("")
		return m, nil
	case tea.KeyEnter:
		raw := m.Input.Value()
		m.editing = false
		m.Input.Blur()
		m.Input.SetValue("")
		return m, m.addEmail(raw)
	}
	var cmd tea.Cmd
	m.Input, cmd = m.Input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Tracker Guard") + "\n\n")

	status := protectedStyle.Render("Protected")
	if !m.Status.Enabled {
		status = unprotectedStyle.Render("Unprotected")
	}
	b.WriteString("Status:           " + status + "\n")
	b.WriteString(fmt.Sprintf("Blocked today:    %d\n", m.Status.Daily))
	site := m.Status.Domain
	if site == "" {
		site = "-"
	}
	b.WriteString(fmt.Sprintf("Site:             %s\n", site))
	b.WriteString(fmt.Sprintf("Trackers:         %d\n", m.Status.Trackers))
	b.WriteString("Privacy grade:    " + gradeStyle(m.Status.Grade).Render(m.Status.Grade) + "\n")
	if m.Status.DaysLeft > 0 {
		b.WriteString(blurredStyle.Render(fmt.Sprintf("%d days left in your free trial", m.Status.DaysLeft)) + "\n")
	} else if !m.Status.Premium {
		b.WriteString(blurredStyle.Render("Free plan") + "\n")
	}

	b.WriteString("\nMonitored emails:\n")
	if len(m.Emails) == 0 {
		b.WriteString(blurredStyle.Render("  No emails being monitored") + "\n")
	}
	for _, e := range m.Emails {
		b.WriteString("  " + e + "\n")
	}
	for _, br := range m.Breaches {
		b.WriteString(breachStyle("Breach Found! "+br) + "\n")
	}
	if m.editing {
		b.WriteString("\n" + m.Input.View() + "\n")
	}
	if m.showPerms {
		b.WriteString("\n" + m.Perms.View() + "\n")
	}
	if m.Feedback != "" {
		b.WriteString("\n" + feedbackStyle(m.Feedback) + "\n")
	}
	if m.Err != nil {
		b.WriteString("\n" + errorMessageStyle(m.Err.Error()) + "\n")
	}

	toggle := "disable"
	if !m.Status.Enabled {
		toggle = "enable"
	}
	b.WriteString("\n" + blurredStyle.Render(fmt.Sprintf("t %s protection • c clear cookies • e add email • p permissions • r refresh • q quit", toggle)))
	return docStyle.Render(b.String())
}

// Run starts the popup in the terminal.
func Run(ctl *Controller, tabURL string) error {
	_, err := tea.NewProgram(NewModel(ctl, tabURL)).Run()
	return err
}
