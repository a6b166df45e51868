package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"askai/internal/chat"
	"askai/internal/domain"
	"askai/internal/ingest"
	"askai/internal/session"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

type styles struct {
	prompt    lipgloss.Style
	assistant lipgloss.Style
	failure   lipgloss.Style
	muted     lipgloss.Style
	title     lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		prompt:    lipgloss.NewStyle().Foreground(lipgloss.Color("#7C3AED")).Bold(true),
		assistant: lipgloss.NewStyle().Foreground(lipgloss.Color("#E5E7EB")),
		failure:   lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")),
		muted:     lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")),
		title:     lipgloss.NewStyle().Bold(true),
	}
}

const replHelp = `Commands:
  /new [title]      start a new chat
  /list             list chats
  /search <text>    find chats by title or content
  /switch <id>      make a chat active
  /regen            regenerate the last reply
  /archive          archive the active chat
  /attach <file>    attach a text or code file to the next message
  /help             show this help
  /quit             leave`

// SettingsLoader provides the settings for each exchange
type SettingsLoader interface {
	Load(ctx context.Context, userID string) (domain.ChatSettings, error)
}

// AttachmentLoader reads a local file into an attachment
type AttachmentLoader interface {
	LoadFile(path string) (domain.Attachment, error)
}

// repl is a line-oriented chat loop over one user's workspace
type repl struct {
	svc      *chat.Service
	settings SettingsLoader
	files    AttachmentLoader
	in       io.Reader
	out      io.Writer
	styles   styles

	pending []domain.Attachment
}

func newChatCommand(opts *rootOptions) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			u, err := a.signedIn(ctx, email, password)
			if err != nil {
				return err
			}
			svc, err := a.workspaces.Open(ctx, u.ID)
			if err != nil {
				return err
			}

			r := &repl{
				svc:      svc,
				settings: a.settings,
				files:    ingest.NewLoader(a.logger.Named("ingest")),
				in:       cmd.InOrStdin(),
				out:      cmd.OutOrStdout(),
				styles:   defaultStyles(),
			}
			fmt.Fprintf(r.out, "Signed in as %s. Type /help for commands.\n", u.Email)
			return r.run(ctx)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "sign in with this email")
	cmd.Flags().StringVar(&password, "password", "", "password for --email")
	return cmd
}

func (r *repl) run(ctx context.Context) error {
	scanner := bufio.NewScanner(r.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	r.prompt()
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case strings.HasPrefix(line, "/"):
			quit, err := r.command(ctx, line)
			if err != nil {
				fmt.Fprintln(r.out, r.styles.failure.Render(err.Error()))
			}
			if quit {
				return nil
			}
		default:
			r.send(ctx, line)
		}
		r.prompt()
	}
	return scanner.Err()
}

func (r *repl) prompt() {
	fmt.Fprint(r.out, r.styles.prompt.Render("you> "))
}

func (r *repl) send(ctx context.Context, content string) {
	cs, err := r.settings.Load(ctx, r.svc.Sessions().UserID())
	if err != nil {
		fmt.Fprintln(r.out, r.styles.failure.Render(err.Error()))
		return
	}
	ex, err := r.svc.SendMessage(ctx, cs, "", content, r.pending)
	if err != nil {
		fmt.Fprintln(r.out, r.styles.failure.Render(err.Error()))
		return
	}
	r.pending = nil
	r.reply(ex)
}

func (r *repl) reply(ex *chat.Exchange) {
	if ex.Failed {
		fmt.Fprintln(r.out, r.styles.failure.Render(ex.Reply.Content))
		return
	}
	fmt.Fprintln(r.out, r.styles.assistant.Render(ex.Reply.Content))
	if ex.Reply.Tokens != nil {
		fmt.Fprintln(r.out, r.styles.muted.Render(fmt.Sprintf("(%d tokens, %s)", *ex.Reply.Tokens, ex.Reply.Model)))
	}
}

// command handles one slash command; quit reports whether the loop should end
func (r *repl) command(ctx context.Context, line string) (quit bool, err error) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	sessions := r.svc.Sessions()

	switch name {
	case "/quit", "/exit":
		return true, nil

	case "/help":
		fmt.Fprintln(r.out, replHelp)

	case "/new":
		cs := sessions.CreateSession(arg)
		if err := sessions.SetActive(cs.ID); err != nil {
			return false, err
		}
		fmt.Fprintf(r.out, "Started %s\n", r.styles.title.Render(cs.Title))

	case "/list":
		r.list(sessions.Search(session.Query{}), sessions.ActiveID())

	case "/search":
		if arg == "" {
			return false, fmt.Errorf("usage: /search <text>")
		}
		r.list(sessions.Search(session.Query{Text: arg}), sessions.ActiveID())

	case "/switch":
		if err := sessions.SetActive(arg); err != nil {
			return false, err
		}
		cs, _ := sessions.Active()
		fmt.Fprintf(r.out, "Switched to %s\n", r.styles.title.Render(cs.Title))

	case "/regen":
		return false, r.regenerate(ctx)

	case "/archive":
		id := sessions.ActiveID()
		if id == "" {
			return false, fmt.Errorf("no active chat")
		}
		if err := sessions.ArchiveSession(id); err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, "Archived")

	case "/attach":
		if arg == "" {
			return false, fmt.Errorf("usage: /attach <file>")
		}
		att, err := r.files.LoadFile(arg)
		if err != nil {
			return false, err
		}
		r.pending = append(r.pending, att)
		fmt.Fprintf(r.out, "Attached %s (%d pending)\n", att.Name, len(r.pending))

	default:
		return false, fmt.Errorf("unknown command %s, try /help", name)
	}
	return false, nil
}

func (r *repl) list(found []domain.ChatSession, activeID string) {
	if len(found) == 0 {
		fmt.Fprintln(r.out, r.styles.muted.Render("No chats"))
		return
	}
	for _, cs := range found {
		marker := " "
		if cs.ID == activeID {
			marker = "*"
		}
		fmt.Fprintf(r.out, "%s %s  %s  %s\n", marker, cs.ID,
			r.styles.title.Render(cs.Title),
			r.styles.muted.Render(cs.UpdatedAt.Local().Format(time.DateTime)))
	}
}

func (r *repl) regenerate(ctx context.Context) error {
	cs, ok := r.svc.Sessions().Active()
	if !ok {
		return fmt.Errorf("no active chat")
	}
	var last string
	for i := len(cs.Messages) - 1; i >= 0; i-- {
		if !cs.Messages[i].IsUser {
			last = cs.Messages[i].ID
			break
		}
	}
	if last == "" {
		return fmt.Errorf("nothing to regenerate")
	}

	prefs, err := r.settings.Load(ctx, r.svc.Sessions().UserID())
	if err != nil {
		return err
	}
	ex, err := r.svc.Regenerate(ctx, prefs, cs.ID, last)
	if err != nil {
		return err
	}
	if ex == nil {
		return fmt.Errorf("nothing to regenerate")
	}
	r.reply(ex)
	return nil
}
