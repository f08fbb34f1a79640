// Package editor is the command layer of the terminal draft editor. Plain
// lines are appended to the body; lines starting with ':' are commands.
// Every edit goes through an autosave.Scheduler.
package editor

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"strconv"
	"strings"
	"unicode"

	"forum/autosave"
	"forum/models"
	"forum/service"
)

// ErrQuit is returned by Execute once the session should end.
var ErrQuit = errors.New("quit requested")

const previewLength = 60

// API is the part of the forum client the editor needs.
type API interface {
	autosave.Saver
	Register(ctx context.Context, email, password string) error
	Login(ctx context.Context, email, password string) error
	ListDrafts(ctx context.Context) ([]models.Draft, error)
	RemoveDraft(ctx context.Context, draftID string) error
	Publish(ctx context.Context, draftID string, fields models.DraftFields) (string, error)
}

type Session struct {
	api   API
	sched *autosave.Scheduler
	out   io.Writer
	// listed is the last draft listing; :open and :rm index into it.
	listed []models.Draft
}

func NewSession(api API, out io.Writer, opts ...autosave.Option) *Session {
	return &Session{
		api:   api,
		sched: autosave.New(api, opts...),
		out:   out,
	}
}

func (s *Session) Scheduler() *autosave.Scheduler { return s.sched }

// Prompt summarizes st: the draft id (or "new") and a marker for unsaved
// changes, a save in progress, or a failed save.
func Prompt(st autosave.Status) string {
	label := "new"
	if st.DraftID != "" {
		label = st.DraftID
		if len(label) > 8 {
			label = label[:8]
		}
	}
	mark := ""
	switch {
	case st.Err != nil:
		mark = "!"
	case st.State == autosave.Saving:
		mark = "~"
	case st.Dirty:
		mark = "*"
	}
	return fmt.Sprintf("[%s%s] > ", label, mark)
}

func (s *Session) Prompt() string { return Prompt(s.sched.Status()) }

// Execute runs one input line.
func (s *Session) Execute(ctx context.Context, line string) error {
	if !strings.HasPrefix(line, ":") {
		s.appendLine(line)
		return nil
	}

	args := ParseArgs(line[1:])
	if len(args) == 0 {
		return fmt.Errorf("no command provided")
	}
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line[1:]), args[0]))

	switch args[0] {
	case "register", "login":
		return s.handleAuth(ctx, args[0], args[1:])
	case "title":
		s.sched.Edit(func(f *models.DraftFields) { f.Title = rest })
	case "tags":
		s.sched.Edit(func(f *models.DraftFields) { f.Tags = splitTags(rest) })
	case "private":
		return s.handlePrivate(args[1:])
	case "clear":
		s.sched.Edit(func(f *models.DraftFields) {
			f.Text = ""
			f.HTML = ""
		})
	case "show":
		s.show()
	case "save":
		if err := s.sched.Flush(ctx); err != nil {
			return fmt.Errorf("save failed: %w", err)
		}
		fmt.Fprintln(s.out, "Saved.")
	case "drafts":
		return s.handleDrafts(ctx)
	case "open":
		return s.handleOpen(ctx, args[1:])
	case "rm":
		return s.handleRemove(ctx, args[1:])
	case "new":
		s.flushQuietly(ctx)
		s.sched.Reset()
	case "publish":
		return s.handlePublish(ctx)
	case "status":
		s.status()
	case "help":
		fmt.Fprint(s.out, helpText)
	case "quit", "exit":
		if err := s.sched.Flush(ctx); err != nil {
			fmt.Fprintf(s.out, "Last save failed: %v\n", err)
		}
		return ErrQuit
	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
	return nil
}

func (s *Session) appendLine(line string) {
	s.sched.Edit(func(f *models.DraftFields) {
		if f.Text == "" {
			f.Text = line
		} else {
			f.Text += "\n" + line
		}
		f.HTML = renderHTML(f.Text)
	})
}

func (s *Session) handleAuth(ctx context.Context, cmd string, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: :%s <email> <password>", cmd)
	}
	var err error
	if cmd == "register" {
		err = s.api.Register(ctx, args[0], args[1])
	} else {
		err = s.api.Login(ctx, args[0], args[1])
	}
	if err != nil {
		return fmt.Errorf("%s failed: %w", cmd, err)
	}
	fmt.Fprintf(s.out, "Signed in as %s.\n", args[0])
	return nil
}

func (s *Session) handlePrivate(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: :private on|off")
	}
	var private bool
	switch strings.ToLower(args[0]) {
	case "on", "yes", "true":
		private = true
	case "off", "no", "false":
	default:
		return fmt.Errorf("usage: :private on|off")
	}
	s.sched.Edit(func(f *models.DraftFields) { f.Private = private })
	return nil
}

func (s *Session) handleDrafts(ctx context.Context) error {
	drafts, err := s.api.ListDrafts(ctx)
	if err != nil {
		return fmt.Errorf("listing drafts failed: %w", err)
	}
	s.listed = drafts
	if len(drafts) == 0 {
		fmt.Fprintln(s.out, "No drafts.")
		return nil
	}
	for i, d := range drafts {
		title := d.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(s.out, "%2d. %s  %s\n    %s\n", i+1, title,
			d.UpdatedAt.Local().Format("2006-01-02 15:04"), service.Excerpt(d.Text, previewLength))
	}
	return nil
}

func (s *Session) pick(args []string) (models.Draft, error) {
	if len(args) != 1 {
		return models.Draft{}, fmt.Errorf("usage: give the draft number from :drafts")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > len(s.listed) {
		return models.Draft{}, fmt.Errorf("no draft %q, run :drafts first", args[0])
	}
	return s.listed[n-1], nil
}

func (s *Session) handleOpen(ctx context.Context, args []string) error {
	d, err := s.pick(args)
	if err != nil {
		return err
	}
	s.flushQuietly(ctx)
	s.sched.Load(d.ID, d.DraftFields)
	fmt.Fprintf(s.out, "Opened %q.\n", d.Title)
	return nil
}

func (s *Session) handleRemove(ctx context.Context, args []string) error {
	d, err := s.pick(args)
	if err != nil {
		return err
	}
	if err := s.api.RemoveDraft(ctx, d.ID); err != nil {
		return fmt.Errorf("removing draft failed: %w", err)
	}
	if s.sched.DraftID() == d.ID {
		s.sched.Reset()
	}
	s.listed = nil
	fmt.Fprintln(s.out, "Draft removed.")
	return nil
}

func (s *Session) handlePublish(ctx context.Context) error {
	s.flushQuietly(ctx)
	postID, err := s.api.Publish(ctx, s.sched.DraftID(), s.sched.Fields())
	if err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	s.sched.Reset()
	fmt.Fprintf(s.out, "Published post %s.\n", postID)
	return nil
}

// flushQuietly persists pending edits before the session switches drafts. A
// failure is reported but does not block the switch.
func (s *Session) flushQuietly(ctx context.Context) {
	if err := s.sched.Flush(ctx); err != nil {
		fmt.Fprintf(s.out, "Warning: unsaved changes were not stored: %v\n", err)
	}
}

func (s *Session) show() {
	f := s.sched.Fields()
	visibility := "public"
	if f.Private {
		visibility = "private"
	}
	fmt.Fprintf(s.out, "Title: %s\nTags: %s\nVisibility: %s\n\n%s\n",
		f.Title, strings.Join(f.Tags, ", "), visibility, f.Text)
}

func (s *Session) status() {
	st := s.sched.Status()
	id := st.DraftID
	if id == "" {
		id = "(not saved yet)"
	}
	fmt.Fprintf(s.out, "Draft: %s\nState: %s\nUnsaved changes: %t\n", id, st.State, st.Dirty)
	if !st.SavedAt.IsZero() {
		fmt.Fprintf(s.out, "Last saved: %s\n", st.SavedAt.Format("15:04:05"))
	}
	if st.Err != nil {
		fmt.Fprintf(s.out, "Last error: %v\n", st.Err)
	}
}

func splitTags(raw string) []string {
	tags := []string{}
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// renderHTML turns the plain body into paragraphs, one per non-blank line.
func renderHTML(text string) string {
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(line))
		b.WriteString("</p>")
	}
	return b.String()
}

// ParseArgs splits input on whitespace. Double quotes group words and may be
// empty; a backslash escapes a quote, a backslash or a blank.
func ParseArgs(input string) []string {
	var args []string
	var current strings.Builder
	inQuotes, inArg, escaped := false, false, false

	for _, char := range input {
		switch {
		case escaped:
			if char != '"' && char != '\\' && !unicode.IsSpace(char) {
				current.WriteRune('\\')
			}
			current.WriteRune(char)
			escaped = false
		case char == '\\':
			escaped, inArg = true, true
		case char == '"':
			inQuotes, inArg = !inQuotes, true
		case unicode.IsSpace(char) && !inQuotes:
			if inArg {
				args = append(args, current.String())
				current.Reset()
				inArg = false
			}
		default:
			current.WriteRune(char)
			inArg = true
		}
	}
	if escaped {
		current.WriteRune('\\')
	}
	if inArg {
		args = append(args, current.String())
	}
	return args
}

const helpText = `Type to append lines to the body. Commands:
  :register <email> <password>   create an account
  :login <email> <password>      sign in
  :title <text>                  set the title
  :tags a,b,c                    set tags (at most 8, 10 characters each)
  :private on|off                visibility once published
  :clear                         empty the body
  :show                          print the draft
  :save                          save now
  :drafts                        list saved drafts
  :open <n>                      edit draft n from :drafts
  :rm <n>                        delete draft n from :drafts
  :new                           start a new draft
  :publish                       publish and start over
  :status                        autosave state
  :quit                          save and exit
`
