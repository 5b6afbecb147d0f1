package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"ticketchat/client"
	"ticketchat/logger"
	"ticketchat/models"
	"ticketchat/transcript"
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Follow a ticket's transcript in the terminal",
	Long: `tail opens a ticket, loads its newest history page and follows live
message and presence events. Type "more" and press enter to load an older page.`,
	RunE: runTail,
}

func init() {
	tailCmd.Flags().String("ticket", "", "ticket id to open (required)")
	tailCmd.Flags().String("contact", "", "contact id of the ticket")
	tailCmd.Flags().Bool("group", false, "the ticket is a group conversation")
	tailCmd.Flags().String("feed", "ws", "live event source: ws or redis")
	tailCmd.Flags().Int("width", 80, "terminal width used for alignment")
	tailCmd.MarkFlagRequired("ticket")
}

var (
	dayStyle      = lipgloss.NewStyle().Faint(true)
	noticeStyle   = lipgloss.NewStyle().Italic(true).Faint(true)
	senderStyle   = lipgloss.NewStyle().Bold(true)
	quoteStyle    = lipgloss.NewStyle().Faint(true).PaddingLeft(1).BorderStyle(lipgloss.NormalBorder()).BorderLeft(true)
	metaStyle     = lipgloss.NewStyle().Faint(true)
	incomingStyle = lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.RoundedBorder())
	outgoingStyle = lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#25D366"))
	callStyle     = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("#E53935"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#E53935")).Bold(true)
)

type stderrReporter struct{}

func (stderrReporter) Report(err error) {
	fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
}

// termScroller is a no-op: the terminal always shows the newest output
type termScroller struct{}

func (termScroller) ScrollToBottom() {}

func runTail(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	ticketID, _ := cmd.Flags().GetString("ticket")
	contactID, _ := cmd.Flags().GetString("contact")
	isGroup, _ := cmd.Flags().GetBool("group")
	feedKind, _ := cmd.Flags().GetString("feed")
	width, _ := cmd.Flags().GetInt("width")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var feed transcript.Feed
	switch feedKind {
	case "ws":
		sockets := client.NewSocketManager(cfg.WSURL, log)
		defer sockets.Close()
		feed = sockets.GetSocket(cfg.CompanyID)
	case "redis":
		if cfg.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis feed")
		}
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return err
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		feed = client.NewRedisFeed(rdb, log)
	default:
		return fmt.Errorf("unknown feed %q", feedKind)
	}

	view := transcript.NewView(transcript.Config{
		Fetcher:  client.NewHistoryClient(cfg.APIURL, cfg.CompanyID),
		Feed:     feed,
		Scroller: termScroller{},
		Reporter: stderrReporter{},
		Logger:   log,
		Debounce: cfg.Debounce,
		Render:   transcript.Options{IsGroup: isGroup},
	})
	ticket := models.Ticket{ID: ticketID, Contact: models.Contact{ID: contactID}, IsGroup: isGroup}
	if err := view.Open(ctx, cfg.CompanyID, ticket); err != nil {
		return err
	}
	defer view.Close()

	go readCommands(ctx, os.Stdin, view, log)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-view.Changes():
			fmt.Fprint(os.Stdout, "\033[H\033[2J")
			fmt.Fprintln(os.Stdout, drawFrame(view.Frame(), width))
		}
	}
}

func readCommands(ctx context.Context, r io.Reader, view *transcript.View, log logger.Logger) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		switch strings.TrimSpace(scanner.Text()) {
		case "more":
			view.HandleScroll(0)
		case "":
		default:
			log.Debug(ctx, "unknown command", logger.F("input", scanner.Text()))
		}
	}
}

// drawFrame lays a frame out as terminal text
func drawFrame(f transcript.Frame, width int) string {
	var b strings.Builder
	if f.Loading {
		b.WriteString(metaStyle.Render("loading older messages...") + "\n")
	}
	if f.Empty != "" {
		b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, noticeStyle.Render(f.Empty)) + "\n")
	}

	for _, e := range f.Entries {
		if e.Ticket != nil {
			line := fmt.Sprintf("ticket closed %s | opened %s",
				e.Ticket.ClosedAt.Format("02/01/2006 15:04"), e.Ticket.OpenedAt.Format("02/01/2006 15:04"))
			b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, dayStyle.Render(line)) + "\n")
		}
		if e.DayMarker {
			b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, dayStyle.Render(e.Day)) + "\n")
		}
		if e.Divider {
			b.WriteString("\n")
		}
		b.WriteString(drawEntry(e, width) + "\n")
	}

	switch {
	case f.Typing:
		b.WriteString(metaStyle.Render("typing...") + "\n")
	case f.Recording:
		b.WriteString(metaStyle.Render("recording audio...") + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func drawEntry(e transcript.Entry, width int) string {
	if e.Variant == transcript.VariantCallLog {
		return lipgloss.PlaceHorizontal(width, lipgloss.Center, callStyle.Render(e.Body))
	}

	var lines []string
	if e.SenderName != "" {
		lines = append(lines, senderStyle.Render(e.SenderName))
	}
	if e.QueueName != "" {
		lines = append(lines, metaStyle.Render(e.QueueName))
	}
	if e.Forwarded {
		lines = append(lines, metaStyle.Render("forwarded"))
	}
	if e.Quoted != nil {
		q := e.Quoted.Body
		if e.Quoted.SenderName != "" {
			q = e.Quoted.SenderName + ": " + q
		}
		lines = append(lines, quoteStyle.Render(q))
	}
	if m := drawMedia(e.Media); m != "" {
		lines = append(lines, m)
	}
	if e.Reaction != nil {
		lines = append(lines, fmt.Sprintf("%s reacted %s", e.Reaction.Who, e.Reaction.Emoji))
	}
	if e.Notice != "" {
		lines = append(lines, noticeStyle.Render(e.Notice))
	}
	if e.Body != "" {
		lines = append(lines, e.Body)
	}

	meta := metaStyle.Render(e.Timestamp)
	if g := e.Ack.String(); g != "" {
		if c := e.Ack.Color(); c != "" {
			meta += " " + lipgloss.NewStyle().Foreground(lipgloss.Color(c)).Render(g)
		} else {
			meta += " " + metaStyle.Render(g)
		}
	}
	lines = append(lines, meta)

	body := strings.Join(lines, "\n")
	if e.Variant == transcript.VariantOutgoing {
		return lipgloss.PlaceHorizontal(width, lipgloss.Right, outgoingStyle.Render(body))
	}
	return incomingStyle.Render(body)
}

func drawMedia(m transcript.Media) string {
	switch m.Kind {
	case transcript.MediaImage:
		return "[image] " + m.URL
	case transcript.MediaAudio:
		return "[audio] " + m.URL
	case transcript.MediaVideo:
		return "[video] " + m.URL
	case transcript.MediaDownload:
		return "[file] " + m.URL
	case transcript.MediaLocation:
		if m.Location != nil {
			return "[location] " + m.Location.Description + " " + m.Location.Link
		}
	case transcript.MediaContactCard:
		if m.Contact != nil {
			return "[contact] " + m.Contact.Name + " " + strings.Join(m.Contact.Numbers, ", ")
		}
	}
	return ""
}
