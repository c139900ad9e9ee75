package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/telebot.v3"
	"gopkg.in/telebot.v3/middleware"

	"betledger/internal/config"
	"betledger/internal/ledger"
	"betledger/internal/logger"
	"betledger/internal/tracker"
)

const opTimeout = 5 * time.Second

var markdown = &telebot.SendOptions{ParseMode: telebot.ModeMarkdown}

var (
	// betButton is the inline button attached to each bet in selection lists
	betButton = &telebot.InlineButton{Unique: "bet"}
	// pageButton moves a selection list to the offset in its data
	pageButton = &telebot.InlineButton{Unique: "page"}
)

// Bot is the Telegram surface of the tracker
type Bot struct {
	bot       *telebot.Bot
	tracker   *tracker.Tracker
	log       *zap.Logger
	webAppURL string
}

// New creates the bot and registers every command. Long polling starts
// with Start.
func New(cfg config.Telegram, t *tracker.Tracker, log *zap.Logger) (*Bot, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram token not set")
	}
	return newBot(telebot.Settings{
		Token:  cfg.Token,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
	}, cfg, t, log)
}

func newBot(settings telebot.Settings, cfg config.Telegram, t *tracker.Tracker, log *zap.Logger) (*Bot, error) {
	if log == nil {
		log = zap.NewNop()
	}
	settings.OnError = func(err error, c telebot.Context) {
		fields := []zap.Field{zap.Error(err)}
		if c != nil && c.Sender() != nil {
			fields = append(fields, zap.Int64("user_id", c.Sender().ID))
		}
		log.Error("bot_error", fields...)
	}

	tb, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{bot: tb, tracker: t, log: log, webAppURL: cfg.WebAppURL}

	if cfg.OwnerID != 0 {
		tb.Use(middleware.Whitelist(cfg.OwnerID))
	}
	tb.Use(middleware.AutoRespond())

	tb.Handle("/start", b.handleStart)
	tb.Handle("/help", b.handleHelp)
	tb.Handle("/new", b.handleNew)
	tb.Handle("/edit", b.handleEdit)
	tb.Handle("/delete", b.handleDelete)
	tb.Handle("/cancel", b.handleCancel)
	tb.Handle("/list", b.handleList)
	tb.Handle("/stats", b.handleStats)
	tb.Handle("/chart", b.handleChart)
	tb.Handle("/note", b.handleNote)
	tb.Handle(betButton, b.handleBetButton)
	tb.Handle(pageButton, b.handlePageButton)

	return b, nil
}

// Start polls for updates until Stop is called
func (b *Bot) Start() {
	b.log.Info("bot_started", zap.String("username", b.bot.Me.Username))
	b.bot.Start()
}

// Telebot returns the underlying client for sending outside a handler
func (b *Bot) Telebot() *telebot.Bot {
	return b.bot
}

// Stop ends polling
func (b *Bot) Stop() {
	b.bot.Stop()
}

func (b *Bot) debug(c telebot.Context, action string, fields ...zap.Field) {
	b.log.Debug(action, append(logger.Sender(c.Sender().ID, action), fields...)...)
}

// reply sends text and appends any pending persist warning
func (b *Bot) reply(c telebot.Context, text string, opts ...interface{}) error {
	if err := b.tracker.PersistWarning(); err != nil {
		text += "\n\n⚠️ Saved in memory only: " + escapeMarkdown(err.Error())
	}
	return c.Send(text, append([]interface{}{markdown}, opts...)...)
}

func (b *Bot) handleStart(c telebot.Context) error {
	b.debug(c, "command_start", zap.String("username", c.Sender().Username))

	text := fmt.Sprintf("Welcome to your bet ledger, %s! 🎲\n\n"+
		"Record a bet with %s and see how you are doing with /stats and /chart.\n"+
		"Send /help for every command.",
		escapeMarkdown(c.Sender().FirstName), newUsage)

	if b.webAppURL == "" {
		return c.Send(text, markdown)
	}
	btn := telebot.InlineButton{
		Text:   "📒 Open ledger",
		WebApp: &telebot.WebApp{URL: b.webAppURL},
	}
	return c.Send(text, markdown, &telebot.ReplyMarkup{
		InlineKeyboard: [][]telebot.InlineButton{{btn}},
	})
}

func (b *Bot) handleHelp(c telebot.Context) error {
	b.debug(c, "command_help")
	helpText := "📚 *Available Commands*\n\n" +
		newUsage + " - record a bet\n" +
		"/list - list bets, optionally `all`, `win`, `lose` or `pending` and a page number\n" +
		"/edit - pick a bet to edit, then send " + editUsage + "\n" +
		"/delete - pick bets to delete, send again to stop\n" +
		"/cancel - leave edit or delete mode\n" +
		"/stats - totals, net profit and win rate\n" +
		"/chart - cumulative profit by day\n" +
		"/note - show the note, `/note text` replaces it, several lines allowed\n\n" +
		"Dates are YYYY-MM-DD or DD/MM/YYYY. Result is win, lose or pending."
	return c.Send(helpText, markdown)
}

func (b *Bot) handleNew(c telebot.Context) error {
	client := c.Sender().ID
	b.debug(c, "command_new", zap.String("payload", c.Message().Payload))

	raw, err := parseBetArgs(c.Message().Payload)
	if err != nil {
		return c.Send("❌ *Usage:* "+newUsage, markdown)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	b.tracker.OpenForm(client)
	bet, err := b.tracker.Submit(ctx, client, raw)
	if err != nil {
		b.tracker.CloseForm(client)
		return b.sendError(c, err)
	}

	b.debug(c, "bet_created", zap.String("bet_id", bet.ID))
	return b.reply(c, "✅ *Bet recorded*\n\n"+formatBet(0, bet))
}

func (b *Bot) handleEdit(c telebot.Context) error {
	client := c.Sender().ID
	payload := strings.TrimSpace(c.Message().Payload)
	b.debug(c, "command_edit", zap.String("payload", payload))

	if payload == "" {
		if b.tracker.ToggleEditMode(client) != tracker.ModeSelectingForEdit {
			return c.Send("Edit selection off.")
		}
		return b.sendPicker(c, "✏️ *Pick a bet to edit*")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	// "/edit <id> fields" targets a bet directly
	if id, rest, ok := strings.Cut(payload, " "); ok {
		if _, err := b.tracker.Bet(id); err == nil {
			raw, err := parseBetArgs(rest)
			if err != nil {
				return c.Send("❌ *Usage:* "+editUsage, markdown)
			}
			bet, err := b.tracker.UpdateBet(ctx, id, raw)
			if err != nil {
				return b.sendError(c, err)
			}
			b.debug(c, "bet_updated", zap.String("bet_id", bet.ID))
			return b.reply(c, "✅ *Bet updated*\n\n"+formatBet(0, bet))
		}
	}

	raw, err := parseBetArgs(payload)
	if err != nil {
		return c.Send("❌ *Usage:* "+editUsage, markdown)
	}
	bet, err := b.tracker.SubmitEdit(ctx, client, raw)
	if err != nil {
		return b.sendError(c, err)
	}
	b.debug(c, "bet_updated", zap.String("bet_id", bet.ID))
	return b.reply(c, "✅ *Bet updated*\n\n"+formatBet(0, bet))
}

func (b *Bot) handleDelete(c telebot.Context) error {
	client := c.Sender().ID
	b.debug(c, "command_delete")

	if b.tracker.ToggleDeleteMode(client) != tracker.ModeConfirmingDelete {
		return c.Send("Delete mode off.")
	}
	return b.sendPicker(c, "🗑 *Tap bets to delete*\nSend /delete again or /cancel when done.")
}

func (b *Bot) handleCancel(c telebot.Context) error {
	b.debug(c, "command_cancel")
	b.tracker.Cancel(c.Sender().ID)
	return c.Send("Back to browsing.")
}

// sendPicker lists the first page of the client's tab as inline buttons
func (b *Bot) sendPicker(c telebot.Context, title string) error {
	bets := b.tracker.Bets(b.tracker.View(c.Sender().ID).Filter)
	if len(bets) == 0 {
		b.tracker.Cancel(c.Sender().ID)
		return c.Send("No bets to pick from.")
	}
	return c.Send(title, markdown, pickerMarkup(bets, 0))
}

// pickerMarkup builds one page of bet buttons starting at offset, with
// prev and next buttons when the list does not fit.
func pickerMarkup(bets []ledger.Bet, offset int) *telebot.ReplyMarkup {
	offset = min(max(offset, 0), (pageCount(len(bets), maxButtons)-1)*maxButtons)
	end := min(offset+maxButtons, len(bets))

	rows := make([][]telebot.InlineButton, 0, end-offset+1)
	for _, bet := range bets[offset:end] {
		rows = append(rows, []telebot.InlineButton{{
			Unique: betButton.Unique,
			Text:   buttonLabel(bet),
			Data:   bet.ID,
		}})
	}

	var nav []telebot.InlineButton
	if offset > 0 {
		nav = append(nav, telebot.InlineButton{
			Unique: pageButton.Unique,
			Text:   "◀ Newer",
			Data:   strconv.Itoa(max(offset-maxButtons, 0)),
		})
	}
	if end < len(bets) {
		nav = append(nav, telebot.InlineButton{
			Unique: pageButton.Unique,
			Text:   fmt.Sprintf("Older ▶ (%d more)", len(bets)-end),
			Data:   strconv.Itoa(end),
		})
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	return &telebot.ReplyMarkup{InlineKeyboard: rows}
}

func (b *Bot) handlePageButton(c telebot.Context) error {
	client := c.Sender().ID
	offset, err := strconv.Atoi(c.Callback().Data)
	if err != nil {
		return fmt.Errorf("bad page offset %q: %w", c.Callback().Data, err)
	}
	b.debug(c, "picker_page", zap.Int("offset", offset))

	view := b.tracker.View(client)
	if view.Mode == tracker.ModeBrowsing {
		return c.Send("Use /edit or /delete first.")
	}
	bets := b.tracker.Bets(view.Filter)
	if len(bets) == 0 {
		b.tracker.Cancel(client)
		return c.Send("No bets to pick from.")
	}
	_, err = b.bot.EditReplyMarkup(c.Message(), pickerMarkup(bets, offset))
	return err
}

func (b *Bot) handleBetButton(c telebot.Context) error {
	client := c.Sender().ID
	id := c.Callback().Data
	b.debug(c, "bet_selected", zap.String("bet_id", id))

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	action, bet, err := b.tracker.SelectBet(ctx, client, id)
	if err != nil {
		return b.sendError(c, err)
	}

	switch action {
	case tracker.SelectDeleted:
		b.debug(c, "bet_deleted", zap.String("bet_id", id))
		return b.reply(c, "🗑 Deleted "+escapeMarkdown(bet.Event))
	case tracker.SelectEditing:
		return c.Send(fmt.Sprintf("✏️ Editing %s\nSend the new values:\n`/edit %s`",
			escapeMarkdown(bet.Event), codeSpan(betArgs(bet))), markdown)
	default:
		return c.Send("Use /edit or /delete first.")
	}
}

func (b *Bot) handleList(c telebot.Context) error {
	client := c.Sender().ID
	b.debug(c, "command_list", zap.String("payload", c.Message().Payload))

	f := b.tracker.View(client).Filter
	page := 1
	for _, arg := range strings.Fields(c.Message().Payload) {
		if n, err := strconv.Atoi(arg); err == nil {
			page = n
			continue
		}
		parsed, err := ledger.ParseFilter(arg)
		if err != nil {
			return c.Send("❌ Filter must be all, win, lose or pending.")
		}
		f = parsed
		b.tracker.SetFilter(client, f)
	}

	bets := b.tracker.Bets(f)
	return c.Send(formatBetList(f, bets, b.tracker.Summary().Counts, page), markdown)
}

func (b *Bot) handleStats(c telebot.Context) error {
	b.debug(c, "command_stats")
	return c.Send(formatStats(b.tracker.Summary()), markdown)
}

func (b *Bot) handleChart(c telebot.Context) error {
	b.debug(c, "command_chart")
	return c.Send(formatSeries(b.tracker.Series()), markdown)
}

func (b *Bot) handleNote(c telebot.Context) error {
	text := commandText(c.Text())
	b.debug(c, "command_note", zap.Int("length", len(text)))

	if text == "" {
		note := b.tracker.Note()
		if note == "" {
			return c.Send("📝 No note yet. `/note text` saves one.", markdown)
		}
		return c.Send("📝 *Interesting odds*\n\n"+escapeMarkdown(note), markdown)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	b.tracker.SetNote(ctx, text)
	return b.reply(c, "📝 Note saved.")
}

// sendError turns tracker errors into a user-facing message
func (b *Bot) sendError(c telebot.Context, err error) error {
	var verr *ledger.ValidationError
	switch {
	case errors.As(err, &verr):
		lines := make([]string, 0, len(verr.Fields))
		for _, name := range verr.Names() {
			lines = append(lines, fmt.Sprintf("• %s %s", name, verr.Fields[name]))
		}
		return c.Send("❌ *Invalid bet*\n\n"+escapeMarkdown(strings.Join(lines, "\n")), markdown)
	case errors.Is(err, ledger.ErrNotFound):
		return c.Send("❌ That bet no longer exists.")
	case errors.Is(err, tracker.ErrNoSelection):
		return c.Send("❌ No bet selected. Send /edit and pick one first.")
	default:
		b.log.Error("bot_operation_failed", append(logger.Sender(c.Sender().ID, "error"), zap.Error(err))...)
		return c.Send("Something went wrong. Please try again.")
	}
}
