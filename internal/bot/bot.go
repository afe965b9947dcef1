// Package bot is the Telegram front end: it owns the per-chat sessions and
// translates commands and button presses into operations on the catalog, the
// progress store and the mini-games.
package bot

import (
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/linguaquest/internal/auth"
	"github.com/example/linguaquest/internal/games"
	"github.com/example/linguaquest/internal/mirror"
	"github.com/example/linguaquest/internal/progress"
	"github.com/example/linguaquest/internal/pronounce"
	"github.com/example/linguaquest/internal/scheduler"
	"github.com/example/linguaquest/internal/speech"
	"github.com/example/linguaquest/pkg/models"
)

// Errors returned by the practice operations
var (
	ErrNotSignedIn  = errors.New("no user is signed in")
	ErrNoLessonOpen = errors.New("no lesson is currently open")
)

// MenuButton represents a button in the menu
type MenuButton struct {
	Text         string
	CallbackData string
}

// createKeyboard creates a keyboard from menu buttons
func createKeyboard(buttons [][]MenuButton) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		var keyboardRow []tgbotapi.InlineKeyboardButton
		for _, button := range row {
			keyboardRow = append(keyboardRow, tgbotapi.NewInlineKeyboardButtonData(button.Text, button.CallbackData))
		}
		keyboard = append(keyboard, keyboardRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

// messenger is the slice of the Telegram API the handlers need. Tests swap
// in a recording fake.
type messenger interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// fileResolver resolves a Telegram file id to a download URL
type fileResolver interface {
	GetFileDirectURL(fileID string) (string, error)
}

// View identifies which screen a chat is currently on
type View string

// The view states a session moves through
const (
	ViewHome   View = "home"
	ViewLevels View = "levels"
	ViewLevel  View = "level"
	ViewLesson View = "lesson"
	ViewGame   View = "game"
)

// Pending input states: the next plain text message is consumed by the
// matching handler instead of the unknown-input fallback
const (
	pendingRegisterEmail    = "register_email"
	pendingRegisterPassword = "register_password"
	pendingLoginEmail       = "login_email"
	pendingLoginPassword    = "login_password"
	pendingNotes            = "notes"
)

// Session is the per-chat conversation state. Updates are handled on their
// own goroutines, so mu serializes all handler work for one chat; it is
// taken once per update in handleUpdate.
type Session struct {
	mu sync.Mutex

	View     View
	LevelID  string
	LessonID string

	User *models.User

	Match  *games.MatchGame
	Choice *games.ChoiceGame

	Pending        string
	PendingEmail   string
	AwaitingImport bool
}

// Dependencies holds everything the bot needs to operate
type Dependencies struct {
	Levels      []models.Level
	Progress    *progress.Store
	Auth        auth.Provider
	Remote      mirror.Mirror
	Transcriber *speech.Transcriber
	TTS         *speech.TTSClient
	ContentPath string
	Config      *BotConfig
}

// Bot represents the Telegram bot application
type Bot struct {
	api    messenger
	files  fileResolver
	botAPI *tgbotapi.BotAPI
	token  string

	levels      []models.Level
	progress    *progress.Store
	auth        auth.Provider
	remote      mirror.Mirror
	transcriber *speech.Transcriber
	tts         *speech.TTSClient
	contentPath string
	config      *BotConfig

	schedulerEnabled bool
	scheduler        *scheduler.Scheduler
	adminUserIDs     map[int64]bool

	// rnd is not goroutine safe; rndMu covers its use across chats
	rndMu sync.Mutex
	rnd   *rand.Rand

	mu       sync.Mutex
	sessions map[int64]*Session

	commands  map[string]commandHandler
	callbacks map[string]callbackHandler
	prefixes  []prefixHandler
}

// New creates a new bot instance
func New(deps Dependencies) (*Bot, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable is not set")
	}

	if deps.Progress == nil {
		return nil, fmt.Errorf("progress store is not configured")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("identity provider is not configured")
	}

	config := deps.Config
	if config == nil {
		config = DefaultConfig()
	}

	bot := &Bot{
		token:            token,
		levels:           deps.Levels,
		progress:         deps.Progress,
		auth:             deps.Auth,
		remote:           deps.Remote,
		transcriber:      deps.Transcriber,
		tts:              deps.TTS,
		contentPath:      deps.ContentPath,
		config:           config,
		schedulerEnabled: os.Getenv("ENABLE_SCHEDULER") != "false",
		adminUserIDs:     make(map[int64]bool),
		rnd:              rand.New(rand.NewSource(time.Now().UnixNano())),
		sessions:         make(map[int64]*Session),
	}
	bot.registerHandlers()

	adminIDs := os.Getenv("ADMIN_USER_IDS")
	if adminIDs != "" {
		for _, idStr := range strings.Split(adminIDs, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64)
			if err != nil {
				log.Printf("Warning: Invalid admin user ID: %s", idStr)
				continue
			}
			bot.adminUserIDs[id] = true
		}
	}

	return bot, nil
}

// Start initializes and starts the bot
func (b *Bot) Start() error {
	botAPI, err := tgbotapi.NewBotAPI(b.token)
	if err != nil {
		return fmt.Errorf("unable to create bot: %v", err)
	}

	b.botAPI = botAPI
	b.api = botAPI
	b.files = botAPI
	log.Printf("Authorized on account %s", botAPI.Self.UserName)

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = b.config.UpdateTimeout

	updates := b.botAPI.GetUpdatesChan(updateConfig)

	if b.schedulerEnabled {
		b.scheduler = scheduler.New(b, b.progress, b)
		b.scheduler.Start()
		log.Println("Reminder scheduler started")
	}

	for update := range updates {
		go b.handleUpdate(update)
	}

	return nil
}

// Stop gracefully stops the bot
func (b *Bot) Stop() {
	if b.scheduler != nil {
		b.scheduler.Stop()
	}
	if b.botAPI != nil {
		b.botAPI.StopReceivingUpdates()
	}
	log.Println("Bot stopped")
}

// session returns the state for a chat, creating it on first contact
func (b *Bot) session(chatID int64) *Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	sess, ok := b.sessions[chatID]
	if !ok {
		sess = &Session{View: ViewHome}
		b.sessions[chatID] = sess
	}
	return sess
}

// isAdmin checks if a user is an admin
func (b *Bot) isAdmin(userID int64) bool {
	return b.adminUserIDs[userID]
}

// handleUpdate handles incoming updates from Telegram. The chat's session
// lock is held for the whole update, so handlers never see a chat's state
// mid-mutation even though every update runs on its own goroutine.
func (b *Bot) handleUpdate(update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		sess := b.session(update.Message.Chat.ID)
		sess.mu.Lock()
		err := b.handleMessage(sess, update.Message)
		sess.mu.Unlock()
		if err != nil {
			log.Printf("Error handling message in chat %d: %v", update.Message.Chat.ID, err)
		}
	case update.CallbackQuery != nil:
		if update.CallbackQuery.Message != nil {
			sess := b.session(update.CallbackQuery.Message.Chat.ID)
			sess.mu.Lock()
			defer sess.mu.Unlock()
		}
		if err := b.handleCallbackQuery(update.CallbackQuery); err != nil {
			log.Printf("Error handling callback %q: %v", update.CallbackQuery.Data, err)
		}
	}
}

// handleMessage routes a single incoming message. The caller holds the
// session lock.
func (b *Bot) handleMessage(sess *Session, message *tgbotapi.Message) error {
	if message.IsCommand() {
		handler, ok := b.commands[message.Command()]
		if !ok {
			return b.handleUnknownCommand(message)
		}
		return handler(b, message)
	}

	if message.Voice != nil || message.Audio != nil {
		return b.handleVoiceMessage(sess, message)
	}

	if message.Document != nil && sess.AwaitingImport {
		return b.handleImportDocument(sess, message)
	}

	if sess.Pending != "" {
		handler, ok := b.pendingHandlers()[sess.Pending]
		if ok {
			return handler(b, sess, message)
		}
		sess.Pending = ""
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, "I don't understand. Use /menu to show the main menu.")
	msg.ReplyMarkup = createKeyboard(b.MainMenuButtons(sess))
	return b.sendMessage(msg)
}

// PracticeResult is the outcome of scoring one spoken attempt
type PracticeResult struct {
	Score   int
	XP      int
	Metrics models.UserMetrics
}

// SubmitTranscript scores a transcript against the lesson currently open in
// the chat, awards the XP and records the attempt. This is the whole of the
// pronunciation flow minus the audio plumbing, so voice handling and tests
// share it.
func (b *Bot) SubmitTranscript(chatID int64, transcript string) (PracticeResult, error) {
	sess := b.session(chatID)
	if sess.User == nil {
		return PracticeResult{}, ErrNotSignedIn
	}

	lesson := b.currentLesson(sess)
	if lesson == nil {
		return PracticeResult{}, ErrNoLessonOpen
	}

	score := pronounce.Score(lesson.Text, transcript)
	xp := int(math.Round(float64(score) / float64(b.config.ScoreXPDivisor)))

	metrics, err := b.progress.AwardXP(sess.User.ID, xp)
	if err != nil {
		return PracticeResult{}, fmt.Errorf("failed to award XP: %v", err)
	}

	now := time.Now()
	record := models.ProgressRecord{LastScore: &score, PracticedAt: &now}
	if err := b.progress.UpsertLessonRecord(lesson.ID, record, sess.User.ID); err != nil {
		return PracticeResult{}, fmt.Errorf("failed to record attempt: %v", err)
	}

	return PracticeResult{Score: score, XP: xp, Metrics: metrics}, nil
}

// AwardGameBonus pays a mini-game bonus to the signed-in user
func (b *Bot) AwardGameBonus(chatID int64, bonus int) (models.UserMetrics, error) {
	sess := b.session(chatID)
	if sess.User == nil {
		return models.UserMetrics{}, ErrNotSignedIn
	}
	return b.progress.AwardXP(sess.User.ID, bonus)
}

// currentLevel resolves the level the session points at
func (b *Bot) currentLevel(sess *Session) *models.Level {
	for i := range b.levels {
		if b.levels[i].ID == sess.LevelID {
			return &b.levels[i]
		}
	}
	return nil
}

// currentLesson resolves the lesson the session points at
func (b *Bot) currentLesson(sess *Session) *models.LessonPhrase {
	level := b.currentLevel(sess)
	if level == nil {
		return nil
	}
	return level.FindLesson(sess.LessonID)
}

// ReminderTargets implements the scheduler.Sessions interface: every chat
// with a signed-in user is a reminder candidate.
func (b *Bot) ReminderTargets() []scheduler.Target {
	// Snapshot the session map first: sess.User is guarded by the session
	// lock, not b.mu, and handlers holding a session lock may re-enter
	// b.session.
	b.mu.Lock()
	chats := make(map[int64]*Session, len(b.sessions))
	for chatID, sess := range b.sessions {
		chats[chatID] = sess
	}
	b.mu.Unlock()

	var targets []scheduler.Target
	for chatID, sess := range chats {
		sess.mu.Lock()
		user := sess.User
		sess.mu.Unlock()
		if user == nil {
			continue
		}
		targets = append(targets, scheduler.Target{ChatID: chatID, UserID: user.ID})
	}
	return targets
}

// SendPracticeReminder implements the scheduler.Notifier interface
func (b *Bot) SendPracticeReminder(chatID int64, streak int) error {
	text := fmt.Sprintf("🔥 Your streak is at %d! Practice a lesson today to keep it going.", streak)
	msg := tgbotapi.NewMessage(chatID, text)
	err := b.sendMessage(msg)
	if err != nil {
		log.Printf("Error sending reminder to chat %d: %v", chatID, err)
	} else {
		log.Printf("Successfully sent reminder to chat %d (streak %d)", chatID, streak)
	}
	return err
}

// sendMessage dispatches any chattable, new message or edit, and swallows
// the returned copy
func (b *Bot) sendMessage(c tgbotapi.Chattable) error {
	_, err := b.api.Send(c)
	return err
}
