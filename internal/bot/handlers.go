package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/linguaquest/internal/auth"
	"github.com/example/linguaquest/internal/content"
	"github.com/example/linguaquest/internal/export"
	"github.com/example/linguaquest/internal/games"
	"github.com/example/linguaquest/pkg/models"
)

type commandHandler func(b *Bot, message *tgbotapi.Message) error

type callbackHandler func(b *Bot, callback *tgbotapi.CallbackQuery, arg string) error

type prefixHandler struct {
	prefix  string
	handler callbackHandler
}

type pendingHandler func(b *Bot, sess *Session, message *tgbotapi.Message) error

// registerHandlers builds the command and callback dispatch tables
func (b *Bot) registerHandlers() {
	b.commands = map[string]commandHandler{
		"start":    (*Bot).handleStart,
		"help":     (*Bot).handleHelp,
		"menu":     (*Bot).handleMenu,
		"levels":   (*Bot).handleLevelsCommand,
		"play":     (*Bot).handlePlayCommand,
		"stats":    (*Bot).handleStatsCommand,
		"export":   (*Bot).handleExportCommand,
		"register": (*Bot).handleRegisterCommand,
		"login":    (*Bot).handleLoginCommand,
		"logout":   (*Bot).handleLogoutCommand,
		"import":   (*Bot).handleImportCommand,
	}

	b.callbacks = map[string]callbackHandler{
		"main_menu":   (*Bot).callbackMainMenu,
		"levels":      (*Bot).callbackLevels,
		"stats":       (*Bot).callbackStats,
		"play_random": (*Bot).callbackPlayRandom,
		"listen":      (*Bot).callbackListen,
		"notes":       (*Bot).callbackNotes,
		"game_match":  (*Bot).callbackGameMatch,
		"game_choice": (*Bot).callbackGameChoice,
		"export_json": (*Bot).callbackExportJSON,
		"export_xlsx": (*Bot).callbackExportExcel,
		"register":    (*Bot).callbackRegister,
		"login":       (*Bot).callbackLogin,
		"logout":      (*Bot).callbackLogout,
	}

	b.prefixes = []prefixHandler{
		{"level_", (*Bot).callbackOpenLevel},
		{"lesson_", (*Bot).callbackOpenLesson},
		{"tile_", (*Bot).callbackTile},
		{"pick_", (*Bot).callbackPick},
	}
}

// pendingHandlers maps the pending-input states to their consumers
func (b *Bot) pendingHandlers() map[string]pendingHandler {
	return map[string]pendingHandler{
		pendingRegisterEmail:    (*Bot).pendingEmail,
		pendingLoginEmail:       (*Bot).pendingEmail,
		pendingRegisterPassword: (*Bot).pendingPassword,
		pendingLoginPassword:    (*Bot).pendingPassword,
		pendingNotes:            (*Bot).pendingNotesText,
	}
}

// handleCallbackQuery routes inline button presses
func (b *Bot) handleCallbackQuery(callback *tgbotapi.CallbackQuery) error {
	if callback.Message == nil || callback.From == nil {
		return fmt.Errorf("invalid callback data: required fields are missing")
	}

	// Always answer the callback to remove the loading state
	answer := tgbotapi.NewCallback(callback.ID, "")
	if _, err := b.api.Request(answer); err != nil {
		log.Printf("Warning: Failed to answer callback: %v", err)
	}

	if handler, ok := b.callbacks[callback.Data]; ok {
		return handler(b, callback, "")
	}

	for _, p := range b.prefixes {
		if strings.HasPrefix(callback.Data, p.prefix) {
			return p.handler(b, callback, strings.TrimPrefix(callback.Data, p.prefix))
		}
	}

	return b.sendMessage(tgbotapi.NewMessage(callback.Message.Chat.ID, "⚠️ Unknown action"))
}

// ---- commands ----

func (b *Bot) handleStart(message *tgbotapi.Message) error {
	sess := b.session(message.Chat.ID)

	welcomeText := `Welcome to LinguaQuest! 🗺

Practice phrases, play word games and keep your streak alive.

Available commands:
/menu - Show main menu
/levels - Browse the lesson catalog
/play - Practice a random lesson
/stats - Show your progress
/export - Export your progress
/login - Sign in
/register - Create an account`

	msg := tgbotapi.NewMessage(message.Chat.ID, welcomeText)
	msg.ReplyMarkup = createKeyboard(b.MainMenuButtons(sess))
	return b.sendMessage(msg)
}

func (b *Bot) handleHelp(message *tgbotapi.Message) error {
	text := "📖 How it works\n\n" +
		"1. Open a level and pick a lesson\n" +
		"2. Listen to the phrase and record yourself saying it\n" +
		"3. Your pronunciation is scored from 0 to 100\n" +
		"4. Every attempt earns XP and extends your streak\n\n" +
		"🎮 Mini-games:\n" +
		"🧩 Match Pairs - find each word and its mirrored twin (+5 XP per pair)\n" +
		"🔤 Word Quiz - spot the word that appears in the phrase (+10 XP)\n\n" +
		"Sign in with /login so your progress follows you."

	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ReplyMarkup = createKeyboard([][]MenuButton{
		{{Text: "« Back to Menu", CallbackData: "main_menu"}},
	})
	return b.sendMessage(msg)
}

func (b *Bot) handleMenu(message *tgbotapi.Message) error {
	return b.showMainMenu(message.Chat.ID)
}

func (b *Bot) handleLevelsCommand(message *tgbotapi.Message) error {
	return b.showLevels(message.Chat.ID)
}

func (b *Bot) handlePlayCommand(message *tgbotapi.Message) error {
	return b.startRandomPractice(message.Chat.ID)
}

func (b *Bot) handleStatsCommand(message *tgbotapi.Message) error {
	return b.showStats(message.Chat.ID)
}

func (b *Bot) handleExportCommand(message *tgbotapi.Message) error {
	msg := tgbotapi.NewMessage(message.Chat.ID, "📦 Choose an export format:")
	msg.ReplyMarkup = createKeyboard([][]MenuButton{
		{
			{Text: "📄 JSON", CallbackData: "export_json"},
			{Text: "📊 Excel", CallbackData: "export_xlsx"},
		},
		{{Text: "« Back to Menu", CallbackData: "main_menu"}},
	})
	return b.sendMessage(msg)
}

func (b *Bot) handleRegisterCommand(message *tgbotapi.Message) error {
	return b.startAuthFlow(message.Chat.ID, pendingRegisterEmail)
}

func (b *Bot) handleLoginCommand(message *tgbotapi.Message) error {
	return b.startAuthFlow(message.Chat.ID, pendingLoginEmail)
}

func (b *Bot) handleLogoutCommand(message *tgbotapi.Message) error {
	return b.signOut(message.Chat.ID)
}

func (b *Bot) handleImportCommand(message *tgbotapi.Message) error {
	if !b.isAdmin(message.From.ID) {
		msg := tgbotapi.NewMessage(message.Chat.ID, "This command is only available for administrators.")
		msg.ReplyMarkup = createKeyboard(b.MainMenuButtons(b.session(message.Chat.ID)))
		return b.sendMessage(msg)
	}

	sess := b.session(message.Chat.ID)
	sess.AwaitingImport = true

	text := "📝 *Catalog import*\n\n" +
		"Send an .xlsx or .csv file with one lesson per row:\n\n" +
		"```\n" +
		"level title, lesson title, phrase text\n" +
		"```\n\n" +
		"The first row is treated as a header."
	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ParseMode = "Markdown"
	return b.sendMessage(msg)
}

func (b *Bot) handleUnknownCommand(message *tgbotapi.Message) error {
	msg := tgbotapi.NewMessage(message.Chat.ID, "Unknown command. Use /menu to show the main menu.")
	msg.ReplyMarkup = createKeyboard(b.MainMenuButtons(b.session(message.Chat.ID)))
	return b.sendMessage(msg)
}

// ---- menus and navigation ----

// MainMenuButtons returns the buttons for the main menu. The last row
// depends on whether someone is signed in.
func (b *Bot) MainMenuButtons(sess *Session) [][]MenuButton {
	buttons := [][]MenuButton{
		{
			{Text: "📚 Levels", CallbackData: "levels"},
			{Text: "🎲 Random Practice", CallbackData: "play_random"},
		},
		{
			{Text: "📊 Statistics", CallbackData: "stats"},
			{Text: "📦 Export", CallbackData: "export_json"},
		},
	}
	if sess.User == nil {
		buttons = append(buttons, []MenuButton{
			{Text: "🔑 Sign In", CallbackData: "login"},
			{Text: "✍️ Sign Up", CallbackData: "register"},
		})
	} else {
		buttons = append(buttons, []MenuButton{
			{Text: "🚪 Sign Out", CallbackData: "logout"},
		})
	}
	return buttons
}

// showMainMenu shows the main menu
func (b *Bot) showMainMenu(chatID int64) error {
	sess := b.session(chatID)
	sess.View = ViewHome
	sess.Match = nil
	sess.Choice = nil

	text := "Main Menu - choose an option:"
	if sess.User != nil {
		text = fmt.Sprintf("Signed in as %s\n\n%s", sess.User.Name, text)
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = createKeyboard(b.MainMenuButtons(sess))
	return b.sendMessage(msg)
}

func (b *Bot) callbackMainMenu(callback *tgbotapi.CallbackQuery, _ string) error {
	return b.showMainMenu(callback.Message.Chat.ID)
}

// showLevels lists the catalog
func (b *Bot) showLevels(chatID int64) error {
	sess := b.session(chatID)
	sess.View = ViewLevels

	if len(b.levels) == 0 {
		msg := tgbotapi.NewMessage(chatID, "The lesson catalog is empty. Ask an administrator to /import one.")
		msg.ReplyMarkup = createKeyboard(b.MainMenuButtons(sess))
		return b.sendMessage(msg)
	}

	var buttons [][]MenuButton
	for _, level := range b.levels {
		label := fmt.Sprintf("%s (%d lessons)", level.Title, len(level.Lessons))
		buttons = append(buttons, []MenuButton{{Text: label, CallbackData: "level_" + level.ID}})
	}
	buttons = append(buttons, []MenuButton{{Text: "« Back to Menu", CallbackData: "main_menu"}})

	msg := tgbotapi.NewMessage(chatID, "📚 Choose a level:")
	msg.ReplyMarkup = createKeyboard(buttons)
	return b.sendMessage(msg)
}

func (b *Bot) callbackLevels(callback *tgbotapi.CallbackQuery, _ string) error {
	return b.showLevels(callback.Message.Chat.ID)
}

func (b *Bot) callbackOpenLevel(callback *tgbotapi.CallbackQuery, levelID string) error {
	chatID := callback.Message.Chat.ID
	sess := b.session(chatID)

	level := content.FindLevel(b.levels, levelID)
	if level == nil {
		return b.sendMessage(tgbotapi.NewMessage(chatID, "❌ That level no longer exists."))
	}

	sess.View = ViewLevel
	sess.LevelID = level.ID
	sess.LessonID = ""
	sess.Match = nil
	sess.Choice = nil

	var text strings.Builder
	text.WriteString(fmt.Sprintf("📖 %s\n", level.Title))
	if level.Description != "" {
		text.WriteString(level.Description + "\n")
	}
	text.WriteString("\nChoose a lesson:")

	var buttons [][]MenuButton
	for _, lesson := range level.Lessons {
		buttons = append(buttons, []MenuButton{{Text: lesson.Title, CallbackData: "lesson_" + lesson.ID}})
	}
	buttons = append(buttons, []MenuButton{{Text: "« Back to Levels", CallbackData: "levels"}})

	msg := tgbotapi.NewMessage(chatID, text.String())
	msg.ReplyMarkup = createKeyboard(buttons)
	return b.sendMessage(msg)
}

func (b *Bot) callbackOpenLesson(callback *tgbotapi.CallbackQuery, lessonID string) error {
	chatID := callback.Message.Chat.ID
	sess := b.session(chatID)

	level := b.currentLevel(sess)
	if level == nil {
		return b.showLevels(chatID)
	}
	lesson := level.FindLesson(lessonID)
	if lesson == nil {
		return b.sendMessage(tgbotapi.NewMessage(chatID, "❌ That lesson no longer exists."))
	}

	sess.LessonID = lesson.ID
	return b.showLesson(chatID, sess, level, lesson)
}

// showLesson renders the lesson screen with the stored record, if any
func (b *Bot) showLesson(chatID int64, sess *Session, level *models.Level, lesson *models.LessonPhrase) error {
	sess.View = ViewLesson
	sess.Match = nil
	sess.Choice = nil

	var text strings.Builder
	text.WriteString(fmt.Sprintf("🗣 *%s*\n\n", lesson.Title))
	text.WriteString(fmt.Sprintf("«%s»\n\n", lesson.Text))
	text.WriteString("Record a voice message saying the phrase to get a pronunciation score.\n")

	record, ok := b.progress.Load().Records[lesson.ID]
	if ok {
		text.WriteString("\n")
		if record.LastScore != nil {
			text.WriteString(fmt.Sprintf("Last score: %d/100\n", *record.LastScore))
		}
		if record.PracticedAt != nil {
			text.WriteString(fmt.Sprintf("Last practiced: %s\n", record.PracticedAt.Format("02.01.2006 15:04")))
		}
		if record.Notes != nil && *record.Notes != "" {
			text.WriteString(fmt.Sprintf("Notes: %s\n", *record.Notes))
		}
	}

	msg := tgbotapi.NewMessage(chatID, text.String())
	msg.ParseMode = "Markdown"
	msg.ReplyMarkup = createKeyboard([][]MenuButton{
		{
			{Text: "🔊 Listen", CallbackData: "listen"},
			{Text: "📝 Notes", CallbackData: "notes"},
		},
		{
			{Text: "🧩 Match Pairs", CallbackData: "game_match"},
			{Text: "🔤 Word Quiz", CallbackData: "game_choice"},
		},
		{{Text: "« Back to Level", CallbackData: "level_" + level.ID}},
	})
	return b.sendMessage(msg)
}

// ---- lesson actions ----

func (b *Bot) callbackListen(callback *tgbotapi.CallbackQuery, _ string) error {
	chatID := callback.Message.Chat.ID
	sess := b.session(chatID)

	lesson := b.currentLesson(sess)
	if lesson == nil {
		return b.sendMessage(tgbotapi.NewMessage(chatID, "Open a lesson first."))
	}
	if b.tts == nil {
		return b.sendMessage(tgbotapi.NewMessage(chatID, "🔇 Audio playback is not configured on this server."))
	}

	audio, err := b.tts.Synthesize(lesson.Text)
	if err != nil {
		log.Printf("Error synthesizing lesson %s: %v", lesson.ID, err)
		return b.sendMessage(tgbotapi.NewMessage(chatID, "❌ Could not fetch the audio. Please try again later."))
	}

	doc := tgbotapi.NewAudio(chatID, tgbotapi.FileBytes{Name: lesson.ID + ".mp3", Bytes: audio})
	doc.Title = lesson.Title
	return b.sendMessage(doc)
}

func (b *Bot) callbackNotes(callback *tgbotapi.CallbackQuery, _ string) error {
	chatID := callback.Message.Chat.ID
	sess := b.session(chatID)

	if b.currentLesson(sess) == nil {
		return b.sendMessage(tgbotapi.NewMessage(chatID, "Open a lesson first."))
	}
	if sess.User == nil {
		return b.sendMessage(tgbotapi.NewMessage(chatID, "🔑 Sign in with /login to save notes."))
	}

	sess.Pending = pendingNotes
	return b.sendMessage(tgbotapi.NewMessage(chatID, "📝 Send your notes for this lesson:"))
}

func (b *Bot) pendingNotesText(sess *Session, message *tgbotapi.Message) error {
	sess.Pending = ""

	lesson := b.currentLesson(sess)
	if lesson == nil || sess.User == nil {
		return b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "❌ The lesson is no longer open."))
	}

	notes := strings.TrimSpace(message.Text)
	record := models.ProgressRecord{Notes: &notes}
	if err := b.progress.UpsertLessonRecord(lesson.ID, record, sess.User.ID); err != nil {
		log.Printf("Error saving notes for lesson %s: %v", lesson.ID, err)
		return b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "❌ Could not save your notes. Please try again."))
	}

	return b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "✅ Notes saved."))
}

// handleVoiceMessage downloads a voice recording, transcribes it and scores
// it against the open lesson
func (b *Bot) handleVoiceMessage(sess *Session, message *tgbotapi.Message) error {
	chatID := message.Chat.ID

	if b.currentLesson(sess) == nil {
		return b.sendMessage(tgbotapi.NewMessage(chatID, "Open a lesson first, then record yourself saying its phrase."))
	}
	if sess.User == nil {
		return b.sendMessage(tgbotapi.NewMessage(chatID, "🔑 Sign in with /login so your score can be recorded."))
	}
	if b.transcriber == nil {
		return b.sendMessage(tgbotapi.NewMessage(chatID, "🎙 Voice scoring is not configured on this server."))
	}

	fileID := ""
	if message.Voice != nil {
		fileID = message.Voice.FileID
	} else if message.Audio != nil {
		fileID = message.Audio.FileID
	}

	audio, err := b.downloadFile(fileID)
	if err != nil {
		log.Printf("Error downloading voice file: %v", err)
		return b.sendMessage(tgbotapi.NewMessage(chatID, "❌ Could not download your recording. Please try again."))
	}

	transcript, err := b.transcriber.Transcribe(audio, "voice.ogg")
	if err != nil {
		log.Printf("Error transcribing voice message: %v", err)
		return b.sendMessage(tgbotapi.NewMessage(chatID, "❌ Could not transcribe your recording. Please try again."))
	}

	result, err := b.SubmitTranscript(chatID, transcript)
	if err != nil {
		log.Printf("Error scoring transcript: %v", err)
		return b.sendMessage(tgbotapi.NewMessage(chatID, "❌ Something went wrong while scoring. Please try again."))
	}

	verdict := "Keep practicing! 💪"
	if result.Score >= b.config.GreatScoreThreshold {
		verdict = "Fantastic pronunciation! 🌟"
	}

	text := fmt.Sprintf("🎙 I heard: «%s»\n\n"+
		"Score: *%d/100*\n"+
		"XP earned: +%d (total %d)\n\n%s",
		transcript, result.Score, result.XP, result.Metrics.XP, verdict)

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	return b.sendMessage(msg)
}

// downloadFile fetches the content of a Telegram file
func (b *Bot) downloadFile(fileID string) ([]byte, error) {
	if fileID == "" {
		return nil, fmt.Errorf("empty file id")
	}
	url, err := b.files.GetFileDirectURL(fileID)
	if err != nil {
		return nil, err
	}
	resp, err := http.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// ---- match game ----

func (b *Bot) callbackGameMatch(callback *tgbotapi.CallbackQuery, _ string) error {
	chatID := callback.Message.Chat.ID
	sess := b.session(chatID)

	lesson := b.currentLesson(sess)
	if lesson == nil {
		return b.sendMessage(tgbotapi.NewMessage(chatID, "Open a lesson first."))
	}

	b.rndMu.Lock()
	game, err := games.NewMatchGame(lesson.Text, b.rnd)
	b.rndMu.Unlock()
	if err != nil {
		return b.sendMessage(tgbotapi.NewMessage(chatID, "This phrase is too short for Match Pairs. Try the Word Quiz instead."))
	}

	sess.View = ViewGame
	sess.Match = game
	sess.Choice = nil

	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf(
		"🧩 Match Pairs\n\nFind each word and its mirrored twin. %d pairs on the board, +%d XP per match.",
		game.Pairs(), games.MatchBonus))
	msg.ReplyMarkup = b.matchKeyboard(game)
	return b.sendMessage(msg)
}

func (b *Bot) callbackTile(callback *tgbotapi.CallbackQuery, arg string) error {
	chatID := callback.Message.Chat.ID
	sess := b.session(chatID)

	if sess.Match == nil {
		return b.sendMessage(tgbotapi.NewMessage(chatID, "No game in progress. Open a lesson and start one."))
	}

	index, err := strconv.Atoi(arg)
	if err != nil {
		return fmt.Errorf("invalid tile index in callback data: %w", err)
	}

	outcome := sess.Match.Reveal(index)

	switch {
	case outcome.Matched:
		if outcome.Bonus > 0 && sess.User != nil {
			if _, err := b.AwardGameBonus(chatID, outcome.Bonus); err != nil {
				log.Printf("Error awarding match bonus: %v", err)
			}
		}
		if outcome.Finished {
			game := sess.Match
			sess.Match = nil
			sess.View = ViewLesson
			total := game.Pairs() * games.MatchBonus
			text := fmt.Sprintf("🎉 You matched all %d pairs and earned %d XP!", game.Pairs(), total)
			if sess.User == nil {
				text = fmt.Sprintf("🎉 You matched all %d pairs! Sign in with /login to collect XP next time.", game.Pairs())
			}
			return b.editText(callback, text, createKeyboard([][]MenuButton{
				{{Text: "« Back to Lesson", CallbackData: "lesson_" + sess.LessonID}},
			}))
		}
		return b.editKeyboard(callback, b.matchKeyboard(sess.Match))

	case outcome.Hidden:
		// Show the failed pair briefly before flipping it back
		if err := b.editKeyboard(callback, b.matchKeyboard(sess.Match, outcome.Partner, index)); err != nil {
			return err
		}
		game := sess.Match
		time.AfterFunc(b.config.MismatchDelay, func() {
			sess.mu.Lock()
			defer sess.mu.Unlock()
			if sess.Match != game {
				return
			}
			if err := b.editKeyboard(callback, b.matchKeyboard(game)); err != nil {
				log.Printf("Error hiding mismatched tiles: %v", err)
			}
		})
		return nil

	default:
		return b.editKeyboard(callback, b.matchKeyboard(sess.Match))
	}
}

// matchKeyboard renders the board, two tiles per row. Indices listed in
// force are drawn face up regardless of state.
func (b *Bot) matchKeyboard(game *games.MatchGame, force ...int) tgbotapi.InlineKeyboardMarkup {
	forced := make(map[int]bool, len(force))
	for _, i := range force {
		forced[i] = true
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for i, tile := range game.Tiles {
		label := "❓"
		switch {
		case tile.Matched:
			label = "✅ " + tile.Text
		case tile.Revealed || forced[i]:
			label = tile.Text
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, "tile_"+strconv.Itoa(i)))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// ---- choice game ----

func (b *Bot) callbackGameChoice(callback *tgbotapi.CallbackQuery, _ string) error {
	return b.startChoiceGame(callback.Message.Chat.ID)
}

func (b *Bot) startChoiceGame(chatID int64) error {
	sess := b.session(chatID)

	lesson := b.currentLesson(sess)
	if lesson == nil {
		return b.sendMessage(tgbotapi.NewMessage(chatID, "Open a lesson first."))
	}

	b.rndMu.Lock()
	game, err := games.NewChoiceGame(lesson.Text, b.rnd)
	b.rndMu.Unlock()
	if err != nil {
		return b.sendMessage(tgbotapi.NewMessage(chatID, "This phrase has no word long enough for a quiz. Try Match Pairs instead."))
	}

	sess.View = ViewGame
	sess.Choice = game
	sess.Match = nil

	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf(
		"🔤 Word Quiz\n\nWhich of these words appears in the phrase «%s»?", lesson.Title))
	msg.ReplyMarkup = b.choiceKeyboard(game)
	return b.sendMessage(msg)
}

func (b *Bot) callbackPick(callback *tgbotapi.CallbackQuery, arg string) error {
	chatID := callback.Message.Chat.ID
	sess := b.session(chatID)

	if sess.Choice == nil {
		return b.sendMessage(tgbotapi.NewMessage(chatID, "No quiz in progress. Open a lesson and start one."))
	}

	index, err := strconv.Atoi(arg)
	if err != nil {
		return fmt.Errorf("invalid choice index in callback data: %w", err)
	}

	outcome := sess.Choice.Guess(index)
	if !outcome.Correct {
		picked := ""
		if index >= 0 && index < len(sess.Choice.Choices) {
			picked = sess.Choice.Choices[index]
		}
		return b.editText(callback,
			fmt.Sprintf("❌ «%s» is not in the phrase. Try again:", picked),
			b.choiceKeyboard(sess.Choice))
	}

	answer := sess.Choice.Answer()
	sess.Choice = nil
	sess.View = ViewLesson

	text := fmt.Sprintf("✅ Correct, «%s» is in the phrase!", answer)
	if outcome.Bonus > 0 && sess.User != nil {
		if _, err := b.AwardGameBonus(chatID, outcome.Bonus); err != nil {
			log.Printf("Error awarding quiz bonus: %v", err)
		} else {
			text += fmt.Sprintf(" +%d XP", outcome.Bonus)
		}
	}

	return b.editText(callback, text, createKeyboard([][]MenuButton{
		{{Text: "🔁 Another Question", CallbackData: "game_choice"}},
		{{Text: "« Back to Lesson", CallbackData: "lesson_" + sess.LessonID}},
	}))
}

func (b *Bot) choiceKeyboard(game *games.ChoiceGame) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, choice := range game.Choices {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(choice, "pick_"+strconv.Itoa(i)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// ---- random practice ----

func (b *Bot) callbackPlayRandom(callback *tgbotapi.CallbackQuery, _ string) error {
	return b.startRandomPractice(callback.Message.Chat.ID)
}

// startRandomPractice opens a random lesson and starts a quiz on it
func (b *Bot) startRandomPractice(chatID int64) error {
	sess := b.session(chatID)

	var candidates []struct {
		levelID string
		lesson  models.LessonPhrase
	}
	for _, level := range b.levels {
		for _, lesson := range level.Lessons {
			candidates = append(candidates, struct {
				levelID string
				lesson  models.LessonPhrase
			}{level.ID, lesson})
		}
	}
	if len(candidates) == 0 {
		return b.sendMessage(tgbotapi.NewMessage(chatID, "The lesson catalog is empty, nothing to practice yet."))
	}

	b.rndMu.Lock()
	pick := candidates[b.rnd.Intn(len(candidates))]
	b.rndMu.Unlock()
	sess.LevelID = pick.levelID
	sess.LessonID = pick.lesson.ID

	return b.startChoiceGame(chatID)
}

// ---- stats and export ----

func (b *Bot) callbackStats(callback *tgbotapi.CallbackQuery, _ string) error {
	return b.showStats(callback.Message.Chat.ID)
}

func (b *Bot) showStats(chatID int64) error {
	sess := b.session(chatID)

	var text string
	if sess.User == nil {
		// Before anyone signs in, the only honest number is the device total
		total := b.progress.AggregateStartupXP()
		text = fmt.Sprintf("📊 *Progress*\n\nTotal XP earned on this device: %d\n\nSign in with /login to see your personal stats.", total)
	} else {
		metrics := b.progress.Metrics(sess.User.ID)
		text = fmt.Sprintf("📊 *Your statistics*\n\n"+
			"XP: %d\n"+
			"Streak: %d scoring events\n", metrics.XP, metrics.Streak)
		if !metrics.UpdatedAt.IsZero() {
			text += fmt.Sprintf("Last activity: %s\n", metrics.UpdatedAt.Format("02.01.2006 15:04"))
		}
		text += "\nPracticed lessons:\n"
		text += b.practicedLessonsSummary()
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	msg.ReplyMarkup = createKeyboard([][]MenuButton{
		{{Text: "🎲 Random Practice", CallbackData: "play_random"}},
		{{Text: "« Back to Menu", CallbackData: "main_menu"}},
	})
	return b.sendMessage(msg)
}

// practicedLessonsSummary lists the stored lesson records, best first
func (b *Bot) practicedLessonsSummary() string {
	records := b.progress.Load().Records
	if len(records) == 0 {
		return "none yet"
	}

	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var sb strings.Builder
	for _, id := range ids {
		record := records[id]
		title := id
		for _, level := range b.levels {
			if lesson := level.FindLesson(id); lesson != nil {
				title = lesson.Title
				break
			}
		}
		if record.LastScore != nil {
			sb.WriteString(fmt.Sprintf("• %s — %d/100\n", title, *record.LastScore))
		} else {
			sb.WriteString(fmt.Sprintf("• %s\n", title))
		}
	}
	return sb.String()
}

func (b *Bot) callbackExportJSON(callback *tgbotapi.CallbackQuery, _ string) error {
	chatID := callback.Message.Chat.ID

	raw, err := b.progress.Export()
	if err != nil {
		log.Printf("Error exporting progress: %v", err)
		return b.sendMessage(tgbotapi.NewMessage(chatID, "❌ Export failed. Please try again."))
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: "progress.json", Bytes: []byte(raw)})
	doc.Caption = "📄 Your progress snapshot"
	return b.sendMessage(doc)
}

func (b *Bot) callbackExportExcel(callback *tgbotapi.CallbackQuery, _ string) error {
	chatID := callback.Message.Chat.ID

	data, err := export.Excel(b.progress.Load())
	if err != nil {
		log.Printf("Error building Excel export: %v", err)
		return b.sendMessage(tgbotapi.NewMessage(chatID, "❌ Export failed. Please try again."))
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: "progress.xlsx", Bytes: data})
	doc.Caption = "📊 Your progress workbook"
	return b.sendMessage(doc)
}

// ---- identity ----

func (b *Bot) callbackRegister(callback *tgbotapi.CallbackQuery, _ string) error {
	return b.startAuthFlow(callback.Message.Chat.ID, pendingRegisterEmail)
}

func (b *Bot) callbackLogin(callback *tgbotapi.CallbackQuery, _ string) error {
	return b.startAuthFlow(callback.Message.Chat.ID, pendingLoginEmail)
}

func (b *Bot) callbackLogout(callback *tgbotapi.CallbackQuery, _ string) error {
	return b.signOut(callback.Message.Chat.ID)
}

func (b *Bot) startAuthFlow(chatID int64, state string) error {
	sess := b.session(chatID)
	if sess.User != nil {
		return b.sendMessage(tgbotapi.NewMessage(chatID,
			fmt.Sprintf("You are already signed in as %s. Use /logout first.", sess.User.Name)))
	}

	sess.Pending = state
	sess.PendingEmail = ""

	prompt := "🔑 Sign in\n\nSend your email address:"
	if state == pendingRegisterEmail {
		prompt = "✍️ Create an account\n\nSend your email address:"
	}
	return b.sendMessage(tgbotapi.NewMessage(chatID, prompt))
}

func (b *Bot) pendingEmail(sess *Session, message *tgbotapi.Message) error {
	sess.PendingEmail = strings.TrimSpace(message.Text)

	switch sess.Pending {
	case pendingRegisterEmail:
		sess.Pending = pendingRegisterPassword
	case pendingLoginEmail:
		sess.Pending = pendingLoginPassword
	}
	return b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "🔒 Now send your password:"))
}

func (b *Bot) pendingPassword(sess *Session, message *tgbotapi.Message) error {
	registering := sess.Pending == pendingRegisterPassword
	email := sess.PendingEmail
	password := message.Text
	sess.Pending = ""
	sess.PendingEmail = ""

	var user *models.User
	var err error
	if registering {
		user, err = b.auth.Register(email, password)
	} else {
		user, err = b.auth.Login(email, password)
	}
	if err != nil {
		return b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, authErrorText(err)))
	}

	sess.User = user

	// A remote account may have metrics from another device; adopt them
	if !registering && b.remote != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if metrics, ok, err := b.remote.LoadMetrics(ctx, user.ID); err != nil {
			log.Printf("Error loading mirrored metrics for user %s: %v", user.ID, err)
		} else if ok {
			if err := b.progress.SetMetrics(user.ID, metrics); err != nil {
				log.Printf("Error adopting mirrored metrics for user %s: %v", user.ID, err)
			}
		}
	}

	greeting := fmt.Sprintf("✅ Welcome back, %s!", user.Name)
	if registering {
		greeting = fmt.Sprintf("🎉 Account created. Welcome, %s!", user.Name)
	}
	msg := tgbotapi.NewMessage(message.Chat.ID, greeting)
	msg.ReplyMarkup = createKeyboard(b.MainMenuButtons(sess))
	return b.sendMessage(msg)
}

// authErrorText maps provider errors to user-facing replies
func authErrorText(err error) string {
	switch {
	case errors.Is(err, auth.ErrEmptyCredentials):
		return "❌ Email and password must not be empty. Start over with /login or /register."
	case errors.Is(err, auth.ErrUserNotFound):
		return "❌ No account with that email. Create one with /register."
	case errors.Is(err, auth.ErrEmailTaken):
		return "❌ An account with that email already exists. Sign in with /login."
	case errors.Is(err, auth.ErrInvalidPassword):
		return "❌ Invalid email or password. Try /login again."
	default:
		return "❌ Something went wrong. Please try again later."
	}
}

func (b *Bot) signOut(chatID int64) error {
	sess := b.session(chatID)
	if sess.User == nil {
		return b.sendMessage(tgbotapi.NewMessage(chatID, "You are not signed in."))
	}

	name := sess.User.Name
	sess.User = nil
	sess.Pending = ""
	sess.PendingEmail = ""

	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("👋 Signed out %s. Your progress stays on this device.", name))
	msg.ReplyMarkup = createKeyboard(b.MainMenuButtons(sess))
	return b.sendMessage(msg)
}

// ---- catalog import ----

// handleImportDocument ingests an uploaded spreadsheet into the catalog
func (b *Bot) handleImportDocument(sess *Session, message *tgbotapi.Message) error {
	sess.AwaitingImport = false
	chatID := message.Chat.ID

	data, err := b.downloadFile(message.Document.FileID)
	if err != nil {
		log.Printf("Error downloading import file: %v", err)
		return b.sendMessage(tgbotapi.NewMessage(chatID, "❌ Could not download the file. Please try again."))
	}

	tmp, err := os.CreateTemp("", "catalog-*"+filepath.Ext(message.Document.FileName))
	if err != nil {
		return fmt.Errorf("failed to create temp file: %v", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %v", err)
	}
	tmp.Close()

	imported, result, err := content.ImportLevels(content.DefaultImportConfig(tmp.Name()))
	if err != nil {
		log.Printf("Error importing catalog: %v", err)
		return b.sendMessage(tgbotapi.NewMessage(chatID, fmt.Sprintf("❌ Import failed: %v", err)))
	}

	b.levels = mergeLevels(b.levels, imported)

	if b.contentPath != "" {
		if err := content.WriteLevels(b.contentPath, b.levels); err != nil {
			log.Printf("Error persisting imported catalog: %v", err)
		}
	}

	var text strings.Builder
	text.WriteString(fmt.Sprintf("✅ Catalog imported:\n"+
		"- Rows processed: %d\n"+
		"- Levels created: %d\n"+
		"- Lessons created: %d\n"+
		"- Skipped: %d\n", result.TotalProcessed, result.LevelsCreated, result.LessonsCreated, result.Skipped))

	if len(result.Errors) > 0 {
		text.WriteString(fmt.Sprintf("\n❌ Errors (%d):\n", len(result.Errors)))
		for _, e := range result.Errors {
			text.WriteString("- " + e + "\n")
		}
	}

	msg := tgbotapi.NewMessage(chatID, text.String())
	msg.ReplyMarkup = createKeyboard(b.MainMenuButtons(sess))
	return b.sendMessage(msg)
}

// mergeLevels overlays imported levels onto the existing catalog, replacing
// levels that share an id
func mergeLevels(existing, imported []models.Level) []models.Level {
	byID := make(map[string]int, len(existing))
	merged := make([]models.Level, len(existing))
	copy(merged, existing)
	for i, level := range merged {
		byID[level.ID] = i
	}

	for _, level := range imported {
		if i, ok := byID[level.ID]; ok {
			merged[i] = level
		} else {
			byID[level.ID] = len(merged)
			merged = append(merged, level)
		}
	}
	return merged
}

// ---- edit helpers ----

func (b *Bot) editText(callback *tgbotapi.CallbackQuery, text string, keyboard tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewEditMessageTextAndMarkup(
		callback.Message.Chat.ID,
		callback.Message.MessageID,
		text,
		keyboard,
	)
	return b.sendMessage(msg)
}

func (b *Bot) editKeyboard(callback *tgbotapi.CallbackQuery, keyboard tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewEditMessageReplyMarkup(
		callback.Message.Chat.ID,
		callback.Message.MessageID,
		keyboard,
	)
	return b.sendMessage(msg)
}
