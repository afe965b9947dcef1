package bot

import (
	"math/rand"
	"strconv"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/linguaquest/internal/auth"
	"github.com/example/linguaquest/internal/progress"
	"github.com/example/linguaquest/internal/storage"
	"github.com/example/linguaquest/pkg/models"
)

// fakeMessenger records everything the bot tries to send
type fakeMessenger struct {
	mu   sync.Mutex
	sent []tgbotapi.Chattable
}

func (f *fakeMessenger) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeMessenger) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func testLevels() []models.Level {
	return []models.Level{
		{
			ID:          "basics",
			Title:       "Basics",
			Description: "Short everyday phrases",
			Lessons: []models.LessonPhrase{
				{ID: "cat-mat", Title: "The cat", Text: "The cat sat on the mat"},
				{ID: "greeting", Title: "Greeting", Text: "Good morning everyone"},
			},
		},
	}
}

func newTestBot(t *testing.T) (*Bot, *fakeMessenger) {
	t.Helper()

	store := storage.NewMemoryStore()
	api := &fakeMessenger{}
	b := &Bot{
		api:          api,
		levels:       testLevels(),
		progress:     progress.New(store, nil, nil),
		auth:         auth.NewLocalProvider(store),
		config:       DefaultConfig(),
		adminUserIDs: make(map[int64]bool),
		rnd:          rand.New(rand.NewSource(42)),
		sessions:     make(map[int64]*Session),
	}
	b.registerHandlers()
	return b, api
}

// signIn registers an account and attaches it to the chat session
func signIn(t *testing.T, b *Bot, chatID int64, email string) *models.User {
	t.Helper()
	user, err := b.auth.Register(email, "secret")
	require.NoError(t, err)
	b.session(chatID).User = user
	return user
}

func callback(chatID int64, data string) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:      "cb",
		Data:    data,
		From:    &tgbotapi.User{ID: 7},
		Message: &tgbotapi.Message{MessageID: 1, Chat: &tgbotapi.Chat{ID: chatID}},
	}
}

func textMessage(chatID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		Text: text,
		From: &tgbotapi.User{ID: 7},
		Chat: &tgbotapi.Chat{ID: chatID},
	}
}

func TestSubmitTranscriptPerfectAttempt(t *testing.T) {
	b, _ := newTestBot(t)
	const chatID = int64(100)

	user := signIn(t, b, chatID, "learner@example.com")
	sess := b.session(chatID)
	sess.LevelID = "basics"
	sess.LessonID = "cat-mat"

	result, err := b.SubmitTranscript(chatID, "the cat sat on the mat")
	require.NoError(t, err)

	assert.Equal(t, 100, result.Score)
	assert.Equal(t, 10, result.XP)
	assert.Equal(t, 10, result.Metrics.XP)
	assert.Equal(t, 1, result.Metrics.Streak)

	snapshot := b.progress.Load()
	record, ok := snapshot.Records["cat-mat"]
	require.True(t, ok)
	require.NotNil(t, record.LastScore)
	assert.Equal(t, 100, *record.LastScore)
	assert.NotNil(t, record.PracticedAt)
	assert.Equal(t, user.ID, snapshot.Owner)
}

func TestSubmitTranscriptImperfectAttempt(t *testing.T) {
	b, _ := newTestBot(t)
	const chatID = int64(101)

	signIn(t, b, chatID, "learner@example.com")
	sess := b.session(chatID)
	sess.LevelID = "basics"
	sess.LessonID = "cat-mat"

	result, err := b.SubmitTranscript(chatID, "the cat sat on a mat")
	require.NoError(t, err)

	assert.Less(t, result.Score, 100)
	assert.Greater(t, result.Score, 0)
	assert.Equal(t, (result.Score+5)/10, result.XP)
}

func TestSubmitTranscriptRequiresSignIn(t *testing.T) {
	b, _ := newTestBot(t)
	const chatID = int64(102)

	sess := b.session(chatID)
	sess.LevelID = "basics"
	sess.LessonID = "cat-mat"

	_, err := b.SubmitTranscript(chatID, "anything")
	assert.ErrorIs(t, err, ErrNotSignedIn)
}

func TestSubmitTranscriptRequiresOpenLesson(t *testing.T) {
	b, _ := newTestBot(t)
	const chatID = int64(103)

	signIn(t, b, chatID, "learner@example.com")

	_, err := b.SubmitTranscript(chatID, "anything")
	assert.ErrorIs(t, err, ErrNoLessonOpen)
}

func TestNavigationCallbacks(t *testing.T) {
	b, _ := newTestBot(t)
	const chatID = int64(104)

	require.NoError(t, b.handleCallbackQuery(callback(chatID, "level_basics")))
	sess := b.session(chatID)
	assert.Equal(t, ViewLevel, sess.View)
	assert.Equal(t, "basics", sess.LevelID)

	require.NoError(t, b.handleCallbackQuery(callback(chatID, "lesson_cat-mat")))
	assert.Equal(t, ViewLesson, sess.View)
	assert.Equal(t, "cat-mat", sess.LessonID)

	require.NoError(t, b.handleCallbackQuery(callback(chatID, "main_menu")))
	assert.Equal(t, ViewHome, sess.View)
}

func TestMatchGameFlow(t *testing.T) {
	b, _ := newTestBot(t)
	const chatID = int64(105)

	signIn(t, b, chatID, "learner@example.com")
	sess := b.session(chatID)
	sess.LevelID = "basics"
	sess.LessonID = "cat-mat"

	require.NoError(t, b.handleCallbackQuery(callback(chatID, "game_match")))
	require.NotNil(t, sess.Match)
	assert.Equal(t, ViewGame, sess.View)

	// Complete the board by revealing each pair in tile order
	game := sess.Match
	for pair := 0; pair < game.Pairs(); pair++ {
		var indices []int
		for i, tile := range game.Tiles {
			if tile.PairID == pair {
				indices = append(indices, i)
			}
		}
		require.Len(t, indices, 2)
		for _, i := range indices {
			require.NoError(t, b.handleCallbackQuery(callback(chatID, "tile_"+strconv.Itoa(i))))
		}
	}

	// Board completed: game cleared, every pair paid its bonus
	assert.Nil(t, sess.Match)
	metrics := b.progress.Metrics(sess.User.ID)
	assert.Equal(t, game.Pairs()*5, metrics.XP)
}

func TestChoiceGameAwardsBonusOnce(t *testing.T) {
	b, _ := newTestBot(t)
	const chatID = int64(106)

	signIn(t, b, chatID, "learner@example.com")
	sess := b.session(chatID)
	sess.LevelID = "basics"
	sess.LessonID = "greeting"

	require.NoError(t, b.startChoiceGame(chatID))
	require.NotNil(t, sess.Choice)

	answer := sess.Choice.Answer()
	answerIdx := -1
	for i, c := range sess.Choice.Choices {
		if c == answer {
			answerIdx = i
		}
	}
	require.GreaterOrEqual(t, answerIdx, 0)

	require.NoError(t, b.handleCallbackQuery(callback(chatID, "pick_"+strconv.Itoa(answerIdx))))

	assert.Nil(t, sess.Choice)
	assert.Equal(t, ViewLesson, sess.View)
	assert.Equal(t, 10, b.progress.Metrics(sess.User.ID).XP)
}

func TestConcurrentCallbacksAwardBonusOnce(t *testing.T) {
	b, _ := newTestBot(t)
	const chatID = int64(110)

	signIn(t, b, chatID, "learner@example.com")
	sess := b.session(chatID)
	sess.LevelID = "basics"
	sess.LessonID = "greeting"

	require.NoError(t, b.startChoiceGame(chatID))
	require.NotNil(t, sess.Choice)

	answerIdx := -1
	for i, c := range sess.Choice.Choices {
		if c == sess.Choice.Answer() {
			answerIdx = i
		}
	}
	require.GreaterOrEqual(t, answerIdx, 0)

	// The same button press delivered many times at once, each on its own
	// goroutine like in Start. Only one may pay the quiz bonus.
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.handleUpdate(tgbotapi.Update{
				CallbackQuery: callback(chatID, "pick_"+strconv.Itoa(answerIdx)),
			})
		}()
	}
	wg.Wait()

	assert.Nil(t, sess.Choice)
	assert.Equal(t, 10, b.progress.Metrics(sess.User.ID).XP)
}

func TestAuthFlowThroughPendingStates(t *testing.T) {
	b, _ := newTestBot(t)
	const chatID = int64(107)

	require.NoError(t, b.startAuthFlow(chatID, pendingRegisterEmail))
	sess := b.session(chatID)
	assert.Equal(t, pendingRegisterEmail, sess.Pending)

	require.NoError(t, b.handleMessage(sess, textMessage(chatID, "new@example.com")))
	assert.Equal(t, pendingRegisterPassword, sess.Pending)

	require.NoError(t, b.handleMessage(sess, textMessage(chatID, "hunter2")))
	require.NotNil(t, sess.User)
	assert.Equal(t, "new@example.com", sess.User.Name)
	assert.Empty(t, sess.Pending)

	// Signing out clears the identity but keeps the chat session
	require.NoError(t, b.signOut(chatID))
	assert.Nil(t, sess.User)
}

func TestSaveNotesFlow(t *testing.T) {
	b, _ := newTestBot(t)
	const chatID = int64(108)

	signIn(t, b, chatID, "learner@example.com")
	sess := b.session(chatID)
	sess.LevelID = "basics"
	sess.LessonID = "cat-mat"

	require.NoError(t, b.handleCallbackQuery(callback(chatID, "notes")))
	assert.Equal(t, pendingNotes, sess.Pending)

	require.NoError(t, b.handleMessage(sess, textMessage(chatID, "tricky vowels")))
	assert.Empty(t, sess.Pending)

	record, ok := b.progress.Load().Records["cat-mat"]
	require.True(t, ok)
	require.NotNil(t, record.Notes)
	assert.Equal(t, "tricky vowels", *record.Notes)
}

func TestReminderTargetsOnlySignedIn(t *testing.T) {
	b, _ := newTestBot(t)

	signIn(t, b, 200, "one@example.com")
	b.session(201) // anonymous chat

	targets := b.ReminderTargets()
	require.Len(t, targets, 1)
	assert.Equal(t, int64(200), targets[0].ChatID)
}

func TestMergeLevels(t *testing.T) {
	existing := []models.Level{
		{ID: "a", Title: "Old A"},
		{ID: "b", Title: "B"},
	}
	imported := []models.Level{
		{ID: "a", Title: "New A"},
		{ID: "c", Title: "C"},
	}

	merged := mergeLevels(existing, imported)
	require.Len(t, merged, 3)
	assert.Equal(t, "New A", merged[0].Title)
	assert.Equal(t, "B", merged[1].Title)
	assert.Equal(t, "C", merged[2].Title)
}
