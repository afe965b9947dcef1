package scheduler

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/example/linguaquest/internal/progress"
)

// Константы для настроек напоминаний по умолчанию
const (
	DefaultReminderStartHour = 9
	DefaultReminderEndHour   = 21
)

// Target is a chat eligible for a reminder together with its signed-in user
type Target struct {
	ChatID int64
	UserID string
}

// Sessions exposes the currently signed-in chats
type Sessions interface {
	ReminderTargets() []Target
}

// Notifier interface for sending reminders
type Notifier interface {
	SendPracticeReminder(chatID int64, streak int) error
}

// Scheduler manages scheduled tasks for the application
type Scheduler struct {
	scheduler *gocron.Scheduler
	sessions  Sessions
	progress  *progress.Store
	notifier  Notifier
}

// New creates a new scheduler instance
func New(sessions Sessions, store *progress.Store, notifier Notifier) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		sessions:  sessions,
		progress:  store,
		notifier:  notifier,
	}
}

// Start begins running all scheduled tasks
func (s *Scheduler) Start() {
	// Schedule hourly check for chats that need a nudge
	s.scheduler.Every(1).Hour().Do(s.checkAndSendReminders)

	// Start the scheduler in a non-blocking manner
	s.scheduler.StartAsync()
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// checkAndSendReminders finds signed-in users who have a streak going but
// have not practiced today and sends them a reminder
func (s *Scheduler) checkAndSendReminders() {
	currentHour := time.Now().Hour()

	// Используем значения по умолчанию
	startHour := DefaultReminderStartHour
	endHour := DefaultReminderEndHour

	// Проверяем, задано ли время в переменных окружения
	if startHourStr := os.Getenv("REMINDER_START_HOUR"); startHourStr != "" {
		if h, err := strconv.Atoi(startHourStr); err == nil && h >= 0 && h <= 23 {
			startHour = h
		}
	}

	if endHourStr := os.Getenv("REMINDER_END_HOUR"); endHourStr != "" {
		if h, err := strconv.Atoi(endHourStr); err == nil && h >= 0 && h <= 23 {
			endHour = h
		}
	}

	if currentHour < startHour || currentHour > endHour {
		log.Printf("Current hour %d is outside reminder hours (%d-%d), skipping reminders",
			currentHour, startHour, endHour)
		return
	}

	today := time.Now().Truncate(24 * time.Hour)

	for _, target := range s.sessions.ReminderTargets() {
		metrics := s.progress.Metrics(target.UserID)

		// Users who never scored anything have no streak to keep alive
		if metrics.Streak == 0 {
			continue
		}

		// Already practiced today
		if !metrics.UpdatedAt.Before(today) {
			continue
		}

		if err := s.notifier.SendPracticeReminder(target.ChatID, metrics.Streak); err != nil {
			log.Printf("Error sending reminder to chat %d: %v", target.ChatID, err)
		}
	}
}

// RunManualCheck forces a reminder check for a specific chat
func (s *Scheduler) RunManualCheck(chatID int64, userID string) error {
	metrics := s.progress.Metrics(userID)
	if metrics.Streak == 0 {
		return nil
	}
	return s.notifier.SendPracticeReminder(chatID, metrics.Streak)
}
