package service

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/telebot.v3"
)

// maxErrorLen keeps alert messages readable
const maxErrorLen = 200

// Sender delivers a Telegram message. *telebot.Bot satisfies it.
type Sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// NotificationService sends storage alerts to the ledger owner
type NotificationService struct {
	sender  Sender
	mu      sync.Mutex
	ownerID int64
	log     *zap.Logger
}

// NewNotificationService creates a notifier sending to ownerID.
// With ownerID 0 alerts are only logged.
func NewNotificationService(sender Sender, ownerID int64, log *zap.Logger) *NotificationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &NotificationService{sender: sender, ownerID: ownerID, log: log}
}

// PersistFailed tells the owner that changes are kept in memory only
func (s *NotificationService) PersistFailed(err error) {
	s.send("alert_persist_failed", fmt.Sprintf(
		"⚠️ Storage is unavailable. Your bets are kept in memory and will be saved when it is back.\n\n%s",
		truncateString(err.Error(), maxErrorLen)))
}

// PersistRecovered tells the owner that storage caught up
func (s *NotificationService) PersistRecovered() {
	s.send("alert_persist_recovered", "✅ Storage is back. All changes are saved.")
}

func (s *NotificationService) send(action, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ownerID == 0 || s.sender == nil {
		s.log.Debug("notification_skipped", zap.String("action", action), zap.String("reason", "no owner configured"))
		return
	}

	if _, err := s.sender.Send(&telebot.User{ID: s.ownerID}, message); err != nil {
		s.log.Warn("notification_error", zap.String("action", action), zap.Int64("user_id", s.ownerID), zap.Error(err))
		return
	}
	s.log.Debug(action, zap.Int64("user_id", s.ownerID))
}

// truncateString shortens s to maxLen runes, ending with "..."
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
