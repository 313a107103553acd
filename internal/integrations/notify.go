package integrations

import "log"

// Notifier receives one human-readable notification per connect, refresh or
// disconnect outcome. It is a fire-and-forget side channel for the UI's
// toast surface; implementations must not block.
type Notifier interface {
	Success(userID, title, message string)
	Failure(userID, title, message string)
}

// LogNotifier writes notifications to the process log. It is the default
// sink when no UI push channel is wired up.
type LogNotifier struct{}

func (LogNotifier) Success(userID, title, message string) {
	log.Printf("✅ [%s] %s: %s", userID, title, message)
}

func (LogNotifier) Failure(userID, title, message string) {
	log.Printf("❌ [%s] %s: %s", userID, title, message)
}
