//go:generate go run go.uber.org/mock/mockgen -source=notifier.go -destination=../mocks/mock_notifier.go -package=mocks
package service

// Notifier pushes realtime events to users' live connections.
type Notifier interface {
	Notify(event string, targets []string, payload interface{}) int
}
