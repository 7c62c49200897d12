package dispatch

import "sync"

// ChatLocks serializes work per chat. Everything that reads and then writes
// per-chat state (message handling, the round timer) holds the chat's lock.
type ChatLocks struct {
	mu    sync.Mutex
	locks map[int64]*chatLock
}

type chatLock struct {
	mu   sync.Mutex
	refs int
}

func NewChatLocks() *ChatLocks {
	return &ChatLocks{locks: make(map[int64]*chatLock)}
}

// Lock blocks until the chat is free and returns the matching unlock function.
func (l *ChatLocks) Lock(chatID int64) (unlock func()) {
	l.mu.Lock()
	lock, ok := l.locks[chatID]
	if !ok {
		lock = &chatLock{}
		l.locks[chatID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.mu.Lock()

	return func() {
		lock.mu.Unlock()

		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, chatID)
		}
		l.mu.Unlock()
	}
}

// Len returns the number of chats currently locked or waited on.
func (l *ChatLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
