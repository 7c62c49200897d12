package testutil

import (
	"testing"

	"git.skobk.in/skobkin/telegram-group-keeper-bot/storage"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/storage/storagetest"
)

func TestMemoryStoreContract(t *testing.T) {
	storagetest.RunContract(t, func(t *testing.T) storage.Store {
		return NewMemoryStore()
	})
}
