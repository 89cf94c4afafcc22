package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/V4T54L/log-relay/internal/domain"
	"github.com/V4T54L/log-relay/internal/domain/mocks"
)

func TestSaveScreenshotUseCase_Save(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("Sequence Numbers", func(t *testing.T) {
		store := &mocks.MockScreenshotStore{}
		uc := NewSaveScreenshotUseCase(store, logger, nil)

		for i := 1; i <= 3; i++ {
			saved, err := uc.Save(context.Background(), domain.ScreenshotFrame{CapturedAt: "ts", Payload: []byte("abcd")})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if saved.Sequence != uint64(i) {
				t.Errorf("expected sequence %d, got %d", i, saved.Sequence)
			}
			if saved.Size != 4 || saved.Path != "/mock/ts" {
				t.Errorf("unexpected result: %+v", saved)
			}
		}
	})

	t.Run("Concurrent Saves Get Distinct Numbers", func(t *testing.T) {
		store := &mocks.MockScreenshotStore{}
		uc := NewSaveScreenshotUseCase(store, logger, nil)

		var mu sync.Mutex
		seen := map[uint64]bool{}
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				saved, err := uc.Save(context.Background(), domain.ScreenshotFrame{CapturedAt: "x"})
				if err != nil {
					t.Error(err)
					return
				}
				mu.Lock()
				seen[saved.Sequence] = true
				mu.Unlock()
			}()
		}
		wg.Wait()

		if len(seen) != 50 || uc.Saved() != 50 {
			t.Errorf("expected 50 distinct sequences, got %d (saved=%d)", len(seen), uc.Saved())
		}
	})

	t.Run("Store Error", func(t *testing.T) {
		store := &mocks.MockScreenshotStore{SaveErr: errors.New("read-only file system")}
		uc := NewSaveScreenshotUseCase(store, logger, nil)

		if _, err := uc.Save(context.Background(), domain.ScreenshotFrame{}); err == nil {
			t.Fatal("expected an error, got nil")
		}
		if uc.Saved() != 0 {
			t.Errorf("failed saves must not be counted, got %d", uc.Saved())
		}
	})
}
