package db

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	database, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	return database
}

func createTestUser(t *testing.T, repo *UserRepository, username, email string) string {
	t.Helper()

	user, err := repo.Create(context.Background(), CreateUserParams{
		Username:     username,
		Email:        email,
		FullName:     "Test " + username,
		PasswordHash: "hash",
		Avatar:       "https://media.example.com/" + username + ".png",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return user.ID
}

func TestCreateRejectsDuplicateUsernameOrEmail(t *testing.T) {
	repo := openTestDB(t).Users()
	createTestUser(t, repo, "alice", "alice@example.com")

	tests := []struct {
		name     string
		username string
		email    string
	}{
		{name: "same_username", username: "alice", email: "other@example.com"},
		{name: "same_email", username: "other", email: "alice@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.Create(context.Background(), CreateUserParams{
				Username:     tt.username,
				Email:        tt.email,
				FullName:     "Dup",
				PasswordHash: "hash",
				Avatar:       "a",
			})
			if !errors.Is(err, ErrDuplicate) {
				t.Fatalf("Create() error = %v, want ErrDuplicate", err)
			}
		})
	}
}

func TestFindByUsernameOrEmail(t *testing.T) {
	repo := openTestDB(t).Users()
	id := createTestUser(t, repo, "alice", "alice@example.com")
	ctx := context.Background()

	byName, err := repo.FindByUsernameOrEmail(ctx, "alice", "")
	if err != nil {
		t.Fatalf("FindByUsernameOrEmail(username) error = %v", err)
	}
	if byName.ID != id {
		t.Fatalf("FindByUsernameOrEmail(username).ID = %q, want %q", byName.ID, id)
	}

	byEmail, err := repo.FindByUsernameOrEmail(ctx, "", "alice@example.com")
	if err != nil {
		t.Fatalf("FindByUsernameOrEmail(email) error = %v", err)
	}
	if byEmail.ID != id {
		t.Fatalf("FindByUsernameOrEmail(email).ID = %q, want %q", byEmail.ID, id)
	}

	if _, err := repo.FindByUsernameOrEmail(ctx, "", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindByUsernameOrEmail(empty) error = %v, want ErrNotFound", err)
	}
}

func TestSwapRefreshTokenRequiresCurrentValue(t *testing.T) {
	repo := openTestDB(t).Users()
	id := createTestUser(t, repo, "alice", "alice@example.com")
	ctx := context.Background()

	if err := repo.SwapRefreshToken(ctx, id, "first", "second"); !errors.Is(err, ErrTokenMismatch) {
		t.Fatalf("SwapRefreshToken() with no stored token error = %v, want ErrTokenMismatch", err)
	}

	if err := repo.SetRefreshToken(ctx, id, "first"); err != nil {
		t.Fatalf("SetRefreshToken() error = %v", err)
	}
	if err := repo.SwapRefreshToken(ctx, id, "first", "second"); err != nil {
		t.Fatalf("SwapRefreshToken() error = %v", err)
	}
	if err := repo.SwapRefreshToken(ctx, id, "first", "third"); !errors.Is(err, ErrTokenMismatch) {
		t.Fatalf("SwapRefreshToken() replay error = %v, want ErrTokenMismatch", err)
	}

	user, err := repo.FindByID(ctx, id)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if user.RefreshTokenHash == nil || *user.RefreshTokenHash != "second" {
		t.Fatalf("RefreshTokenHash = %v, want %q", user.RefreshTokenHash, "second")
	}
}

func TestSwapRefreshTokenConcurrentSingleWinner(t *testing.T) {
	repo := openTestDB(t).Users()
	id := createTestUser(t, repo, "alice", "alice@example.com")
	ctx := context.Background()

	if err := repo.SetRefreshToken(ctx, id, "shared"); err != nil {
		t.Fatalf("SetRefreshToken() error = %v", err)
	}

	const attempts = 8
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results <- repo.SwapRefreshToken(ctx, id, "shared", "next-"+string(rune('a'+i)))
		}(i)
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrTokenMismatch):
		default:
			t.Fatalf("SwapRefreshToken() unexpected error = %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("successful swaps = %d, want 1", wins)
	}
}

func TestClearRefreshToken(t *testing.T) {
	repo := openTestDB(t).Users()
	id := createTestUser(t, repo, "alice", "alice@example.com")
	ctx := context.Background()

	if err := repo.SetRefreshToken(ctx, id, "token"); err != nil {
		t.Fatalf("SetRefreshToken() error = %v", err)
	}
	if err := repo.ClearRefreshToken(ctx, id); err != nil {
		t.Fatalf("ClearRefreshToken() error = %v", err)
	}

	user, err := repo.FindByID(ctx, id)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if user.HasRefreshToken() {
		t.Fatal("HasRefreshToken() = true after clear")
	}
	if err := repo.ClearRefreshToken(ctx, "usr_missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ClearRefreshToken(missing) error = %v, want ErrNotFound", err)
	}
}

func TestUpdateAccountRejectsTakenEmail(t *testing.T) {
	repo := openTestDB(t).Users()
	aliceID := createTestUser(t, repo, "alice", "alice@example.com")
	createTestUser(t, repo, "bob", "bob@example.com")

	err := repo.UpdateAccount(context.Background(), aliceID, "Alice", "bob@example.com")
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("UpdateAccount() error = %v, want ErrDuplicate", err)
	}
}
