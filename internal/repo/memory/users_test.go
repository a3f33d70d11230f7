package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/arseniyrs/userhub/internal/domain/user"
)

func strptr(s string) *string { return &s }

func create(t *testing.T, r *UsersRepo, username, email string) user.User {
	t.Helper()

	u, err := r.Create(context.Background(), user.CreateParams{
		Username:     username,
		Email:        email,
		PasswordHash: "$2a$10$fakehash",
	})

	if err != nil {
		t.Fatalf("Create(%s, %s) returned error: %v", username, email, err)
	}

	return u
}

func TestUsersRepo_CreateAndGet(t *testing.T) {
	r := NewUsersRepo()

	created := create(t, r, "sam", "sam@example.com")

	if created.ID == "" {
		t.Fatalf("created user has empty id")
	}

	if created.Bio != nil || created.Image != nil {
		t.Fatalf("fresh user must have absent bio/image, got %v %v", created.Bio, created.Image)
	}

	byEmail, err := r.GetByEmail(context.Background(), "sam@example.com")

	if err != nil {
		t.Fatalf("GetByEmail returned error: %v", err)
	}

	if byEmail.ID != created.ID {
		t.Fatalf("GetByEmail id = %q, want %q", byEmail.ID, created.ID)
	}

	byID, err := r.GetByID(context.Background(), created.ID)

	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}

	if byID.Username != "sam" {
		t.Fatalf("GetByID username = %q, want sam", byID.Username)
	}
}

func TestUsersRepo_GetMisses(t *testing.T) {
	r := NewUsersRepo()

	_, err := r.GetByEmail(context.Background(), "nobody@example.com")

	if !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("GetByEmail error = %v, want ErrNotFound", err)
	}

	_, err = r.GetByID(context.Background(), "missing-id")

	if !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("GetByID error = %v, want ErrNotFound", err)
	}
}

func TestUsersRepo_UniquenessConflicts(t *testing.T) {
	r := NewUsersRepo()

	create(t, r, "sam", "sam@example.com")

	_, err := r.Create(context.Background(), user.CreateParams{
		Username:     "other",
		Email:        "SAM@example.com",
		PasswordHash: "x",
	})

	if !errors.Is(err, user.ErrEmailTaken) {
		t.Fatalf("duplicate email error = %v, want ErrEmailTaken", err)
	}

	_, err = r.Create(context.Background(), user.CreateParams{
		Username:     "Sam",
		Email:        "other@example.com",
		PasswordHash: "x",
	})

	if !errors.Is(err, user.ErrUsernameTaken) {
		t.Fatalf("duplicate username error = %v, want ErrUsernameTaken", err)
	}
}

func TestUsersRepo_ConcurrentRegistrationsSameEmail(t *testing.T) {
	r := NewUsersRepo()

	const attempts = 32

	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)

		go func(n int) {
			defer wg.Done()

			_, err := r.Create(context.Background(), user.CreateParams{
				Username:     fmt.Sprintf("user%d", n),
				Email:        "race@example.com",
				PasswordHash: "x",
			})

			results <- err
		}(i)
	}

	wg.Wait()
	close(results)

	successes := 0

	for err := range results {
		if err == nil {
			successes++
		} else if !errors.Is(err, user.ErrEmailTaken) {
			t.Fatalf("unexpected error from concurrent create: %v", err)
		}
	}

	if successes != 1 {
		t.Fatalf("concurrent registrations with the same email: %d successes, want exactly 1", successes)
	}
}

func TestUsersRepo_UpdatePartial(t *testing.T) {
	r := NewUsersRepo()

	created := create(t, r, "sam", "sam@example.com")

	updated, err := r.Update(context.Background(), created.ID, user.UpdateParams{
		Bio:      strptr("hello there"),
		Username: strptr("sam2"),
	})

	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	if updated.Username != "sam2" || updated.Email != "sam@example.com" {
		t.Fatalf("partial update changed wrong fields: %+v", updated)
	}

	if updated.Bio == nil || *updated.Bio != "hello there" {
		t.Fatalf("bio not applied: %v", updated.Bio)
	}

	// old username must be free again
	_, err = r.Create(context.Background(), user.CreateParams{
		Username:     "sam",
		Email:        "new@example.com",
		PasswordHash: "x",
	})

	if err != nil {
		t.Fatalf("old username should be reusable after rename, got %v", err)
	}
}

func TestUsersRepo_UpdateBlankBioClears(t *testing.T) {
	r := NewUsersRepo()

	created := create(t, r, "sam", "sam@example.com")

	_, err := r.Update(context.Background(), created.ID, user.UpdateParams{Bio: strptr("something")})

	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	updated, err := r.Update(context.Background(), created.ID, user.UpdateParams{Bio: strptr("")})

	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	if updated.Bio != nil {
		t.Fatalf("blank bio must clear the stored value, got %q", *updated.Bio)
	}
}

func TestUsersRepo_UpdateConflictsAndMissing(t *testing.T) {
	r := NewUsersRepo()

	created := create(t, r, "sam", "sam@example.com")
	create(t, r, "pat", "pat@example.com")

	_, err := r.Update(context.Background(), created.ID, user.UpdateParams{Email: strptr("pat@example.com")})

	if !errors.Is(err, user.ErrEmailTaken) {
		t.Fatalf("update onto taken email error = %v, want ErrEmailTaken", err)
	}

	_, err = r.Update(context.Background(), "missing-id", user.UpdateParams{Bio: strptr("x")})

	if !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("update of missing user error = %v, want ErrNotFound", err)
	}
}
