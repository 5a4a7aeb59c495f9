package magiclink

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// store is implemented by MemoryStore and MongoStore.
type store interface {
	UserRepository
	MagicLinkRepository
}

// testStore runs the repository contract tests against s, which must be empty.
func testStore(t *testing.T, s store) {
	t.Run("InsertUser", func(t *testing.T) { testInsertUser(t, s) })
	t.Run("UpdateDeleteUser", func(t *testing.T) { testUpdateDeleteUser(t, s) })
	t.Run("EmailTaken", func(t *testing.T) { testEmailTaken(t, s) })
	t.Run("CreateOrRetrieveUser", func(t *testing.T) { testCreateOrRetrieveUser(t, s) })
	t.Run("MagicLinks", func(t *testing.T) { testMagicLinks(t, s) })
	t.Run("ConsumeMagicLink", func(t *testing.T) { testConsumeMagicLink(t, s) })
}

func testInsertUser(t *testing.T, s store) {
	ctx := context.Background()

	u1 := &User{ID: "ins1", Email: "ins1@x.com", Name: ptr("One")}
	got, err := s.InsertUser(ctx, u1)
	if err != nil || got.ID != u1.ID {
		t.Fatalf("Expected inserted user, got: %+v, %v", got, err)
	}

	cases := []struct {
		title string
		user  *User
	}{
		{title: "same-id", user: &User{ID: "ins1", Email: "other@x.com"}},
		{title: "same-email", user: &User{ID: "ins2", Email: "ins1@x.com"}},
	}
	for _, c := range cases {
		got, err := s.InsertUser(ctx, c.user)
		if err != nil {
			t.Errorf("[%s] Expected no error, got: %v", c.title, err)
			continue
		}
		// The stored user is returned, not the input.
		if got.ID != "ins1" || got.Email != "ins1@x.com" || got.Name == nil || *got.Name != "One" {
			t.Errorf("[%s] Expected stored user, got: %+v", c.title, got)
		}
	}

	if _, err := s.UserByID(ctx, "ins2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected: %v, got: %v", ErrNotFound, err)
	}
	if _, err := s.UserByEmail(ctx, "other@x.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected: %v, got: %v", ErrNotFound, err)
	}
	if got, err := s.UserByEmail(ctx, "ins1@x.com"); err != nil || got.ID != "ins1" {
		t.Errorf("Expected stored user, got: %+v, %v", got, err)
	}
}

func testUpdateDeleteUser(t *testing.T, s store) {
	ctx := context.Background()

	// Updating or deleting a missing user does not create it.
	missing := &User{ID: "upd-missing", Email: "missing@x.com"}
	if _, err := s.UpdateUser(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected: %v, got: %v", ErrNotFound, err)
	}
	if _, err := s.DeleteUser(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected: %v, got: %v", ErrNotFound, err)
	}
	if _, err := s.UserByID(ctx, missing.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected: %v, got: %v", ErrNotFound, err)
	}

	u := &User{ID: "upd1", Email: "upd1@x.com"}
	if _, err := s.InsertUser(ctx, u); err != nil {
		t.Fatalf("Failed to insert user: %v", err)
	}

	u.Name, u.IsVerified, u.AdditionalData = ptr("Bob"), true, ptr("extra")
	got, err := s.UpdateUser(ctx, u)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got.ID != u.ID || *got.Name != "Bob" || !got.IsVerified || *got.AdditionalData != "extra" {
		t.Errorf("Expected: %+v, got: %+v", u, got)
	}
	if got, err := s.UserByID(ctx, u.ID); err != nil || *got.Name != "Bob" {
		t.Errorf("Expected updated user, got: %+v, %v", got, err)
	}

	deleted, err := s.DeleteUser(ctx, u)
	if err != nil || deleted.ID != u.ID {
		t.Errorf("Expected deleted user, got: %+v, %v", deleted, err)
	}
	if _, err := s.UserByID(ctx, u.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected: %v, got: %v", ErrNotFound, err)
	}
	if _, err := s.DeleteUser(ctx, u); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected: %v, got: %v", ErrNotFound, err)
	}
}

func testEmailTaken(t *testing.T, s store) {
	ctx := context.Background()

	u1 := &User{ID: "taken1", Email: "taken1@x.com"}
	u2 := &User{ID: "taken2", Email: "taken2@x.com"}
	for _, u := range []*User{u1, u2} {
		if _, err := s.InsertUser(ctx, u); err != nil {
			t.Fatalf("Failed to insert user: %v", err)
		}
	}

	cases := []struct {
		title  string
		user   *User
		expErr error
	}{
		{title: "other-users-email", user: &User{ID: "taken2", Email: "taken1@x.com"}, expErr: ErrEmailTaken},
		{title: "own-email", user: &User{ID: "taken2", Email: "taken2@x.com", Name: ptr("B")}},
		{title: "free-email", user: &User{ID: "taken2", Email: "taken3@x.com"}},
	}
	for _, c := range cases {
		if _, err := s.UpdateUser(ctx, c.user); !errors.Is(err, c.expErr) {
			t.Errorf("[%s] Expected: %v, got: %v", c.title, c.expErr, err)
		}
	}

	// The rejected update left both users as they were.
	if got, err := s.UserByEmail(ctx, "taken1@x.com"); err != nil || got.ID != "taken1" {
		t.Errorf("Expected: %v, got: %+v, %v", "taken1", got, err)
	}
	if got, err := s.UserByID(ctx, "taken2"); err != nil || got.Email != "taken3@x.com" {
		t.Errorf("Expected: %v, got: %+v, %v", "taken3@x.com", got, err)
	}
}

func testCreateOrRetrieveUser(t *testing.T, s store) {
	ctx := context.Background()

	u1, err := CreateOrRetrieveUser(ctx, s, "cor@x.com")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if u1.ID == "" || u1.Email != "cor@x.com" || u1.IsVerified || u1.IsPayedUser {
		t.Errorf("Expected new default user, got: %+v", u1)
	}
	u2, err := CreateOrRetrieveUser(ctx, s, "cor@x.com")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if u1.ID != u2.ID {
		t.Errorf("Expected: %v, got: %v", u1.ID, u2.ID)
	}
}

func testMagicLinks(t *testing.T, s store) {
	ctx := context.Background()

	before := time.Now()
	link, err := s.InsertMagicLink(ctx, "no-such-user", DefaultLinkExpiration)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if link.UserID != "no-such-user" || link.IsUsed || len(link.Token) < DefaultTokenBytes*4/3 {
		t.Errorf("Unexpected link: %+v", link)
	}
	if timesDiffer(before.Add(DefaultLinkExpiration), link.ExpirationTime) {
		t.Errorf("Expected: %v, got: %v", before.Add(DefaultLinkExpiration), link.ExpirationTime)
	}

	got, err := s.MagicLinkByToken(ctx, link.Token)
	if err != nil || got.Token != link.Token || got.UserID != link.UserID || got.IsUsed {
		t.Errorf("Expected: %+v, got: %+v, %v", link, got, err)
	}
	if _, err := s.MagicLinkByToken(ctx, "unknown"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected: %v, got: %v", ErrNotFound, err)
	}

	link.IsUsed = true
	got, err = s.UpdateMagicLink(ctx, link)
	if err != nil || !got.IsUsed {
		t.Errorf("Expected used link, got: %+v, %v", got, err)
	}

	missing := &MagicLink{Token: "missing", UserID: "u"}
	if _, err := s.UpdateMagicLink(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected: %v, got: %v", ErrNotFound, err)
	}
	if _, err := s.MagicLinkByToken(ctx, missing.Token); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected: %v, got: %v", ErrNotFound, err)
	}
}

func testConsumeMagicLink(t *testing.T, s store) {
	ctx := context.Background()
	now := time.Now()

	expired, err := s.InsertMagicLink(ctx, "u", -time.Minute)
	if err != nil {
		t.Fatalf("Failed to insert link: %v", err)
	}
	if _, err := s.ConsumeMagicLink(ctx, expired.Token, now); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected: %v, got: %v", ErrNotFound, err)
	}
	if got, _ := s.MagicLinkByToken(ctx, expired.Token); got.IsUsed {
		t.Errorf("Expected expired link left unused")
	}

	if _, err := s.ConsumeMagicLink(ctx, "unknown", now); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected: %v, got: %v", ErrNotFound, err)
	}

	link, err := s.InsertMagicLink(ctx, "u", time.Hour)
	if err != nil {
		t.Fatalf("Failed to insert link: %v", err)
	}

	// Concurrent consumers: first writer wins.
	const n = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := s.ConsumeMagicLink(ctx, link.Token, now)
			if err == nil {
				if !got.IsUsed {
					t.Errorf("Expected used link, got: %+v", got)
				}
				mu.Lock()
				successes++
				mu.Unlock()
			} else if !errors.Is(err, ErrNotFound) {
				t.Errorf("Expected: %v, got: %v", ErrNotFound, err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("Expected 1 successful consume, got: %d", successes)
	}
	if got, err := s.MagicLinkByToken(ctx, link.Token); err != nil || !got.IsUsed {
		t.Errorf("Expected used link, got: %+v, %v", got, err)
	}
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestMemoryStoreCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	u := &User{ID: "u1", Email: "a@x.com", Name: ptr("A")}
	if _, err := s.InsertUser(ctx, u); err != nil {
		t.Fatalf("Failed to insert user: %v", err)
	}
	*u.Name = "changed"
	got, _ := s.UserByID(ctx, "u1")
	if *got.Name != "A" {
		t.Errorf("Expected store unaffected by caller, got: %v", *got.Name)
	}
	*got.Name = "changed again"
	if got2, _ := s.UserByID(ctx, "u1"); *got2.Name != "A" {
		t.Errorf("Expected store unaffected by caller, got: %v", *got2.Name)
	}
}
