package directory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"liftmail/internal/directory"
	"liftmail/internal/testsupport"
)

func newDirectory(t *testing.T) *directory.Directory {
	t.Helper()
	db := testsupport.MustOpenStore(t, nil)
	return directory.New(db)
}

func TestResolveUserCreatesThenFinds(t *testing.T) {
	ctx := context.Background()
	dir := newDirectory(t)

	id, created, err := dir.ResolveUser(ctx, "Jane.Doe@Example.com")
	if err != nil || !created || id == "" {
		t.Fatalf("first ResolveUser = %q, %v, %v", id, created, err)
	}
	again, created, err := dir.ResolveUser(ctx, "jane.doe@example.com")
	if err != nil || created || again != id {
		t.Fatalf("second ResolveUser = %q, %v, %v", again, created, err)
	}
	if _, err := dir.CreateUserFromEmail(ctx, "JANE.DOE@example.com"); !errors.Is(err, directory.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestResolveUserConcurrentCreatorsAgree(t *testing.T) {
	ctx := context.Background()
	dir := newDirectory(t)

	const workers = 6
	ids := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, _, err := dir.ResolveUser(ctx, "race@example.com")
			if err != nil {
				t.Errorf("ResolveUser: %v", err)
				return
			}
			ids[i] = id
		}(i)
	}
	wg.Wait()
	for _, id := range ids[1:] {
		if id != ids[0] {
			t.Fatalf("expected one user id, got %v", ids)
		}
	}
}

func TestLookupMissingUser(t *testing.T) {
	dir := newDirectory(t)
	if _, found, err := dir.LookupUserByEmail(context.Background(), "nobody@example.com"); err != nil || found {
		t.Fatalf("expected not found, got found=%v err=%v", found, err)
	}
}

func TestActiveCompetitionPicksLatestInProgress(t *testing.T) {
	ctx := context.Background()
	dir := newDirectory(t)

	if comp, err := dir.ActiveCompetition(ctx); err != nil || comp != nil {
		t.Fatalf("expected no competition, got %+v, %v", comp, err)
	}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := dir.CreateCompetition(ctx, directory.NewCompetition{Name: "Old", Status: directory.StatusInProgress, StartDate: base, DefaultLiftType: "Squat"}); err != nil {
		t.Fatalf("CreateCompetition: %v", err)
	}
	newer, err := dir.CreateCompetition(ctx, directory.NewCompetition{Name: "Newer", Status: directory.StatusInProgress, StartDate: base.AddDate(0, 1, 0)})
	if err != nil {
		t.Fatalf("CreateCompetition: %v", err)
	}
	if _, err := dir.CreateCompetition(ctx, directory.NewCompetition{Name: "Future", StartDate: base.AddDate(0, 2, 0)}); err != nil {
		t.Fatalf("CreateCompetition: %v", err)
	}

	active, err := dir.ActiveCompetition(ctx)
	if err != nil {
		t.Fatalf("ActiveCompetition: %v", err)
	}
	if active == nil || active.ID != newer.ID {
		t.Fatalf("expected newest in-progress competition, got %+v", active)
	}
	if active.DefaultLiftType != "Snatch" {
		t.Fatalf("expected fallback lift, got %q", active.DefaultLiftType)
	}

	all, err := dir.ListCompetitions(ctx)
	if err != nil || len(all) != 3 || all[0].Name != "Future" {
		t.Fatalf("ListCompetitions = %+v, %v", all, err)
	}
}

func TestCompetitionLiftColumn(t *testing.T) {
	ctx := context.Background()
	dir := newDirectory(t)
	if _, err := dir.CreateCompetition(ctx, directory.NewCompetition{Name: "Squat Cup", Status: directory.StatusInProgress, DefaultLiftType: "Squat"}); err != nil {
		t.Fatalf("CreateCompetition: %v", err)
	}
	active, err := dir.ActiveCompetition(ctx)
	if err != nil || active == nil || active.DefaultLiftType != "Squat" {
		t.Fatalf("ActiveCompetition = %+v, %v", active, err)
	}
	if _, err := dir.CreateCompetition(ctx, directory.NewCompetition{Name: "Bad", Status: "paused"}); err == nil {
		t.Fatal("expected unknown status to be rejected")
	}
}

func TestEnrollIsIdempotent(t *testing.T) {
	ctx := context.Background()
	dir := newDirectory(t)
	userID, _, err := dir.ResolveUser(ctx, "lifter@example.com")
	if err != nil {
		t.Fatalf("ResolveUser: %v", err)
	}
	comp, err := dir.CreateCompetition(ctx, directory.NewCompetition{Name: "Open", Status: directory.StatusInProgress})
	if err != nil {
		t.Fatalf("CreateCompetition: %v", err)
	}
	first, err := dir.Enroll(ctx, userID, comp.ID)
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	second, err := dir.Enroll(ctx, userID, comp.ID)
	if err != nil || second != first {
		t.Fatalf("second Enroll = %q, %v; want %q", second, err, first)
	}
}

func TestDisplayName(t *testing.T) {
	tests := map[string]string{
		"jane.doe@example.com": "Jane Doe",
		"big_lifter@x.org":     "Big Lifter",
		"solo@example.com":     "Solo",
		"a..b__c@example.com":  "A B C",
	}
	for input, want := range tests {
		if got := directory.DisplayName(input); got != want {
			t.Fatalf("DisplayName(%q) = %q, want %q", input, got, want)
		}
	}
}
