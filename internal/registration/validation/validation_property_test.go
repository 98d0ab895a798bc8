package validation

import (
	"context"
	"testing"

	"pgregory.net/rapid"
)

var levels = []string{"bachelor", "master", "phd"}

func drawName(t *rapid.T, label string) string {
	return rapid.StringMatching(`[A-Z][a-z]{1,10}( [A-Z][a-z]{1,10})?`).Draw(t, label)
}

// Property: teams with 2..5 valid members in the leading slots always pass,
// and the normalized members come back in slot order.
func TestValidTeamsAlwaysPass(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(2, 5).Draw(t, "members")
		raw := RawSubmission{
			Email:           rapid.StringMatching(`[a-z]{1,8}@[a-z]{1,8}\.(edu|org|com)`).Draw(t, "email"),
			ProjectField:    rapid.SampledFrom([]string{"health", "energy", "environment"}).Draw(t, "field"),
			ProjectCategory: rapid.SampledFrom([]string{"student_research", "published_research", "prototype", "science_communication"}).Draw(t, "category"),
			AcceptTerms:     true,
		}
		for i := 0; i < n; i++ {
			raw.Members = append(raw.Members, RawMember{
				Name:  drawName(t, "name"),
				Level: rapid.SampledFrom(levels).Draw(t, "level"),
			})
		}

		sub, errs, err := Validate(context.Background(), raw, nil)
		if err != nil || len(errs) > 0 {
			t.Fatalf("expected success, got err=%v errs=%v", err, errs)
		}
		if len(sub.Members) != n {
			t.Fatalf("expected %d members, got %d", n, len(sub.Members))
		}
		for i, m := range sub.Members {
			if m.Order != i+1 {
				t.Fatalf("member %d has order %d", i, m.Order)
			}
		}
	})
}

// Property: a count outside [2,5] always yields exactly one general error.
func TestMemberCountBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.SampledFrom([]int{0, 1, 6, 7, 9}).Draw(t, "members")
		raw := RawSubmission{
			Email:           "a@b.edu",
			ProjectField:    "health",
			ProjectCategory: "prototype",
			AcceptTerms:     true,
		}
		for i := 0; i < n; i++ {
			raw.Members = append(raw.Members, RawMember{Name: drawName(t, "name"), Level: "master"})
		}

		_, errs, err := Validate(context.Background(), raw, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := len(errs.General()); got != 1 {
			t.Fatalf("expected one general error for %d members, got %v", n, errs.General())
		}
	})
}

// Property: a name with any character outside the accepted class is rejected
// on that member's field only.
func TestNonEnglishNamesRejected(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		bad := rapid.SampledFrom([]rune("éüñçøßĳאبمحد中文ж0123456789_@#!?")).Draw(t, "bad")
		prefix := drawName(t, "prefix")
		slot := rapid.IntRange(0, 1).Draw(t, "slot")

		raw := RawSubmission{
			Email: "a@b.edu",
			Members: []RawMember{
				{Name: "John Smith", Level: "bachelor"},
				{Name: "Jane Doe", Level: "master"},
			},
			ProjectField:    "health",
			ProjectCategory: "prototype",
			AcceptTerms:     true,
		}
		raw.Members[slot].Name = prefix + string(bad)

		_, errs, err := Validate(context.Background(), raw, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(errs) != 1 || errs[0].Field != MemberNameField(slot+1) || errs[0].Code != CodeInvalidCharset {
			t.Fatalf("expected a single charset error on slot %d, got %v", slot+1, errs)
		}
	})
}
