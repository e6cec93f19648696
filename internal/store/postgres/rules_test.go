package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/sitetrust/scoring-engine/internal/domain"
	"github.com/sitetrust/scoring-engine/internal/store"
)

// =============================================================================
// BLACKLIST / CONTENT RULE TESTS
// =============================================================================

func TestRuleRepo_CheckBlacklistNoMatch(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT id, pattern").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	repo := NewRuleRepo(db)
	v, err := repo.CheckBlacklist(context.Background(), "clean.example")
	if err != nil {
		t.Fatalf("CheckBlacklist() error: %v", err)
	}
	if v.Blacklisted || v.Penalty != 0 {
		t.Errorf("verdict = %+v, want clean", v)
	}
}

func TestRuleRepo_CheckBlacklistPenaltyCapped(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "pattern", "blacklist_type", "severity", "description", "active", "created_at"}).
		AddRow(1, "bad.example", "malware", 8, "", true, now).
		AddRow(2, "%.example", "phishing", 10, "", true, now)
	mock.ExpectQuery("SELECT id, pattern").WillReturnRows(rows)

	repo := NewRuleRepo(db)
	v, err := repo.CheckBlacklist(context.Background(), "bad.example")
	if err != nil {
		t.Fatalf("CheckBlacklist() error: %v", err)
	}
	if !v.Blacklisted {
		t.Error("should be blacklisted")
	}
	// sum(severity)*5 = 90, capped at 50
	if v.Penalty != 50 {
		t.Errorf("Penalty = %v, want 50", v.Penalty)
	}
	if v.WorstType != "phishing" || v.MaxSeverity != 10 {
		t.Errorf("worst = %q/%d, want phishing/10", v.WorstType, v.MaxSeverity)
	}
}

func TestRuleRepo_InsertBlacklistEntry(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO trust_blacklist").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewRuleRepo(db)
	err := repo.InsertBlacklistEntry(context.Background(), &domain.BlacklistEntry{
		Pattern:  "bad.example",
		Type:     "malware",
		Severity: 8,
		Active:   true,
	})
	if err != nil {
		t.Fatalf("InsertBlacklistEntry() error: %v", err)
	}
}

func TestRuleRepo_ActiveRules(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "domain", "content_type", "url_pattern", "trust_score_modifier",
		"min_ratings_required", "active", "description", "created_at",
	}).
		AddRow(1, "example.com", "video", "%/watch%", 3, 3, true, "", now).
		AddRow(2, "example.com", "general", nil, 1, 3, true, "", now)
	mock.ExpectQuery("SELECT id, domain, content_type").WillReturnRows(rows)

	repo := NewRuleRepo(db)
	rules, err := repo.ActiveRules(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("ActiveRules() error: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("rules = %d, want 2", len(rules))
	}
	if rules[0].URLPattern == nil || *rules[0].URLPattern != "%/watch%" {
		t.Error("first rule pattern lost")
	}
	if rules[1].URLPattern != nil {
		t.Error("second rule should have nil pattern")
	}
}

func TestRuleRepo_InsertRule(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO trust_content_rules").
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := NewRuleRepo(db)
	pattern := "%/article/%"
	err := repo.InsertRule(context.Background(), &domain.ContentTypeRule{
		Domain:      "example-blog.com",
		ContentType: domain.ContentTypeArticle,
		URLPattern:  &pattern,
		Modifier:    2,
		MinRatings:  3,
		Active:      true,
		Description: "auto-generated from 4 ratings",
	})
	if err != nil {
		t.Fatalf("InsertRule() error: %v", err)
	}
}

func TestRuleRepo_DeactivateRuleNotFound(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("UPDATE trust_content_rules SET active = false").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewRuleRepo(db)
	if err := repo.DeactivateRule(context.Background(), 99); err != store.ErrNotFound {
		t.Errorf("DeactivateRule() error = %v, want ErrNotFound", err)
	}
}
