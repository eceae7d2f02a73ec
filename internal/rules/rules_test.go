package rules

import (
	"testing"

	"github.com/hferris/dutywatch/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.SchedulingRule{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func seedRule(t *testing.T, db *gorm.DB, name string, ct models.ConflictType, strategy models.Strategy, priority int, active bool) uint {
	t.Helper()
	r := models.SchedulingRule{
		Name:         name,
		ConflictType: ct,
		Strategy:     strategy,
		Priority:     priority,
		IsActive:     active,
	}
	if err := db.Create(&r).Error; err != nil {
		t.Fatalf("seed rule %s: %v", name, err)
	}
	return r.ID
}

func TestSelectRule_Validation(t *testing.T) {
	if _, err := SelectRule(nil, models.ConflictOverlap); err == nil {
		t.Error("expected error for nil db")
	}
	if _, err := SelectRule(testDB(t), ""); err == nil {
		t.Error("expected error for empty conflict type")
	}
}

func TestSelectRule_NoMatch(t *testing.T) {
	db := testDB(t)
	seedRule(t, db, "prefs", models.ConflictPreference, models.StrategyNotifyAdmin, 5, true)

	got, err := SelectRule(db, models.ConflictOverlap)
	if err != nil {
		t.Fatalf("SelectRule: %v", err)
	}
	if got != nil {
		t.Errorf("rule = %+v, want nil for no match", got)
	}
}

func TestSelectRule_HighestPriorityWins(t *testing.T) {
	db := testDB(t)
	seedRule(t, db, "low", models.ConflictOverlap, models.StrategyNotifyAdmin, 1, true)
	wantID := seedRule(t, db, "high", models.ConflictOverlap, models.StrategyAutoReassign, 10, true)

	got, err := SelectRule(db, models.ConflictOverlap)
	if err != nil {
		t.Fatalf("SelectRule: %v", err)
	}
	if got == nil || got.ID != wantID {
		t.Errorf("rule = %+v, want id %d", got, wantID)
	}
}

func TestSelectRule_TieBrokenByLowestID(t *testing.T) {
	db := testDB(t)
	first := seedRule(t, db, "first", models.ConflictOverlap, models.StrategyAutoReassign, 5, true)
	seedRule(t, db, "second", models.ConflictOverlap, models.StrategySuggestSwap, 5, true)

	got, err := SelectRule(db, models.ConflictOverlap)
	if err != nil {
		t.Fatalf("SelectRule: %v", err)
	}
	if got == nil || got.ID != first {
		t.Errorf("rule = %+v, want lowest id %d", got, first)
	}
}

func TestSelectRule_IgnoresInactive(t *testing.T) {
	db := testDB(t)
	seedRule(t, db, "inactive", models.ConflictOverlap, models.StrategyAutoReassign, 100, false)
	wantID := seedRule(t, db, "active", models.ConflictOverlap, models.StrategyNotifyAdmin, 1, true)

	got, err := SelectRule(db, models.ConflictOverlap)
	if err != nil {
		t.Fatalf("SelectRule: %v", err)
	}
	if got == nil || got.ID != wantID {
		t.Errorf("rule = %+v, want active rule %d", got, wantID)
	}
}

func TestSelectRule_Deterministic(t *testing.T) {
	db := testDB(t)
	seedRule(t, db, "a", models.ConflictOverlap, models.StrategyAutoReassign, 5, true)
	seedRule(t, db, "b", models.ConflictOverlap, models.StrategySuggestSwap, 5, true)

	first, err := SelectRule(db, models.ConflictOverlap)
	if err != nil {
		t.Fatalf("SelectRule: %v", err)
	}
	second, err := SelectRule(db, models.ConflictOverlap)
	if err != nil {
		t.Fatalf("SelectRule again: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("SelectRule not deterministic: %d vs %d", first.ID, second.ID)
	}
}
