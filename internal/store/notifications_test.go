package store

import (
	"testing"

	"github.com/hferris/dutywatch/internal/models"
)

func TestInsertNotification_Validation(t *testing.T) {
	db := testDB(t)

	if err := InsertNotification(db, nil); err == nil {
		t.Error("expected error for nil notification")
	}
	if err := InsertNotification(db, &models.Notification{Type: "shift_updated"}); err == nil {
		t.Error("expected error for missing provider id")
	}
	if err := InsertNotification(db, &models.Notification{ProviderID: "prov-a"}); err == nil {
		t.Error("expected error for missing type")
	}
}

func TestNotificationFeed(t *testing.T) {
	db := testDB(t)

	for _, typ := range []string{"shift_swap_requested", "shift_updated"} {
		err := InsertNotification(db, &models.Notification{
			ProviderID: "prov-a",
			Type:       typ,
			Payload:    `{"shiftId":"shf-1"}`,
		})
		if err != nil {
			t.Fatalf("InsertNotification: %v", err)
		}
	}
	// Another provider's row stays out of prov-a's feed.
	if err := InsertNotification(db, &models.Notification{ProviderID: "prov-b", Type: "shift_deleted"}); err != nil {
		t.Fatalf("InsertNotification: %v", err)
	}

	feed, err := ListNotifications(db, "prov-a", false)
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if len(feed) != 2 {
		t.Fatalf("feed len = %d, want 2", len(feed))
	}
	for _, n := range feed {
		if n.Read {
			t.Errorf("notification %d already read", n.ID)
		}
		if n.Channel != "ws" {
			t.Errorf("channel = %q, want ws default", n.Channel)
		}
	}

	marked, err := MarkNotificationsRead(db, "prov-a")
	if err != nil {
		t.Fatalf("MarkNotificationsRead: %v", err)
	}
	if marked != 2 {
		t.Errorf("marked = %d, want 2", marked)
	}

	unread, err := ListNotifications(db, "prov-a", true)
	if err != nil {
		t.Fatalf("ListNotifications unread: %v", err)
	}
	if len(unread) != 0 {
		t.Errorf("unread len = %d, want 0 after mark-read", len(unread))
	}
	// prov-b's feed is untouched.
	otherUnread, err := ListNotifications(db, "prov-b", true)
	if err != nil {
		t.Fatalf("ListNotifications prov-b: %v", err)
	}
	if len(otherUnread) != 1 {
		t.Errorf("prov-b unread len = %d, want 1", len(otherUnread))
	}

	// Marking again is a no-op.
	marked, err = MarkNotificationsRead(db, "prov-a")
	if err != nil {
		t.Fatalf("MarkNotificationsRead again: %v", err)
	}
	if marked != 0 {
		t.Errorf("second mark = %d, want 0", marked)
	}
}
