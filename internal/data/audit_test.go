package data

import (
	"testing"
)

func TestAuditInsertAndEntityHistory(t *testing.T) {
	m := newTestModels(t)

	actorID := int64(7)
	entries := []*AuditEntry{
		{ActorID: &actorID, Action: ActionCreateBook, EntityType: "Book", EntityID: 1, Details: map[string]any{"title": "The Analects"}},
		{ActorID: &actorID, Action: ActionUpdateBook, EntityType: "Book", EntityID: 1, Details: map[string]any{"title": "The Analects of Confucius"}},
		{Action: ActionSendEmail, EntityType: "Email", EntityID: 3},
	}
	for _, e := range entries {
		if err := m.AuditLogs.Insert(e); err != nil {
			t.Fatalf("insert: %v", err)
		}
		if e.ID == 0 {
			t.Fatalf("no id assigned")
		}
	}

	history, err := m.AuditLogs.GetForEntity("Book", 1)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history length = %d", len(history))
	}
	// Newest first.
	if history[0].Action != ActionUpdateBook || history[1].Action != ActionCreateBook {
		t.Fatalf("order: %s, %s", history[0].Action, history[1].Action)
	}
	if history[0].Details["title"] != "The Analects of Confucius" {
		t.Fatalf("details round trip: %v", history[0].Details)
	}
	if history[0].ActorID == nil || *history[0].ActorID != actorID {
		t.Fatalf("actor: %v", history[0].ActorID)
	}
}

func TestAuditSystemEntryHasNoActor(t *testing.T) {
	m := newTestModels(t)

	entry := &AuditEntry{Action: ActionSendEmail, EntityType: "Email", EntityID: 1}
	if err := m.AuditLogs.Insert(entry); err != nil {
		t.Fatalf("insert: %v", err)
	}

	history, err := m.AuditLogs.GetForEntity("Email", 1)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].ActorID != nil {
		t.Fatalf("system entry: %+v", history[0])
	}
}

func TestAuditGetAllFilters(t *testing.T) {
	m := newTestModels(t)

	actorA, actorB := int64(1), int64(2)
	seed := []*AuditEntry{
		{ActorID: &actorA, Action: ActionCreateBook, EntityType: "Book", EntityID: 1},
		{ActorID: &actorA, Action: ActionBorrowBook, EntityType: "Loan", EntityID: 1},
		{ActorID: &actorB, Action: ActionBorrowBook, EntityType: "Loan", EntityID: 2},
		{ActorID: &actorB, Action: ActionPayFine, EntityType: "Fine", EntityID: 1},
	}
	for _, e := range seed {
		if err := m.AuditLogs.Insert(e); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	filters := Filters{Page: 1, PageSize: 20, SortSafeList: []string{"id"}}

	byAction, meta, err := m.AuditLogs.GetAll(AuditFilters{Action: ActionBorrowBook}, filters)
	if err != nil {
		t.Fatalf("by action: %v", err)
	}
	if len(byAction) != 2 || meta.TotalRecords != 2 {
		t.Fatalf("by action: %d (meta %+v)", len(byAction), meta)
	}

	byActor, _, err := m.AuditLogs.GetAll(AuditFilters{ActorID: actorB}, filters)
	if err != nil {
		t.Fatalf("by actor: %v", err)
	}
	if len(byActor) != 2 {
		t.Fatalf("by actor: %d", len(byActor))
	}

	both, _, err := m.AuditLogs.GetAll(AuditFilters{Action: ActionBorrowBook, ActorID: actorB}, filters)
	if err != nil {
		t.Fatalf("combined: %v", err)
	}
	if len(both) != 1 || both[0].EntityID != 2 {
		t.Fatalf("combined: %+v", both)
	}

	all, meta, err := m.AuditLogs.GetAll(AuditFilters{}, filters)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(all) != 4 || meta.TotalRecords != 4 {
		t.Fatalf("all: %d (meta %+v)", len(all), meta)
	}
}

func TestAuditDetailsFallbackToString(t *testing.T) {
	m := newTestModels(t)

	// Channels cannot be JSON-encoded; the entry must still be recorded.
	entry := &AuditEntry{
		Action:     ActionCreateBook,
		EntityType: "Book",
		EntityID:   1,
		Details:    map[string]any{"bad": make(chan int)},
	}
	if err := m.AuditLogs.Insert(entry); err != nil {
		t.Fatalf("insert: %v", err)
	}

	history, err := m.AuditLogs.GetForEntity("Book", 1)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("entry lost: %d", len(history))
	}
}
