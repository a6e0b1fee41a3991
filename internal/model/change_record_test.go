package model

import "testing"

func strPtr(v string) *string {
	return &v
}

// TestDiffNodes 验证字段对比：只产出有变化的字段，顺序固定。
func TestDiffNodes(t *testing.T) {
	old := &OrgNode{
		ID: "B", TenantID: "default",
		Name: "Old", Description: "desc", ParentID: strPtr("A"), Enabled: true, SortID: 1,
	}
	updated := *old
	updated.Name = "New"
	updated.ParentID = strPtr("Z")
	updated.Enabled = false

	records := DiffNodes(old, &updated)
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d: %+v", len(records), records)
	}

	wantProps := []string{"name", "parentId", "enabled"}
	for i, prop := range wantProps {
		if records[i].Property != prop {
			t.Fatalf("record %d: want property %q, got %q", i, prop, records[i].Property)
		}
		if records[i].TenantID != "default" || records[i].EntityID != "B" {
			t.Fatalf("record %d carries wrong entity: %+v", i, records[i])
		}
	}
	if records[0].OldValue != "Old" || records[0].NewValue != "New" {
		t.Fatalf("name diff values wrong: %+v", records[0])
	}
	if records[2].OldValue != "true" || records[2].NewValue != "false" {
		t.Fatalf("enabled diff values wrong: %+v", records[2])
	}
}

func TestDiffNodes_NoChanges(t *testing.T) {
	node := &OrgNode{ID: "B", Name: "Same", Enabled: true}
	same := *node

	if records := DiffNodes(node, &same); len(records) != 0 {
		t.Fatalf("identical snapshots must produce no records: %+v", records)
	}
}

func TestDiffNodes_NilParentTransitions(t *testing.T) {
	old := &OrgNode{ID: "B", Name: "N"}
	updated := *old
	updated.ParentID = strPtr("A")

	records := DiffNodes(old, &updated)
	if len(records) != 1 || records[0].Property != "parentId" {
		t.Fatalf("expected single parentId record, got %+v", records)
	}
	if records[0].OldValue != "" || records[0].NewValue != "A" {
		t.Fatalf("nil parent should diff as empty string: %+v", records[0])
	}
}

func TestDiffNodes_NilSnapshots(t *testing.T) {
	if records := DiffNodes(nil, &OrgNode{}); records != nil {
		t.Fatalf("nil old snapshot must produce nil, got %+v", records)
	}
	if records := DiffNodes(&OrgNode{}, nil); records != nil {
		t.Fatalf("nil new snapshot must produce nil, got %+v", records)
	}
}
