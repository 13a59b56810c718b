package conversation

import (
	"fmt"
	"testing"
	"time"

	"appforge/internal/tester"
)

func TestAddMessageTrimsToRecentWindow(t *testing.T) {
	s := New()
	for i := 0; i < maxMessages+1; i++ {
		s.AddMessage("user", fmt.Sprintf("msg-%d", i))
	}
	msgs := s.Messages()
	tester.Eq(t, len(msgs), trimMessages)
	tester.Eq(t, msgs[len(msgs)-1].Content, fmt.Sprintf("msg-%d", maxMessages))
	tester.Eq(t, msgs[0].Content, fmt.Sprintf("msg-%d", maxMessages+1-trimMessages))
}

func TestAddEditTrims(t *testing.T) {
	s := New()
	for i := 0; i < maxEdits+1; i++ {
		s.AddEdit(EditRecord{Type: "UPDATE_COMPONENT", Description: fmt.Sprintf("edit-%d", i)})
	}
	edits := s.Edits()
	tester.Eq(t, len(edits), trimEdits)
	tester.Eq(t, edits[len(edits)-1].Description, fmt.Sprintf("edit-%d", maxEdits))
}

func TestRecentUserPrompts(t *testing.T) {
	s := New()
	s.AddMessage("user", "first")
	s.AddMessage("assistant", "done")
	s.AddMessage("user", "second")

	got := s.RecentUserPrompts(time.Minute)
	tester.Eq(t, len(got), 2)
	tester.Eq(t, got[0], "first")
	tester.Eq(t, got[1], "second")

	tester.Eq(t, len(s.RecentUserPrompts(-time.Second)), 0)
}

func TestAddEditFillsTimestamp(t *testing.T) {
	s := New()
	s.AddEdit(EditRecord{Type: "VISUAL_EDIT"})
	tester.True(t, !s.Edits()[0].Timestamp.IsZero())
}

func TestMajorChanges(t *testing.T) {
	s := New()
	s.AddMajorChange("switched to dark theme")
	tester.Eq(t, len(s.MajorChanges()), 1)
}
