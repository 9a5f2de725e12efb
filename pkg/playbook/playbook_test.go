package playbook

import (
	"testing"

	"github.com/hungson175/ace/pkg/bullet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSections() []Section {
	return []Section{
		{Name: "strategies_and_hard_rules", Prefix: "ctx"},
		{Name: "apis_to_use_for_specific_information", Prefix: "api"},
		{Name: "verification_checklist", Prefix: "chk"},
		{Name: "formulas_and_calculations", Prefix: "calc"},
	}
}

func TestApplyAddAssignsSequentialID(t *testing.T) {
	s := New(testSections())
	res := s.Apply(Delta{Operations: []Operation{
		{Type: OpAdd, Section: "strategies_and_hard_rules", Content: "use the Phone app contacts as source of truth for roommates"},
		{Type: OpAdd, Section: "strategies_and_hard_rules", Content: "use while True with a break condition, not range(10), for paginated APIs"},
	}})
	require.Empty(t, res.Errors)
	assert.Equal(t, []string{"ctx-00001", "ctx-00002"}, res.AddedIDs)
	assert.Equal(t, 2, s.LiveCount("strategies_and_hard_rules"))
}

func TestApplyAddRejectsUnknownSection(t *testing.T) {
	s := New(testSections())
	res := s.Apply(Delta{Operations: []Operation{
		{Type: OpAdd, Section: "not_a_real_section", Content: "x"}},
	})
	assert.Empty(t, res.AddedIDs)
	require.Len(t, res.Errors, 1)
	var unknownSec *UnknownSectionError
	assert.ErrorAs(t, res.Errors[0], &unknownSec)
}

func TestApplyAddRejectsOversized(t *testing.T) {
	s := New(testSections())
	big := make([]byte, bullet.MaxContentBytes+1)
	for i := range big {
		big[i] = 'a'
	}
	res := s.Apply(Delta{Operations: []Operation{
		{Type: OpAdd, Section: "strategies_and_hard_rules", Content: string(big)}},
	})
	assert.Empty(t, res.AddedIDs)
	require.Len(t, res.Errors, 1)
	var oversized *OversizedBulletError
	assert.ErrorAs(t, res.Errors[0], &oversized)
}

func TestApplyUpdateInvalidatesEmbedding(t *testing.T) {
	s := New(testSections())
	res := s.Apply(Delta{Operations: []Operation{
		{Type: OpAdd, Section: "strategies_and_hard_rules", Content: "v1"},
	}})
	id := res.AddedIDs[0]

	// seed an embedding directly as grow-and-refine would
	b := s.Get(id)
	require.NotNil(t, b)
	s.byID[id].Embedding = []float32{1, 0}

	s.Apply(Delta{Operations: []Operation{
		{Type: OpUpdate, ID: id, Content: "v2"},
	}})
	updated := s.Get(id)
	require.NotNil(t, updated)
	assert.Equal(t, "v2", updated.Content)
	assert.Nil(t, updated.Embedding)
}

func TestApplyUpdateUnknownIDFails(t *testing.T) {
	s := New(testSections())
	res := s.Apply(Delta{Operations: []Operation{
		{Type: OpUpdate, ID: "ctx-09999", Content: "v2"},
	}})
	require.Len(t, res.Errors, 1)
	var unknown *UnknownBulletIDError
	assert.ErrorAs(t, res.Errors[0], &unknown)
}

func TestApplyDeleteTombstonesID(t *testing.T) {
	s := New(testSections())
	res := s.Apply(Delta{Operations: []Operation{
		{Type: OpAdd, Section: "strategies_and_hard_rules", Content: "v1"},
	}})
	id := res.AddedIDs[0]

	del := s.Apply(Delta{Operations: []Operation{{Type: OpDelete, ID: id}}})
	assert.Equal(t, []string{id}, del.DeletedIDs)
	assert.Nil(t, s.Get(id))
	assert.Equal(t, 0, s.LiveCount("strategies_and_hard_rules"))

	// deleted IDs are never reissued
	redo := s.Apply(Delta{Operations: []Operation{
		{Type: OpAdd, Section: "strategies_and_hard_rules", Content: "v2"},
	}})
	assert.NotEqual(t, id, redo.AddedIDs[0])
}

func TestOrderStabilityAcrossAdds(t *testing.T) {
	s := New(testSections())
	var ids []string
	for i := 0; i < 5; i++ {
		res := s.Apply(Delta{Operations: []Operation{
			{Type: OpAdd, Section: "apis_to_use_for_specific_information", Content: "rule"},
		}})
		ids = append(ids, res.AddedIDs...)
	}
	rendered := s.Render("apis_to_use_for_specific_information")
	lastIdx := -1
	for _, id := range ids {
		idx := indexOf(rendered, id)
		require.Greater(t, idx, lastIdx, "IDs must render in insertion order")
		lastIdx = idx
	}
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}

func TestEmptyDeltaIsNoOp(t *testing.T) {
	s := New(testSections())
	s.Apply(Delta{Operations: []Operation{
		{Type: OpAdd, Section: "strategies_and_hard_rules", Content: "v1"},
	}})
	before, err := s.Checkpoint()
	require.NoError(t, err)

	s.Apply(Delta{})

	after, err := s.Checkpoint()
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
}

func TestRepeatedIdenticalDeltaAdditiveDifferentIDs(t *testing.T) {
	s := New(testSections())
	delta := Delta{Operations: []Operation{
		{Type: OpAdd, Section: "strategies_and_hard_rules", Content: "same content"},
	}}
	r1 := s.Apply(delta)
	r2 := s.Apply(delta)
	assert.NotEqual(t, r1.AddedIDs[0], r2.AddedIDs[0])
	assert.Equal(t, 2, s.LiveCount("strategies_and_hard_rules"))
}

func TestTagCitedOnlyMutatesCitedAndTaggedIntersection(t *testing.T) {
	s := New(testSections())
	res := s.Apply(Delta{Operations: []Operation{
		{Type: OpAdd, Section: "strategies_and_hard_rules", Content: "a"},
		{Type: OpAdd, Section: "strategies_and_hard_rules", Content: "b"},
	}})
	idA, idB := res.AddedIDs[0], res.AddedIDs[1]

	// idB is tagged helpful but was never cited -> must not mutate.
	s.TagCited([]string{idA}, []bullet.BulletTag{
		{ID: idA, Tag: bullet.TagHelpful},
		{ID: idB, Tag: bullet.TagHelpful},
	})

	a, b := s.Get(idA), s.Get(idB)
	assert.Equal(t, 1, a.HelpfulCount)
	assert.Equal(t, 0, b.HelpfulCount)
}

func TestTagCitedNeutralDoesNotIncrement(t *testing.T) {
	s := New(testSections())
	res := s.Apply(Delta{Operations: []Operation{
		{Type: OpAdd, Section: "strategies_and_hard_rules", Content: "a"},
	}})
	id := res.AddedIDs[0]
	s.TagCited([]string{id}, []bullet.BulletTag{{ID: id, Tag: bullet.TagNeutral}})
	b := s.Get(id)
	assert.Equal(t, 0, b.HelpfulCount)
	assert.Equal(t, 0, b.HarmfulCount)
}

func TestCountersMonotonicNonDecreasing(t *testing.T) {
	s := New(testSections())
	res := s.Apply(Delta{Operations: []Operation{
		{Type: OpAdd, Section: "strategies_and_hard_rules", Content: "a"},
	}})
	id := res.AddedIDs[0]

	prevHelpful, prevHarmful := 0, 0
	for i := 0; i < 10; i++ {
		s.TagCited([]string{id}, []bullet.BulletTag{{ID: id, Tag: bullet.TagHelpful}})
		b := s.Get(id)
		assert.GreaterOrEqual(t, b.HelpfulCount, prevHelpful)
		assert.GreaterOrEqual(t, b.HarmfulCount, prevHarmful)
		prevHelpful, prevHarmful = b.HelpfulCount, b.HarmfulCount
	}
}

func TestSnapshotForReflectorOrderAndFiltering(t *testing.T) {
	s := New(testSections())
	res := s.Apply(Delta{Operations: []Operation{
		{Type: OpAdd, Section: "strategies_and_hard_rules", Content: "a"},
		{Type: OpAdd, Section: "strategies_and_hard_rules", Content: "b"},
		{Type: OpAdd, Section: "apis_to_use_for_specific_information", Content: "c"},
	}})
	ids := res.AddedIDs

	snap := s.SnapshotForReflector([]string{ids[2], ids[0], "ctx-09999"})
	require.Len(t, snap, 2)
	assert.Equal(t, ids[0], snap[0].ID)
	assert.Equal(t, ids[2], snap[1].ID)
}

func TestIDUniquenessAcrossLiveAndTombstoned(t *testing.T) {
	s := New(testSections())
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		res := s.Apply(Delta{Operations: []Operation{
			{Type: OpAdd, Section: "strategies_and_hard_rules", Content: "x"},
		}})
		id := res.AddedIDs[0]
		require.False(t, seen[id])
		seen[id] = true
		if i%3 == 0 {
			s.Apply(Delta{Operations: []Operation{{Type: OpDelete, ID: id}}})
		}
	}
}
