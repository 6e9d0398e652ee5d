package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dmitryntvh/AVITO/internal/domain"
)

func newLeadRepo(t *testing.T) *LeadRepository {
	db, dialect := newTestDB(t)
	r := NewLeadRepository(db, dialect)
	r.now = stepClock(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	return r
}

func TestInsertAndGetLead(t *testing.T) {
	ctx := context.Background()
	r := newLeadRepo(t)

	id, err := r.InsertLead(ctx, domain.NewLead{Phone: "+79991234567", Source: "avito", ModelCode: "m1"})
	require.NoError(t, err)

	lead, err := r.GetLead(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "+79991234567", lead.Phone)
	assert.Equal(t, "avito", lead.Source)
	assert.Equal(t, "m1", lead.ModelCode.String)
	assert.False(t, lead.Name.Valid)
	assert.Equal(t, domain.LeadStatusNew, lead.Status)
	assert.Equal(t, domain.SegmentUnknown, lead.Segment)
	assert.Empty(t, lead.Note)
	assert.False(t, lead.LastContactAt.Valid)
	assert.False(t, lead.RemindAt.Valid)

	_, err = r.GetLead(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListLeadsNewestFirst(t *testing.T) {
	ctx := context.Background()
	r := newLeadRepo(t)

	var ids []string
	for _, phone := range []string{"+70000000001", "+70000000002", "+70000000003"} {
		id, err := r.InsertLead(ctx, domain.NewLead{Phone: phone, Source: "web"})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	n, err := r.CountLeads(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	page, err := r.ListLeads(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[2], page[0].ID)
	assert.Equal(t, ids[1], page[1].ID)

	page, err = r.ListLeads(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[0], page[0].ID)
}

func TestAppendLeadNotePrepends(t *testing.T) {
	ctx := context.Background()
	r := newLeadRepo(t)
	id, err := r.InsertLead(ctx, domain.NewLead{Phone: "+70000000001"})
	require.NoError(t, err)

	require.NoError(t, r.AppendLeadNote(ctx, id, "A"))
	require.NoError(t, r.AppendLeadNote(ctx, id, "B"))
	require.NoError(t, r.AppendLeadNote(ctx, id, "   "))

	lead, err := r.GetLead(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "B\n\nA", lead.Note)
	assert.True(t, lead.LastContactAt.Valid)

	assert.ErrorIs(t, r.AppendLeadNote(ctx, "missing", "x"), domain.ErrNotFound)
}

func TestStatusAndSegmentStampLastContact(t *testing.T) {
	ctx := context.Background()
	r := newLeadRepo(t)
	id, err := r.InsertLead(ctx, domain.NewLead{Phone: "+70000000001"})
	require.NoError(t, err)

	require.NoError(t, r.SetLeadStatus(ctx, id, domain.LeadStatusWork))
	lead, err := r.GetLead(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.LeadStatusWork, lead.Status)
	require.True(t, lead.LastContactAt.Valid)
	first := lead.LastContactAt.Time

	require.NoError(t, r.SetLeadSegment(ctx, id, "anything"))
	lead, err = r.GetLead(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "anything", lead.Segment)
	assert.True(t, lead.LastContactAt.Time.After(first))

	assert.ErrorIs(t, r.SetLeadStatus(ctx, "missing", "x"), domain.ErrNotFound)
}

func TestRemindersAndDue(t *testing.T) {
	ctx := context.Background()
	r := newLeadRepo(t)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	late, err := r.InsertLead(ctx, domain.NewLead{Phone: "+70000000001"})
	require.NoError(t, err)
	early, err := r.InsertLead(ctx, domain.NewLead{Phone: "+70000000002"})
	require.NoError(t, err)
	future, err := r.InsertLead(ctx, domain.NewLead{Phone: "+70000000003"})
	require.NoError(t, err)

	lateAt := base.Add(-time.Hour)
	earlyAt := base.Add(-2 * time.Hour)
	futureAt := base.Add(24 * time.Hour)
	require.NoError(t, r.SetLeadRemindAt(ctx, late, &lateAt))
	require.NoError(t, r.SetLeadRemindAt(ctx, early, &earlyAt))
	require.NoError(t, r.SetLeadRemindAt(ctx, future, &futureAt))

	due, err := r.DueReminders(ctx, 30)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, early, due[0].ID)
	assert.Equal(t, late, due[1].ID)

	due, err = r.DueReminders(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, due, 1)

	require.NoError(t, r.SetLeadRemindAt(ctx, early, nil))
	lead, err := r.GetLead(ctx, early)
	require.NoError(t, err)
	assert.False(t, lead.RemindAt.Valid)
}

func TestUpdateLeadProfile(t *testing.T) {
	ctx := context.Background()
	r := newLeadRepo(t)
	id, err := r.InsertLead(ctx, domain.NewLead{Phone: "+70000000001"})
	require.NoError(t, err)

	require.NoError(t, r.UpdateLeadProfile(ctx, id, domain.LeadProfile{}))
	lead, err := r.GetLead(ctx, id)
	require.NoError(t, err)
	assert.False(t, lead.LastContactAt.Valid)

	p, ok := domain.ProfileField(domain.ProfileCity, "  Казань ")
	require.True(t, ok)
	require.NoError(t, r.UpdateLeadProfile(ctx, id, p))

	name := "Иван"
	require.NoError(t, r.UpdateLeadProfile(ctx, id, domain.LeadProfile{FullName: &name}))

	lead, err = r.GetLead(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Казань", lead.City)
	assert.Equal(t, "Иван", lead.FullName)
	assert.Empty(t, lead.Interest)
	assert.True(t, lead.LastContactAt.Valid)
}
