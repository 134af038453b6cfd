package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-dashboard/testutil"
	"github.com/yeremiapane/restaurant-dashboard/utils"
)

func TestTableService(t *testing.T) {
	db := testutil.NewDB(t)
	tenant := testutil.CreateTenant(t, db, "bistro")
	other := testutil.CreateTenant(t, db, "other")
	publisher := &fakePublisher{}
	svc := NewTableService(db, publisher)
	ctx := context.Background()

	t1, err := svc.Create(ctx, tenant.ID, TableInput{Name: " T1 ", Capacity: 4, Area: "Patio"})
	require.NoError(t, err)
	assert.Equal(t, "T1", t1.Name)
	assert.True(t, t1.Active)

	_, err = svc.Create(ctx, tenant.ID, TableInput{Name: "t1", Capacity: 2})
	assert.True(t, utils.HasCode(err, utils.CodeValidation), "names are unique per tenant")
	_, err = svc.Create(ctx, other.ID, TableInput{Name: "T1", Capacity: 2})
	assert.NoError(t, err)

	t2, err := svc.Create(ctx, tenant.ID, TableInput{Name: "T2", Capacity: 2, Active: boolPtr(false)})
	require.NoError(t, err)

	active, err := svc.List(ctx, tenant.ID, false)
	require.NoError(t, err)
	require.Len(t, active, 1)
	all, err := svc.List(ctx, tenant.ID, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	updated, err := svc.Update(ctx, tenant.ID, t2.ID, TableInput{Name: "T2", Capacity: 6, Active: boolPtr(true)})
	require.NoError(t, err)
	assert.Equal(t, 6, updated.Capacity)
	assert.True(t, updated.Active)

	_, err = svc.Update(ctx, tenant.ID, t2.ID, TableInput{Name: "T1", Capacity: 6})
	assert.True(t, utils.HasCode(err, utils.CodeValidation))

	deactivated, err := svc.Deactivate(ctx, tenant.ID, t1.ID)
	require.NoError(t, err)
	assert.False(t, deactivated.Active)

	_, err = svc.Deactivate(ctx, other.ID, t1.ID)
	assert.True(t, utils.HasCode(err, utils.CodeNotFound), "tables of other tenants are invisible")

	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	assert.Len(t, publisher.messages, 5)
	assert.Equal(t, EventTableUpdated, publisher.messages[0].event)
}
