package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/glebarez/sqlite"
	mechanicdomain "github.com/smallbiznis/bengkel/internal/mechanic/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bwmarrin/snowflake"
)

var testDBSeq int64

func newTestService(t *testing.T) (mechanicdomain.Service, *snowflake.Node) {
	t.Helper()

	dsn := fmt.Sprintf("file:mechanic%d?mode=memory&cache=shared", atomic.AddInt64(&testDBSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&mechanicdomain.Mechanic{}))

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	return NewService(Params{DB: db, Log: zap.NewNop(), GenID: node}), node
}

func TestCreateTrimsAndActivates(t *testing.T) {
	svc, _ := newTestService(t)

	mechanic, err := svc.Create(context.Background(), mechanicdomain.CreateMechanicRequest{
		Name:      "  Budi Santoso ",
		Phone:     " 0812-3456-7890 ",
		Specialty: "transmission",
	})
	require.NoError(t, err)
	assert.Equal(t, "Budi Santoso", mechanic.Name)
	assert.Equal(t, "0812-3456-7890", mechanic.Phone)
	assert.True(t, mechanic.Active)
}

func TestCreateRejectsBlankName(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), mechanicdomain.CreateMechanicRequest{Name: "   "})
	assert.ErrorIs(t, err, mechanicdomain.ErrInvalidName)
}

func TestGetMissing(t *testing.T) {
	svc, node := newTestService(t)

	_, err := svc.Get(context.Background(), node.Generate())
	assert.ErrorIs(t, err, mechanicdomain.ErrMechanicNotFound)
}

func TestDeactivateMissing(t *testing.T) {
	svc, node := newTestService(t)

	err := svc.Deactivate(context.Background(), node.Generate())
	assert.ErrorIs(t, err, mechanicdomain.ErrMechanicNotFound)
}

func TestListActiveMechanicIDsExcludesDeactivated(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	budi, err := svc.Create(ctx, mechanicdomain.CreateMechanicRequest{Name: "Budi"})
	require.NoError(t, err)
	sari, err := svc.Create(ctx, mechanicdomain.CreateMechanicRequest{Name: "Sari"})
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(ctx, budi.ID))

	ids, err := svc.ListActiveMechanicIDs(ctx)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, sari.ID, ids[0])
}

func TestListActiveOnly(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	budi, err := svc.Create(ctx, mechanicdomain.CreateMechanicRequest{Name: "Budi"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, mechanicdomain.CreateMechanicRequest{Name: "Sari"})
	require.NoError(t, err)
	require.NoError(t, svc.Deactivate(ctx, budi.ID))

	all, err := svc.List(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := svc.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Sari", active[0].Name)
}
