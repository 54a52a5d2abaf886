package reporting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/kurban/internal/domain/models"
	"github.com/mamadbah2/kurban/internal/repository/memory"
)

type fakeSheet struct {
	replaced map[string][][]interface{}
	appended map[string][][]interface{}
	err      error
}

func newFakeSheet() *fakeSheet {
	return &fakeSheet{replaced: map[string][][]interface{}{}, appended: map[string][][]interface{}{}}
}

func (f *fakeSheet) ReplaceRange(_ context.Context, sheetRange string, rows [][]interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.replaced[sheetRange] = rows
	return nil
}

func (f *fakeSheet) AppendRow(_ context.Context, sheetRange string, values []interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.appended[sheetRange] = append(f.appended[sheetRange], values)
	return nil
}

func seed(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore(nil)

	large, err := store.Create(ctx, models.AnimalInput{
		Type: models.AnimalTypeLarge, AnimalNumber: 2, TotalPrice: 70000, TotalShares: 7, DeliveryType: models.DeliveryShared,
	})
	require.NoError(t, err)
	require.NoError(t, store.UpdateShares(ctx, large, 1, []models.Share{
		{ID: 1, CustomerName: "Ali", CustomerPhone: "5321234567", PaidAmount: 10000},
		{ID: 4, CustomerName: "Ayşe", CustomerPhone: "5329876543", PaidAmount: 2500, HasProxy: true},
	}))

	_, err = store.Create(ctx, models.AnimalInput{
		Type: models.AnimalTypeSmall, AnimalNumber: 1, TotalPrice: 9000, TotalShares: 1, DeliveryType: models.DeliveryOnFoot,
	})
	require.NoError(t, err)
	return store
}

var istanbul = time.FixedZone("TRT", 3*60*60)

func newTestService(store *memory.Store, sheet *fakeSheet) *Service {
	var svc *Service
	if sheet == nil {
		svc = NewService(store, store, nil, "Hayvanlar!A1", istanbul, nil)
	} else {
		svc = NewService(store, store, sheet, "Hayvanlar!A1", istanbul, nil)
	}
	svc.now = func() time.Time { return time.Date(2026, 6, 15, 22, 30, 0, 0, time.UTC) }
	return svc
}

func TestOverview(t *testing.T) {
	svc := newTestService(seed(t), nil)

	ov, err := svc.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, ov.Animals)
	assert.Equal(t, 5, ov.Stats.Large.RemainingShares)
	assert.Equal(t, 20000.0, ov.Ledger.Expected)
	assert.Equal(t, 12500.0, ov.Ledger.Paid)
	assert.Equal(t, 7500.0, ov.Ledger.Outstanding)
	assert.Equal(t, 1, ov.Ledger.UnpaidBuyers)
}

func TestDailySummary(t *testing.T) {
	svc := newTestService(seed(t), nil)

	text, err := svc.DailySummary(context.Background())
	require.NoError(t, err)
	assert.Contains(t, text, "Kurban özeti (2026-06-16)", "date is taken in the configured zone")
	assert.Contains(t, text, "Büyükbaş: 0 satıldı, 1 satışta, 5 boş hisse")
	assert.Contains(t, text, "Küçükbaş: 0 satıldı, 1 satışta, 1 boş hisse")
	assert.Contains(t, text, "kalan borç ₺7.500 (1 alıcı)")
}

func TestDailySummaryEmpty(t *testing.T) {
	svc := newTestService(memory.NewStore(nil), nil)

	text, err := svc.DailySummary(context.Background())
	require.NoError(t, err)
	assert.Contains(t, text, "Henüz kayıtlı hayvan yok.")
}

func TestSaveSnapshot(t *testing.T) {
	store := seed(t)
	sheet := newFakeSheet()
	svc := newTestService(store, sheet)

	report, err := svc.SaveSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 16, report.Date.Day())

	saved := store.DailyReports()
	require.Len(t, saved, 1)
	assert.Equal(t, 2, saved[0].Animals)
	require.Len(t, sheet.appended[historyRange], 1)
	assert.Equal(t, "2026-06-16", sheet.appended[historyRange][0][0])
}

func TestSaveSnapshotKeepsStoreCopyWhenSheetFails(t *testing.T) {
	store := seed(t)
	sheet := newFakeSheet()
	sheet.err = errors.New("quota exceeded")
	svc := newTestService(store, sheet)

	_, err := svc.SaveSnapshot(context.Background())
	assert.ErrorIs(t, err, sheet.err)
	assert.Len(t, store.DailyReports(), 1)
}

func TestExportToSheet(t *testing.T) {
	sheet := newFakeSheet()
	svc := newTestService(seed(t), sheet)
	require.True(t, svc.ExportEnabled())

	rows, err := svc.ExportToSheet(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8, rows, "seven large slots and one small")

	written := sheet.replaced["Hayvanlar!A1"]
	require.Len(t, written, 9)
	assert.Equal(t, exportHeader, written[0])
	assert.Equal(t, "Büyükbaş", written[1][0])
	assert.Equal(t, "Ali", written[1][8])
	assert.Equal(t, "Evet", written[4][11])
	assert.Equal(t, 7500.0, written[4][13])
	assert.Equal(t, "", written[2][8], "unsold slot has no buyer")
	assert.Equal(t, "Küçükbaş", written[8][0])
}

func TestExportDisabled(t *testing.T) {
	svc := newTestService(seed(t), nil)
	assert.False(t, svc.ExportEnabled())

	_, err := svc.ExportToSheet(context.Background())
	assert.Error(t, err)
}
