package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/kurban/internal/config"
	"github.com/mamadbah2/kurban/internal/domain/models"
)

type fakeReports struct {
	summary   string
	snapshots int
	exports   int
	export    bool
	err       error
}

func (f *fakeReports) DailySummary(context.Context) (string, error) { return f.summary, f.err }

func (f *fakeReports) SaveSnapshot(context.Context) (models.DailyReport, error) {
	f.snapshots++
	return models.DailyReport{}, f.err
}

func (f *fakeReports) ExportToSheet(context.Context) (int, error) {
	f.exports++
	return 3, f.err
}

func (f *fakeReports) ExportEnabled() bool { return f.export }

type fakeMessaging struct {
	enabled bool
	sent    []models.OutboundMessageRequest
}

func (f *fakeMessaging) BuyerMessage(models.Animal, int, bool) (models.BuyerMessage, error) {
	return models.BuyerMessage{}, nil
}

func (f *fakeMessaging) NotifyBuyer(context.Context, models.Animal, int, bool) (models.BuyerMessage, error) {
	return models.BuyerMessage{}, nil
}

func (f *fakeMessaging) SendOutbound(_ context.Context, req models.OutboundMessageRequest) error {
	f.sent = append(f.sent, req)
	return nil
}

func (f *fakeMessaging) Enabled() bool { return f.enabled }

func testConfig() config.Config {
	return config.Config{
		WhatsApp: config.WhatsAppConfig{CountryCode: "90", ManagerNumber: "532 111 22 33"},
		Reporting: config.ReportingConfig{
			CronSchedule:       "0 20 * * *",
			ExportCronSchedule: "*/30 * * * *",
			Timezone:           "UTC",
		},
	}
}

func TestDailyReportSendsSummaryToManager(t *testing.T) {
	reports := &fakeReports{summary: "Kurban özeti"}
	messaging := &fakeMessaging{enabled: true}
	s, err := NewScheduler(testConfig(), reports, messaging, nil)
	require.NoError(t, err)

	s.runDailyReport()

	assert.Equal(t, 1, reports.snapshots)
	require.Len(t, messaging.sent, 1)
	assert.Equal(t, "905321112233", messaging.sent[0].To)
	assert.Equal(t, "Kurban özeti", messaging.sent[0].Message)
}

func TestDailyReportWithoutSending(t *testing.T) {
	reports := &fakeReports{summary: "Kurban özeti"}
	messaging := &fakeMessaging{enabled: false}
	s, err := NewScheduler(testConfig(), reports, messaging, nil)
	require.NoError(t, err)

	s.runDailyReport()

	assert.Equal(t, 1, reports.snapshots, "snapshot is saved even when nothing is sent")
	assert.Empty(t, messaging.sent)
}

func TestDailyReportSummaryFailure(t *testing.T) {
	reports := &fakeReports{err: errors.New("store down")}
	messaging := &fakeMessaging{enabled: true}
	s, err := NewScheduler(testConfig(), reports, messaging, nil)
	require.NoError(t, err)

	s.runDailyReport()
	assert.Empty(t, messaging.sent)
}

func TestStartRegistersJobs(t *testing.T) {
	reports := &fakeReports{export: true}
	s, err := NewScheduler(testConfig(), reports, &fakeMessaging{}, nil)
	require.NoError(t, err)

	require.NoError(t, s.Start())
	assert.Len(t, s.cron.Entries(), 2)
	s.Stop()

	reports.export = false
	s, err = NewScheduler(testConfig(), reports, &fakeMessaging{}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Start())
	assert.Len(t, s.cron.Entries(), 1, "export job needs a sheet")
	s.Stop()
}

func TestStartRejectsBadSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.Reporting.CronSchedule = "every evening"
	s, err := NewScheduler(cfg, &fakeReports{}, &fakeMessaging{}, nil)
	require.NoError(t, err)
	assert.Error(t, s.Start())
}

func TestNewSchedulerRejectsUnknownZone(t *testing.T) {
	cfg := testConfig()
	cfg.Reporting.Timezone = "Mars/Olympus"
	_, err := NewScheduler(cfg, &fakeReports{}, &fakeMessaging{}, nil)
	assert.Error(t, err)
}
