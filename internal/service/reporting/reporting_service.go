package reporting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/kurban/internal/domain/models"
	repo "github.com/mamadbah2/kurban/internal/repository/sheets"
)

const (
	dateLayout   = "2006-01-02"
	historyRange = "Özet!A:H"
)

// AnimalReader loads the full inventory.
type AnimalReader interface {
	FindAll(ctx context.Context) ([]models.Animal, error)
}

// ReportSaver persists daily snapshots.
type ReportSaver interface {
	SaveDailyReport(ctx context.Context, report models.DailyReport) error
}

// Overview is the dashboard payload: stats plus money totals.
type Overview struct {
	Animals int           `json:"animals"`
	Stats   models.Stats  `json:"stats"`
	Ledger  models.Ledger `json:"ledger"`
}

// Service produces summaries and exports of the inventory.
type Service struct {
	animals     AnimalReader
	saver       ReportSaver
	sheets      repo.Repository
	exportRange string
	location    *time.Location
	now         func() time.Time
	logger      *zap.Logger
}

// NewService wires a new reporting service instance. saver and sheets may be nil.
func NewService(animals AnimalReader, saver ReportSaver, sheets repo.Repository, exportRange string, location *time.Location, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.UTC
	}
	return &Service{
		animals:     animals,
		saver:       saver,
		sheets:      sheets,
		exportRange: exportRange,
		location:    location,
		now:         time.Now,
		logger:      logger,
	}
}

// Overview computes the current stats and ledger.
func (s *Service) Overview(ctx context.Context) (Overview, error) {
	animals, err := s.animals.FindAll(ctx)
	if err != nil {
		return Overview{}, fmt.Errorf("load animals: %w", err)
	}
	return overviewOf(animals), nil
}

func overviewOf(animals []models.Animal) Overview {
	return Overview{
		Animals: len(animals),
		Stats:   models.ComputeStats(animals),
		Ledger:  models.ComputeLedger(animals),
	}
}

// DailySummary renders the overview as a message for the sales manager.
func (s *Service) DailySummary(ctx context.Context) (string, error) {
	ov, err := s.Overview(ctx)
	if err != nil {
		return "", err
	}
	return FormatSummary(ov, s.now().In(s.location)), nil
}

// FormatSummary writes the overview as a short WhatsApp-friendly text.
func FormatSummary(ov Overview, day time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Kurban özeti (%s)\n", day.Format(dateLayout))
	if ov.Animals == 0 {
		b.WriteString("Henüz kayıtlı hayvan yok.")
		return b.String()
	}

	writeCategory := func(label string, c models.CategoryStats) {
		fmt.Fprintf(&b, "%s: %d satıldı, %d satışta, %d boş hisse\n", label, c.Sold, c.Remaining, c.RemainingShares)
	}
	writeCategory(models.AnimalTypeLarge.Label(), ov.Stats.Large)
	writeCategory(models.AnimalTypeSmall.Label(), ov.Stats.Small)
	fmt.Fprintf(&b, "Toplam: %d hayvan, %d hisse satışta\n", ov.Stats.Total.RemainingAnimals, ov.Stats.Total.RemainingShares)
	fmt.Fprintf(&b, "Tahsilat: %s / %s, kalan borç %s (%d alıcı)",
		models.FormatCurrency(ov.Ledger.Paid),
		models.FormatCurrency(ov.Ledger.Expected),
		models.FormatCurrency(ov.Ledger.Outstanding),
		ov.Ledger.UnpaidBuyers)
	return b.String()
}

// SaveSnapshot stores today's overview in the report store and appends it to
// the sheet history when those are configured.
func (s *Service) SaveSnapshot(ctx context.Context) (models.DailyReport, error) {
	animals, err := s.animals.FindAll(ctx)
	if err != nil {
		return models.DailyReport{}, fmt.Errorf("load animals: %w", err)
	}

	now := s.now()
	local := now.In(s.location)
	ov := overviewOf(animals)
	report := models.DailyReport{
		Date:      time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.location),
		Animals:   ov.Animals,
		Stats:     ov.Stats,
		Ledger:    ov.Ledger,
		CreatedAt: now.UTC(),
	}

	var errs []error
	if s.saver != nil {
		if err := s.saver.SaveDailyReport(ctx, report); err != nil {
			errs = append(errs, err)
		}
	}
	if s.sheets != nil {
		row := []interface{}{
			local.Format(dateLayout),
			ov.Animals,
			ov.Stats.Total.RemainingAnimals,
			ov.Stats.Total.RemainingShares,
			ov.Ledger.Expected,
			ov.Ledger.Paid,
			ov.Ledger.Outstanding,
			ov.Ledger.UnpaidBuyers,
		}
		if err := s.sheets.AppendRow(ctx, historyRange, row); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return report, fmt.Errorf("save daily snapshot: %w", err)
	}
	s.logger.Info("daily snapshot saved", zap.Int("animals", ov.Animals), zap.Float64("outstanding", ov.Ledger.Outstanding))
	return report, nil
}

var exportHeader = []interface{}{
	"Tür", "No", "Tanım", "Teslim", "Sıra", "Kesim Saati", "Hisse Fiyatı",
	"Hisse", "Alıcı", "Telefon", "Telefon 2", "Vekalet", "Ödenen", "Kalan", "Teslim Alan", "Ödeme Şekli",
}

// ExportRows flattens the inventory into one row per share slot, large
// animals first, then by animal number.
func ExportRows(animals []models.Animal) [][]interface{} {
	sorted := append([]models.Animal(nil), animals...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Type != sorted[j].Type {
			return sorted[i].Type == models.AnimalTypeLarge
		}
		return sorted[i].AnimalNumber < sorted[j].AnimalNumber
	})

	rows := [][]interface{}{exportHeader}
	for _, a := range sorted {
		price := a.SharePrice()
		for _, slot := range a.Slots() {
			row := []interface{}{
				a.Type.Label(), a.AnimalNumber, a.Name, string(a.DeliveryType), a.QueueNo, a.SlaughterTime, price,
				slot.ID,
			}
			if slot.Share == nil {
				row = append(row, "", "", "", "", 0, price, "", "")
			} else {
				sh := slot.Share
				proxy := "Hayır"
				if sh.HasProxy {
					proxy = "Evet"
				}
				row = append(row, sh.CustomerName, sh.CustomerPhone, sh.CustomerPhone2, proxy,
					sh.PaidAmount, a.RemainingDebt(*sh), sh.PaymentReceiver, sh.PaymentMethod)
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// ExportToSheet rewrites the export tab with the current inventory and
// returns the number of share rows written.
func (s *Service) ExportToSheet(ctx context.Context) (int, error) {
	if s.sheets == nil {
		return 0, errors.New("sheet export is not configured")
	}

	animals, err := s.animals.FindAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load animals: %w", err)
	}

	rows := ExportRows(animals)
	if err := s.sheets.ReplaceRange(ctx, s.exportRange, rows); err != nil {
		return 0, err
	}

	s.logger.Info("inventory exported", zap.Int("rows", len(rows)-1))
	return len(rows) - 1, nil
}

// ExportEnabled reports whether a sheet is configured.
func (s *Service) ExportEnabled() bool {
	return s.sheets != nil
}
