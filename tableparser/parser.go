package tableparser

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/giygas/opioid-maps/describe"
	"github.com/giygas/opioid-maps/interfaces"
	"github.com/giygas/opioid-maps/logging"
	"github.com/giygas/opioid-maps/tableparser/entities"
	"github.com/google/uuid"
)

// Compile-time check to ensure Preparer implements the Preparer interface
var _ interfaces.Preparer = (*Preparer)(nil)

// Preparer runs catalog datasets through load, binarize, drop and order
type Preparer struct {
	dataDir     string
	validator   interfaces.DataValidator
	downloader  *Downloader
	alwaysFetch bool
	now         func() time.Time
}

// PreparerOption configures a Preparer
type PreparerOption func(*Preparer)

// WithDownloader lets the preparer fetch datasets that declare a source URL.
// With always set, the file is fetched on every preparation, otherwise only when absent.
func WithDownloader(d *Downloader, always bool) PreparerOption {
	return func(p *Preparer) {
		p.downloader = d
		p.alwaysFetch = always
	}
}

// NewPreparer creates a preparer reading dataset files relative to dataDir
func NewPreparer(dataDir string, validator interfaces.DataValidator, opts ...PreparerOption) *Preparer {
	p := &Preparer{
		dataDir:   dataDir,
		validator: validator,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Path returns where the file of a dataset is read from
func (p *Preparer) Path(dataset entities.Dataset) string {
	if filepath.IsAbs(dataset.File) {
		return dataset.File
	}
	return filepath.Join(p.dataDir, dataset.File)
}

func (p *Preparer) fetchIfNeeded(ctx context.Context, dataset entities.Dataset) error {
	if dataset.SourceURL == "" || p.downloader == nil {
		return nil
	}
	if filepath.IsAbs(dataset.File) {
		return fmt.Errorf("cannot download into absolute path %s", dataset.File)
	}

	if !p.alwaysFetch {
		if _, err := os.Stat(p.Path(dataset)); err == nil {
			return nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to stat dataset file: %w", err)
		}
	}

	_, err := p.downloader.Download(ctx, dataset.SourceURL, dataset.File)
	return err
}

// Prepare loads a dataset file and returns its prepared records.
// Any load, schema or type error aborts the preparation.
func (p *Preparer) Prepare(ctx context.Context, dataset entities.Dataset) (*entities.PreparedDataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := p.fetchIfNeeded(ctx, dataset); err != nil {
		return nil, fmt.Errorf("dataset %s: %w", dataset.Name, err)
	}

	source, err := Load(p.Path(dataset))
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", dataset.Name, err)
	}

	if err := source.RequireColumns(dataset.Columns.Required()...); err != nil {
		return nil, fmt.Errorf("dataset %s: %w", dataset.Name, err)
	}

	binarized, err := BinarizeTier(source, dataset.Columns.Tier, WithTierCount(dataset.TierCount))
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", dataset.Name, err)
	}

	complete, incomplete := SplitIncomplete(binarized)

	ordered, err := OrderByTier(complete, dataset.Columns.Tier)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", dataset.Name, err)
	}

	records, err := ToCountryRecords(ordered, dataset.Columns)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", dataset.Name, err)
	}

	dropped := droppedRows(incomplete, dataset.Columns.Country)
	if len(dropped) > 0 {
		logging.Info("Rows with missing values dropped",
			"dataset", dataset.Name,
			"dropped", len(dropped),
			"kept", len(records))
	}

	var report *entities.DataQualityReport
	if p.validator != nil {
		report = p.validator.ReportDataQuality(dataset, records, dropped)
	} else {
		report = &entities.DataQualityReport{DroppedRows: dropped}
	}

	return &entities.PreparedDataset{
		Dataset:    dataset,
		Version:    uuid.NewString(),
		PreparedAt: p.now(),
		SourceRows: source.Len(),
		Records:    records,
		Summary:    describe.Summarize(source),
		Quality:    report,
	}, nil
}

// PrepareAll prepares every dataset. A failure of one dataset does not stop the others.
func (p *Preparer) PrepareAll(ctx context.Context, datasets []entities.Dataset) (map[string]*entities.PreparedDataset, map[string]error) {
	prepared := make(map[string]*entities.PreparedDataset, len(datasets))
	failures := make(map[string]error)

	for _, ds := range datasets {
		result, err := p.Prepare(ctx, ds)
		if err != nil {
			failures[ds.Name] = err
			continue
		}
		prepared[ds.Name] = result
	}

	return prepared, failures
}

func droppedRows(incomplete *Table, countryColumn string) []entities.DroppedRow {
	dropped := make([]entities.DroppedRow, 0, incomplete.Len())
	for i := 0; i < incomplete.Len(); i++ {
		row := entities.DroppedRow{
			Line:           incomplete.Line(i),
			MissingColumns: incomplete.MissingColumns(i),
		}
		if c, err := incomplete.Cell(i, countryColumn); err == nil && !c.Missing {
			row.Country = c.Value
		}
		dropped = append(dropped, row)
	}
	return dropped
}
