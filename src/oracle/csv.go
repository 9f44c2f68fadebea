package oracle

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/tradevane/tradevane/src/models"
)

type csvCandleDTO struct {
	Timestamp string  `csv:"time"`
	Open      float64 `csv:"open"`
	High      float64 `csv:"high"`
	Low       float64 `csv:"low"`
	Close     float64 `csv:"close"`
	Volume    float64 `csv:"volume"`
}

func (dto *csvCandleDTO) toModel() (models.Candle, error) {
	timestamp, err := time.Parse(time.RFC3339, dto.Timestamp)
	if err != nil {
		return models.Candle{}, fmt.Errorf("csvCandleDTO.toModel: parse time %q: %w", dto.Timestamp, err)
	}

	return models.Candle{
		Timestamp: timestamp,
		Open:      dto.Open,
		High:      dto.High,
		Low:       dto.Low,
		Close:     dto.Close,
		Volume:    dto.Volume,
	}, nil
}

// CSVBarRepository serves seed bar history from <dir>/<SYMBOL>.csv files.
// Files are parsed once and cached for the process lifetime.
type CSVBarRepository struct {
	dir string

	mu    sync.Mutex
	cache map[string][]models.Candle
}

func NewCSVBarRepository(dir string) *CSVBarRepository {
	return &CSVBarRepository{
		dir:   dir,
		cache: make(map[string][]models.Candle),
	}
}

// Load returns the seed bars for symbol, or found=false when no seed file
// exists. Parse failures are returned as errors, not treated as missing.
func (r *CSVBarRepository) Load(symbol string) ([]models.Candle, bool, error) {
	key := strings.ToUpper(symbol)

	r.mu.Lock()
	defer r.mu.Unlock()

	if bars, found := r.cache[key]; found {
		return bars, true, nil
	}

	filename := filepath.Join(r.dir, fmt.Sprintf("%s.csv", key))
	f, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("CSVBarRepository.Load: open %s: %w", filename, err)
	}
	defer f.Close()

	var dtos []*csvCandleDTO
	if err := gocsv.UnmarshalFile(f, &dtos); err != nil {
		return nil, false, fmt.Errorf("CSVBarRepository.Load: unmarshal %s: %w", filename, err)
	}

	bars := make([]models.Candle, 0, len(dtos))
	for _, dto := range dtos {
		candle, err := dto.toModel()
		if err != nil {
			return nil, false, fmt.Errorf("CSVBarRepository.Load: %w", err)
		}

		bars = append(bars, candle)
	}

	r.cache[key] = bars

	return bars, true, nil
}
