package reliability

import (
	"database/sql"
	"fmt"
	"sort"

	_ "github.com/mattn/go-sqlite3"
)

// Calibrator tracks how well a model's stated confidence predicts actual
// task success, banding observations into 10%-wide confidence buckets and
// producing an interpolated accuracy curve — a direct port of
// reasoning/calibration.py's ConfidenceCalibrator.
type Calibrator struct {
	db *sql.DB
}

// calibrationRecord is one (confidence, outcome) observation.
type calibrationRecord struct {
	Confidence float64
	Succeeded  bool
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS calibration_observations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	model TEXT NOT NULL,
	confidence REAL NOT NULL,
	succeeded INTEGER NOT NULL,
	recorded_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_calibration_model ON calibration_observations(model);
`

// OpenCalibrator opens (creating if absent) the calibration database at path.
func OpenCalibrator(path string) (*Calibrator, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening calibration store: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing calibration schema: %w", err)
	}
	return &Calibrator{db: db}, nil
}

// Close closes the underlying database.
func (c *Calibrator) Close() error { return c.db.Close() }

// Record stores one observation of a model's stated confidence against
// whether the task it accompanied actually succeeded.
func (c *Calibrator) Record(model string, confidence float64, succeeded bool) error {
	_, err := c.db.Exec(
		`INSERT INTO calibration_observations (model, confidence, succeeded) VALUES (?, ?, ?)`,
		model, confidence, boolToInt(succeeded),
	)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// band returns the lower bound of confidence's 10%-wide bucket, e.g. 0.73 -> 0.7.
func band(confidence float64) float64 {
	b := float64(int(confidence*10)) / 10
	if b < 0 {
		b = 0
	}
	if b > 0.9 {
		b = 0.9
	}
	return b
}

// Curve maps each observed band's lower bound to its observed accuracy.
type Curve map[float64]float64

// BuildCurve computes the accuracy curve for model from its recorded
// observations, one point per populated 10% confidence band.
func (c *Calibrator) BuildCurve(model string) (Curve, error) {
	rows, err := c.db.Query(
		`SELECT confidence, succeeded FROM calibration_observations WHERE model = ?`, model,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type bucket struct {
		total, succeeded int
	}
	buckets := make(map[float64]*bucket)
	for rows.Next() {
		var rec calibrationRecord
		var succeededInt int
		if err := rows.Scan(&rec.Confidence, &succeededInt); err != nil {
			return nil, err
		}
		rec.Succeeded = succeededInt != 0
		b := band(rec.Confidence)
		bk, ok := buckets[b]
		if !ok {
			bk = &bucket{}
			buckets[b] = bk
		}
		bk.total++
		if rec.Succeeded {
			bk.succeeded++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	curve := make(Curve, len(buckets))
	for b, bk := range buckets {
		curve[b] = float64(bk.succeeded) / float64(bk.total)
	}
	return curve, nil
}

// Calibrate maps stated confidence to its curve-adjusted value via linear
// interpolation between the two nearest populated bands. When the curve has
// no observations at all, confidence is returned unchanged.
func (curve Curve) Calibrate(confidence float64) float64 {
	if len(curve) == 0 {
		return confidence
	}
	bands := make([]float64, 0, len(curve))
	for b := range curve {
		bands = append(bands, b)
	}
	sort.Float64s(bands)

	if confidence <= bands[0] {
		return curve[bands[0]]
	}
	if confidence >= bands[len(bands)-1] {
		return curve[bands[len(bands)-1]]
	}
	for i := 0; i < len(bands)-1; i++ {
		lo, hi := bands[i], bands[i+1]
		if confidence >= lo && confidence <= hi {
			loAcc, hiAcc := curve[lo], curve[hi]
			frac := (confidence - lo) / (hi - lo)
			return loAcc + frac*(hiAcc-loAcc)
		}
	}
	return confidence
}

// WeightedError computes the calibration error across a model's recorded
// history: the absolute gap between stated and curve-adjusted confidence,
// weighted by each band's observation count, so sparsely-observed bands
// contribute less noise than densely-observed ones.
func (c *Calibrator) WeightedError(model string) (float64, error) {
	rows, err := c.db.Query(
		`SELECT confidence, succeeded FROM calibration_observations WHERE model = ?`, model,
	)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	curve, err := c.BuildCurve(model)
	if err != nil {
		return 0, err
	}

	var totalWeight, weightedSum float64
	for rows.Next() {
		var confidence float64
		var succeededInt int
		if err := rows.Scan(&confidence, &succeededInt); err != nil {
			return 0, err
		}
		adjusted := curve.Calibrate(confidence)
		gap := confidence - adjusted
		if gap < 0 {
			gap = -gap
		}
		weightedSum += gap
		totalWeight++
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if totalWeight == 0 {
		return 0, nil
	}
	return weightedSum / totalWeight, nil
}
