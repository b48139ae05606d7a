package scoring

import (
	"fmt"
	"math"
)

const bandBoundaryTolerance = 1e-9

// ThresholdBand maps the score interval ending at UpTo (exclusive, except
// for the last band which includes 1.0) onto a risk level and action.
type ThresholdBand struct {
	Level  RiskLevel         `json:"level" yaml:"level"`
	Action EnforcementAction `json:"action" yaml:"action"`
	UpTo   float64           `json:"up_to" yaml:"up_to"`
}

func DefaultThresholdBands() []ThresholdBand {
	return []ThresholdBand{
		{Level: RiskLevelLow, Action: ActionAllow, UpTo: 0.30},
		{Level: RiskLevelMedium, Action: ActionChallenge, UpTo: 0.60},
		{Level: RiskLevelHigh, Action: ActionStepUp, UpTo: 0.80},
		{Level: RiskLevelCritical, Action: ActionBlock, UpTo: 1.0},
	}
}

// Classifier maps a combined score onto a risk level and enforcement
// action. Bands are validated once at construction.
type Classifier struct {
	bands []ThresholdBand
}

func NewClassifier(bands []ThresholdBand) (*Classifier, error) {
	if len(bands) == 0 {
		return nil, fmt.Errorf("at least one threshold band is required")
	}

	prev := 0.0
	seenLevels := map[RiskLevel]bool{}
	for i, band := range bands {
		if !isValidRiskLevel(band.Level) {
			return nil, fmt.Errorf("threshold band %d has unknown risk level '%s'", i, band.Level)
		}
		if !isValidAction(band.Action) {
			return nil, fmt.Errorf("threshold band %d has unknown action '%s'", i, band.Action)
		}
		if seenLevels[band.Level] {
			return nil, fmt.Errorf("risk level '%s' appears in more than one threshold band", band.Level)
		}
		seenLevels[band.Level] = true

		if i > 0 {
			if levelSeverity[band.Level] < levelSeverity[bands[i-1].Level] {
				return nil, fmt.Errorf("threshold band %d risk level '%s' is less severe than the preceding '%s'", i, band.Level, bands[i-1].Level)
			}
			if actionSeverity[band.Action] < actionSeverity[bands[i-1].Action] {
				return nil, fmt.Errorf("threshold band %d action '%s' is less strict than the preceding '%s'", i, band.Action, bands[i-1].Action)
			}
		}

		if math.IsNaN(band.UpTo) || band.UpTo <= prev {
			return nil, fmt.Errorf("threshold band %d upper bound %f must be greater than %f", i, band.UpTo, prev)
		}
		if band.UpTo > 1.0 {
			return nil, fmt.Errorf("threshold band %d upper bound %f exceeds 1.0", i, band.UpTo)
		}
		prev = band.UpTo
	}

	if math.Abs(prev-1.0) > bandBoundaryTolerance {
		return nil, fmt.Errorf("threshold bands must cover scores up to 1.0, last bound is %f", prev)
	}

	copied := make([]ThresholdBand, len(bands))
	copy(copied, bands)
	return &Classifier{bands: copied}, nil
}

func (c *Classifier) Bands() []ThresholdBand {
	bands := make([]ThresholdBand, len(c.bands))
	copy(bands, c.bands)
	return bands
}

// Classify returns the risk level and action for a combined score.
// Scores are clamped into [0,1] first, so the mapping is total.
func (c *Classifier) Classify(total float64) (RiskLevel, EnforcementAction) {
	total = clampRisk(total)
	for _, band := range c.bands {
		if total < band.UpTo {
			return band.Level, band.Action
		}
	}
	last := c.bands[len(c.bands)-1]
	return last.Level, last.Action
}

func isValidRiskLevel(level RiskLevel) bool {
	switch level {
	case RiskLevelLow, RiskLevelMedium, RiskLevelHigh, RiskLevelCritical:
		return true
	}
	return false
}

func isValidAction(action EnforcementAction) bool {
	switch action {
	case ActionAllow, ActionChallenge, ActionStepUp, ActionBlock:
		return true
	}
	return false
}
