package scoring

import (
	"fmt"
	"math"
)

const weightSumTolerance = 1e-9

// Weights defines how much each signal category contributes to the total
// risk score. The five values must sum to exactly 1.0.
type Weights struct {
	Bot         float64 `json:"bot" yaml:"bot"`
	Address     float64 `json:"address" yaml:"address"`
	EmailDomain float64 `json:"email_domain" yaml:"email_domain"`
	Behavioral  float64 `json:"behavioral" yaml:"behavioral"`
	Device      float64 `json:"device" yaml:"device"`
}

func DefaultWeights() Weights {
	return Weights{
		Bot:         0.30,
		Address:     0.25,
		EmailDomain: 0.20,
		Behavioral:  0.15,
		Device:      0.10,
	}
}

func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		SIGNAL_BOT:          w.Bot,
		SIGNAL_ADDRESS:      w.Address,
		SIGNAL_EMAIL_DOMAIN: w.EmailDomain,
		SIGNAL_BEHAVIORAL:   w.Behavioral,
		SIGNAL_DEVICE:       w.Device,
	} {
		if v < 0 || v > 1 || math.IsNaN(v) {
			return fmt.Errorf("signal weight for '%s' must be between 0 and 1, got %f", name, v)
		}
	}

	sum := w.Bot + w.Address + w.EmailDomain + w.Behavioral + w.Device
	if math.Abs(sum-1.0) > weightSumTolerance {
		return fmt.Errorf("signal weights must sum to 1.0, got %f", sum)
	}
	return nil
}

// Combiner folds a SignalSet into one total score. It is a pure value;
// the same SignalSet always yields the same RiskScore.
type Combiner struct {
	weights Weights
}

func NewCombiner(weights Weights) (*Combiner, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &Combiner{weights: weights}, nil
}

func (c *Combiner) Weights() Weights {
	return c.weights
}

func (c *Combiner) Combine(signals SignalSet) RiskScore {
	subScores := map[string]float64{
		SIGNAL_BOT:          clampRisk(signals.Bot.Risk),
		SIGNAL_ADDRESS:      clampRisk(signals.Address.Risk),
		SIGNAL_EMAIL_DOMAIN: clampRisk(signals.EmailDomain.Risk),
		SIGNAL_BEHAVIORAL:   clampRisk(signals.Behavioral.Risk),
		SIGNAL_DEVICE:       clampRisk(signals.Device.Risk),
	}

	contributions := map[string]float64{
		SIGNAL_BOT:          round3(c.weights.Bot * subScores[SIGNAL_BOT]),
		SIGNAL_ADDRESS:      round3(c.weights.Address * subScores[SIGNAL_ADDRESS]),
		SIGNAL_EMAIL_DOMAIN: round3(c.weights.EmailDomain * subScores[SIGNAL_EMAIL_DOMAIN]),
		SIGNAL_BEHAVIORAL:   round3(c.weights.Behavioral * subScores[SIGNAL_BEHAVIORAL]),
		SIGNAL_DEVICE:       round3(c.weights.Device * subScores[SIGNAL_DEVICE]),
	}

	// Summed in a fixed order so identical inputs always produce the
	// identical float result.
	total := c.weights.Bot*subScores[SIGNAL_BOT] +
		c.weights.Address*subScores[SIGNAL_ADDRESS] +
		c.weights.EmailDomain*subScores[SIGNAL_EMAIL_DOMAIN] +
		c.weights.Behavioral*subScores[SIGNAL_BEHAVIORAL] +
		c.weights.Device*subScores[SIGNAL_DEVICE]

	return RiskScore{
		Total:           round3(clampRisk(total)),
		SubScores:       subScores,
		Contributions:   contributions,
		DegradedSignals: signals.DegradedSignals(),
	}
}

func clampRisk(v float64) float64 {
	if math.IsNaN(v) {
		return NEUTRAL_SIGNAL_RISK
	}
	return math.Min(1.0, math.Max(0.0, v))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
