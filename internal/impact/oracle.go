package impact

// SubjectKeyPrefix is the key convention shared with the external
// predictive oracle: files are addressed as "file:<path>".
const SubjectKeyPrefix = "file:"

// Prediction is one predicted consequence from the oracle
type Prediction struct {
	EffectKey string
	Strength  float64
}

// ConsequencePredictor is the optional external oracle. Implementations
// may fail or be absent entirely; the analyzer treats both as a normal
// degraded mode, never as a fatal error.
type ConsequencePredictor interface {
	PredictConsequence(subjectKey string) ([]Prediction, error)
}

// NoopPredictor is the default predictor: it predicts nothing, so the
// analyzer's core logic and tests never depend on a real oracle.
type NoopPredictor struct{}

// PredictConsequence returns no predictions
func (NoopPredictor) PredictConsequence(subjectKey string) ([]Prediction, error) {
	return nil, nil
}
