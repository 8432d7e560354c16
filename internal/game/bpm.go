package game

// BPM is a tempo change in an imported chart.
type BPM struct {
	StartingBeat float64
	Value        float64
}
