package game

// Judgement is one timing tier. Tiers are ordered best to worst and a press
// lands in the first tier whose window covers the absolute offset.
type Judgement struct {
	Name  string `yaml:"name"`
	Ms    int64  `yaml:"ms"`
	Value int64  `yaml:"value"`
}
