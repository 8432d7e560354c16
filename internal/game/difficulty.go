package game

type Difficulty struct {
	Name  string
	Level string
	Lanes int
}

// NKeyMap maps StepMania chart types to their lane counts.
var NKeyMap = map[string]int{
	"dance-single": 4,
	"dance-solo":   6,
	"dance-double": 8,
}
