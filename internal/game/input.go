package game

// Input is one lane edge as it reached judgement.
type Input struct {
	Lane int   `json:"lane"`
	Down bool  `json:"down"`
	Ms   int64 `json:"ms"`
}
