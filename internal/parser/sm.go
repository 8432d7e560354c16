package parser

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"git.lost.host/meutraa/vbeat/internal/game"
)

// SMParser imports StepMania .sm files. Every supported chart type becomes
// one chart, columns map to lanes and mines are skipped. Charts with more
// columns than the configured lanes are left out and listed in the report.
type SMParser struct {
	opts Options
}

func NewSMParser(opts Options) *SMParser {
	if opts.Lanes <= 0 {
		opts.Lanes = 7
	}
	if nil == opts.Logger {
		opts.Logger = slog.Default()
	}
	return &SMParser{opts: opts}
}

type smDifficulty struct {
	game.Difficulty
	section string
}

func (p *SMParser) getSecondsPerNote(rates []game.BPM, currentBeat float64, bpn float64) float64 {
	sel := 0.0
	for _, bpm := range rates {
		if currentBeat >= bpm.StartingBeat {
			sel = bpm.Value
		} else {
			break
		}
	}
	if sel <= 0 {
		return 0
	}
	return bpn * 60.0 / sel
}

// 0 – No note
// 1 – Normal note
// 2 – Hold head
// 3 – Hold/Roll tail
// 4 – Roll head
// M – Mine (or other negative note)
// K – Automatic keysound
// L – Lift note
// F – Fake note

func (p *SMParser) Parse(file string) ([]*game.Chart, error) {
	f, err := os.Open(file)
	if nil != err {
		return nil, fmt.Errorf("unable to read chart %s: %w", file, err)
	}
	defer f.Close()
	charts, report, err := p.Decode(f)
	if nil != err {
		return nil, fmt.Errorf("unable to parse chart %s: %w", file, err)
	}
	report.Log(p.opts.Logger, file)
	return charts, nil
}

// Decode reads every chart of a .sm file.
func (p *SMParser) Decode(r io.Reader) ([]*game.Chart, *Report, error) {
	data, err := io.ReadAll(r)
	if nil != err {
		return nil, nil, err
	}
	return p.parse(string(data))
}

func (p *SMParser) parse(data string) ([]*game.Chart, *Report, error) {
	report := &Report{}
	str := strings.ReplaceAll(data, "\r", "")
	sections := strings.Split(str, "#NOTES:")
	meta := sections[0]
	difficulties := []smDifficulty{}
	for _, section := range sections[1:] {
		lines := strings.SplitN(section, "\n", 7)
		if len(lines) < 7 {
			continue
		}
		chartType := strings.TrimSuffix(strings.TrimSpace(lines[1]), ":")
		nKeys, ok := game.NKeyMap[chartType]
		if !ok {
			continue
		}
		name := strings.TrimSuffix(strings.TrimSpace(lines[3]), ":")
		if nKeys > p.opts.Lanes {
			report.coerce(-1, name, fmt.Sprintf("%s has %d lanes, more than the %d configured, skipped", chartType, nKeys, p.opts.Lanes))
			continue
		}
		difficulties = append(difficulties, smDifficulty{
			Difficulty: game.Difficulty{
				Name:  name,
				Level: strings.TrimSuffix(strings.TrimSpace(lines[4]), ":"),
				Lanes: nKeys,
			},
			section: lines[6],
		})
	}

	offset := 0.0
	bpms := []game.BPM{}

	for _, mdl := range strings.Split(meta, "\n#") {
		mdl = strings.TrimPrefix(strings.TrimSpace(mdl), "#")
		if strings.HasPrefix(mdl, "OFFSET:") {
			mdl = strings.TrimPrefix(mdl, "OFFSET:")
			mdl = strings.TrimSuffix(mdl, ";")
			offs, err := strconv.ParseFloat(strings.TrimSpace(mdl), 64)
			if nil != err {
				return nil, nil, fmt.Errorf("bad offset: %w", err)
			}
			offset = -offs
		} else if strings.HasPrefix(mdl, "BPMS:") {
			mdl = strings.TrimPrefix(mdl, "BPMS:")
			mdl = strings.ReplaceAll(mdl, "\n", "")
			for _, bpm := range strings.Split(strings.TrimSuffix(mdl, ";"), ",") {
				as := strings.Split(bpm, "=")
				if len(as) != 2 {
					return nil, nil, fmt.Errorf("bad bpm %q", bpm)
				}
				sb, err := strconv.ParseFloat(strings.TrimSpace(as[0]), 64)
				if nil != err {
					return nil, nil, fmt.Errorf("bad bpm beat: %w", err)
				}
				value, err := strconv.ParseFloat(strings.TrimSpace(as[1]), 64)
				if nil != err {
					return nil, nil, fmt.Errorf("bad bpm value: %w", err)
				}
				bpms = append(bpms, game.BPM{StartingBeat: sb, Value: value})
			}
		}
	}

	charts := []*game.Chart{}
	for _, difficulty := range difficulties {
		chart := game.NewChart(difficulty.Difficulty, p.notes(difficulty, offset, bpms))
		report.Collisions = append(report.Collisions, chart.Collisions(p.opts.DedupeMs)...)
		charts = append(charts, chart)
	}
	return charts, report, nil
}

func (p *SMParser) notes(difficulty smDifficulty, offset float64, bpms []game.BPM) []game.Note {
	// Start time of first note
	seconds := offset
	currentBeat := 0.0

	notes := []game.Note{}
	for _, block := range strings.Split(difficulty.section, "\n,") {
		lines := []string{}
		for _, l := range strings.Split(block, "\n") {
			if strings.HasPrefix(l, " ") || strings.Contains(l, "-") || strings.HasPrefix(l, "//") {
				continue
			}
			l = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(l), ";"))
			if len(l) >= difficulty.Lanes {
				lines = append(lines, l)
			}
		}
		if len(lines) == 0 {
			continue
		}

		// Beat count is 4 per block
		beatsPerNote := 4.0 / float64(len(lines))

		for _, line := range lines {
			ms := int64(math.Round(seconds * 1000))
			for lane, c := range []byte(line[:difficulty.Lanes]) {
				switch c {
				case '1':
					notes = append(notes, game.Note{Lane: lane, Type: game.Tap, Ms: ms})
				case '2', '4':
					notes = append(notes, game.Note{Lane: lane, Type: game.Hold, Ms: ms})
				case '3':
					// This is a release note of a previous head, find the last
					// hold in this lane and end it here
					for j := len(notes) - 1; j >= 0; j-- {
						if notes[j].Lane != lane {
							continue
						}
						if notes[j].IsHold() && notes[j].EndMs == 0 {
							notes[j].EndMs = ms
						}
						break
					}
				}
			}
			seconds += p.getSecondsPerNote(bpms, currentBeat, beatsPerNote)
			currentBeat += beatsPerNote
		}
	}

	// A head without a tail is played as a tap
	for i := range notes {
		if notes[i].IsHold() && notes[i].EndMs <= notes[i].Ms {
			notes[i].Type = game.Tap
			notes[i].EndMs = 0
		}
	}
	return notes
}
