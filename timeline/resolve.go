package timeline

import "fmt"

// MinVisibleDuration is the shortest visible duration a tail trim may
// leave behind. Trims below it are rejected.
const MinVisibleDuration = 0.1

// Outcome is what the resolver did to one sibling.
type Outcome int

const (
	OutcomeNone Outcome = iota
	// OutcomeHeadTrimmed: the moved clip ends inside the sibling, so the
	// sibling's head was cut and its start moved to the moved clip's end.
	OutcomeHeadTrimmed
	// OutcomeTailTrimmed: the moved clip starts inside the sibling, so the
	// sibling's tail was cut.
	OutcomeTailTrimmed
	// OutcomeRejected: a tail trim would have left less than
	// MinVisibleDuration. The sibling is unchanged.
	OutcomeRejected
	// OutcomePushed: the moved clip covers the sibling entirely, so the
	// sibling was relocated to the moved clip's end with its offset reset.
	OutcomePushed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomeHeadTrimmed:
		return "head-trimmed"
	case OutcomeTailTrimmed:
		return "tail-trimmed"
	case OutcomeRejected:
		return "rejected"
	case OutcomePushed:
		return "pushed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Changed reports whether the sibling was mutated.
func (o Outcome) Changed() bool {
	return o == OutcomeHeadTrimmed || o == OutcomeTailTrimmed || o == OutcomePushed
}

// Resolution records the outcome for one sibling.
type Resolution struct {
	ClipID  string
	Outcome Outcome
	Overlap float64
}

// Resolve compares moved against every sibling independently and mutates
// the siblings in place. moved itself is never changed and siblings never
// affect each other within one pass. A sibling with the same id as moved
// is skipped.
func Resolve(moved *Clip, siblings []*Clip) []Resolution {
	movedStart, movedEnd := moved.StartTime, moved.End()

	out := make([]Resolution, 0, len(siblings))

	for _, other := range siblings {
		if other == nil || other == moved || other.ID == moved.ID {
			continue
		}

		otherStart, otherEnd := other.StartTime, other.End()
		r := Resolution{ClipID: other.ID}

		switch {
		case movedEnd > otherStart && movedEnd < otherEnd && movedStart < otherStart:
			r.Overlap = movedEnd - otherStart
			other.Offset += r.Overlap
			other.StartTime = movedEnd
			other.clampFades()
			r.Outcome = OutcomeHeadTrimmed

		case movedStart < otherEnd && movedStart > otherStart && movedEnd > otherEnd:
			r.Overlap = otherEnd - movedStart

			visible := other.VisibleDuration() - r.Overlap
			if visible < MinVisibleDuration {
				r.Outcome = OutcomeRejected
				break
			}

			other.Duration = other.Offset + visible
			other.clampFades()
			r.Outcome = OutcomeTailTrimmed

		case movedStart <= otherStart && movedEnd >= otherEnd:
			r.Overlap = other.VisibleDuration()
			other.StartTime = movedEnd
			other.Offset = 0
			r.Outcome = OutcomePushed
		}

		out = append(out, r)
	}

	return out
}
