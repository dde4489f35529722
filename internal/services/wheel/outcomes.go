package wheel

// Outcome is one slice of the wheel. Slices are ordered; a draw r in [0,1)
// lands on the first slice whose Upper bound exceeds r.
type Outcome struct {
	Key     string
	Upper   float64
	Credit  int64
	Percent int
	Days    int
	Message string
}

const (
	OutcomeNone   = "none"
	OutcomeLC5    = "lc5"
	OutcomeLC10   = "lc10"
	OutcomeCode50 = "code50"
	OutcomeLC100  = "lc100"
)

var Outcomes = []Outcome{
	{Key: OutcomeNone, Upper: 0.50, Message: "No luck this time. Try again in 24 hours!"},
	{Key: OutcomeLC5, Upper: 0.80, Credit: 5, Message: "You won 5 LegacyCoin!"},
	{Key: OutcomeLC10, Upper: 0.94, Credit: 10, Message: "You won 10 LegacyCoin!"},
	{Key: OutcomeCode50, Upper: 0.99, Percent: 50, Days: 7, Message: "You won a 50% discount code valid for 7 days! Find it under My codes."},
	{Key: OutcomeLC100, Upper: 1.0, Credit: 100, Message: "You won 100 LegacyCoin!"},
}

// Pick maps a uniform draw in [0,1) onto an outcome.
func Pick(r float64) Outcome {
	for _, o := range Outcomes {
		if r < o.Upper {
			return o
		}
	}
	return Outcomes[len(Outcomes)-1]
}

// Probability is the width of the outcome's band.
func Probability(key string) float64 {
	lower := 0.0
	for _, o := range Outcomes {
		if o.Key == key {
			return o.Upper - lower
		}
		lower = o.Upper
	}
	return 0
}
