package game

const (
	MinSecret = 1
	MaxSecret = 100

	closeRange = 5
	nearRange  = 20

	closeBonus = 20
	nearBonus  = 10
	farPenalty = -10
)

// Outcome of a single guess against a secret.
type Outcome struct {
	Status     Status
	ScoreDelta int
	Message    string
}

// Evaluate scores guess against secret. It is defined for any integer guess;
// a correct guess carries no delta here, the refund is computed by the caller.
func Evaluate(secret, guess int) Outcome {
	if guess == secret {
		return Outcome{Status: StatusCorrect, Message: "Bravoooooo hahaha! You've won!"}
	}

	var o Outcome
	var d int
	if guess < secret {
		o.Status = StatusTooSmall
		o.Message = "Too small! "
		d = secret - guess
	} else {
		o.Status = StatusTooBig
		o.Message = "Too big! "
		d = guess - secret
	}

	// d < 0 only on overflow for extreme guesses
	switch {
	case d < 0:
		o.ScoreDelta = farPenalty
		o.Message += "Far off!"
	case d <= closeRange:
		o.ScoreDelta = closeBonus
		o.Message += "Very close!"
	case d <= nearRange:
		o.ScoreDelta = nearBonus
		o.Message += "Getting closer!"
	default:
		o.ScoreDelta = farPenalty
		o.Message += "Far off!"
	}
	return o
}
