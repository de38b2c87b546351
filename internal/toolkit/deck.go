package toolkit

// DeckState is the persisted flashcard cursor.
type DeckState struct {
	Index   int  `json:"index"`
	Flipped bool `json:"flipped"`
}

type Card struct {
	Index   int    `json:"index"`
	Total   int    `json:"total"`
	Flipped bool   `json:"flipped"`
	Text    string `json:"text"`
}

// Next moves forward one card, wrapping to the first, and shows its question.
func (s DeckState) Next(total int) DeckState {
	return DeckState{Index: wrap(s.Index+1, total)}
}

// Prev moves back one card, wrapping to the last, and shows its question.
func (s DeckState) Prev(total int) DeckState {
	return DeckState{Index: wrap(s.Index-1, total)}
}

func (s DeckState) Flip() DeckState {
	s.Flipped = !s.Flipped
	return s
}

func wrap(i, n int) int {
	if n <= 0 {
		return 0
	}
	return ((i % n) + n) % n
}

func cardAt(cards []Flashcard, s DeckState) Card {
	i := wrap(s.Index, len(cards))
	c := Card{Index: i, Total: len(cards), Flipped: s.Flipped}
	if len(cards) == 0 {
		return c
	}
	if s.Flipped {
		c.Text = cards[i].Answer
	} else {
		c.Text = cards[i].Question
	}
	return c
}
